//go:build governance

package core_test

import (
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/mytalk-labs/mytalk"

// TestGovernance_CoreCohesion checks that every exported type in
// pkg/core earns its place there by being used from more than one
// package. A type with a single consumer belongs next to that consumer.
func TestGovernance_CoreCohesion(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	var corePkg *packages.Package
	coreDefs := make(map[types.Object]string)
	for _, p := range pkgs {
		if p.PkgPath != modulePath+"/pkg/core" {
			continue
		}
		corePkg = p
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			if obj := scope.Lookup(name); obj.Exported() {
				coreDefs[obj] = name
			}
		}
		break
	}
	if corePkg == nil {
		t.Fatal("Could not find pkg/core")
	}

	// Which packages reach each core type.
	consumers := make(map[string]map[string]bool)
	for _, name := range coreDefs {
		consumers[name] = make(map[string]bool)
	}

	base := modulePath + "/"
	for _, p := range pkgs {
		if p.PkgPath == corePkg.PkgPath || strings.HasSuffix(p.PkgPath, "_test") {
			continue
		}
		if p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if name, ok := coreDefs[obj]; ok {
				consumers[name][strings.TrimPrefix(p.PkgPath, base)] = true
			}
		}
	}

	for typeName, users := range consumers {
		if cohesionAllowlist[typeName] {
			continue
		}
		switch len(users) {
		case 0:
			t.Logf("WARNING: Unused Core Type: %s (consider deleting)", typeName)
		case 1:
			var user string
			for k := range users {
				user = k
			}
			t.Errorf("COHESION VIOLATION: 'core.%s' is used ONLY by '%s'.\n"+
				"   Fix: Move type from pkg/core to %s.",
				typeName, user, user)
		}
	}
}

// cohesionAllowlist holds types allowed to have a single consumer.
var cohesionAllowlist = map[string]bool{
	"Store":        true, // Interface - the implementation lives in one place
	"StatsSummary": true, // Aggregation type produced by internal/stats only
}

// TestGovernance_Layering pins the dependency direction between the
// big layers: the CLI composes everything, the web package serves it,
// and neither the engine nor the stores know about either of them.
func TestGovernance_Layering(t *testing.T) {
	forbidden := map[string][]string{
		modulePath + "/internal/web":       {modulePath + "/internal/cli"},
		modulePath + "/internal/engine":    {modulePath + "/internal/cli", modulePath + "/internal/web"},
		modulePath + "/internal/store":     {modulePath + "/internal/cli", modulePath + "/internal/web", modulePath + "/internal/engine"},
		modulePath + "/internal/workspace": {modulePath + "/internal/cli", modulePath + "/internal/web", modulePath + "/internal/engine"},
		modulePath + "/internal/llm":       {modulePath + "/internal/engine"},
		modulePath + "/internal/tts":       {modulePath + "/internal/engine"},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/internal/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	for _, p := range pkgs {
		banned := forbidden[p.PkgPath]
		if banned == nil {
			continue
		}
		for importPath := range p.Imports {
			for _, b := range banned {
				if importPath == b || strings.HasPrefix(importPath, b+"/") {
					t.Errorf("LAYERING VIOLATION: %s imports %s", p.PkgPath, importPath)
				}
			}
		}
	}
}
