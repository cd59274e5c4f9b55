// Package core defines the shared language of the MyTalk system.
//
// This package contains:
//   - Domain entities (Script, Version, Run, DailyStat)
//   - Service interfaces (Store)
//   - Identifier and status types shared across packages
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core
