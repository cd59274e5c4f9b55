package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mytalk-labs/mytalk/internal/cli/config"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{
			name:   "no checks returns 100",
			checks: nil,
			want:   100,
		},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{RuleID: "CF01", Status: "pass"},
				{RuleID: "PR01", Status: "pass"},
			},
			want: 100,
		},
		{
			name: "warnings cost five points each",
			checks: []HealthCheck{
				{RuleID: "CF01", Status: "pass"},
				{RuleID: "DA01", Status: "warn", IssueCount: 2},
			},
			want: 90,
		},
		{
			name: "errors cost double",
			checks: []HealthCheck{
				{RuleID: "PR02", Status: "error", IssueCount: 2},
			},
			want: 80,
		},
		{
			name: "score never goes below zero",
			checks: []HealthCheck{
				{RuleID: "DB01", Status: "error", IssueCount: 20},
				{RuleID: "TT01", Status: "error", IssueCount: 20},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func TestGetRecommendation(t *testing.T) {
	tests := []struct {
		ruleID   string
		expected bool // whether a recommendation is returned
	}{
		{"CF01", true},
		{"CF02", true},
		{"DA01", true},
		{"DA02", true},
		{"PR01", true},
		{"PR02", true},
		{"TT01", true},
		{"DR01", true},
		{"DR02", true},
		{"DB01", true},
		{"SY01", true},
		{"SY03", true},
		{"SY02", false},
		{"UNKNOWN", false},
	}

	for _, tt := range tests {
		t.Run(tt.ruleID, func(t *testing.T) {
			rec := getRecommendation(tt.ruleID)
			if tt.expected {
				assert.NotEmpty(t, rec, "expected recommendation for %s", tt.ruleID)
			} else {
				assert.Empty(t, rec, "expected no recommendation for %s", tt.ruleID)
			}
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{RuleID: "CF01", Status: "warn", IssueCount: 1},
		{RuleID: "PR02", Status: "error", IssueCount: 1},
		{RuleID: "DA01", Status: "pass", IssueCount: 0},
	}

	recommendations := generateRecommendations(checks)

	assert.Len(t, recommendations, 2)
	assert.Contains(t, recommendations[0], "mytalk init")
	assert.Contains(t, recommendations[1], "API key")
}

func TestGenerateRecommendations_Dedupe(t *testing.T) {
	// Two failing checks pointing at the same fix yield one line.
	checks := []HealthCheck{
		{RuleID: "SY03", Status: "warn", IssueCount: 1},
		{RuleID: "SY03", Status: "warn", IssueCount: 3},
	}

	recommendations := generateRecommendations(checks)
	assert.Len(t, recommendations, 1)
}

func TestGenerateRecommendations_LimitTo5(t *testing.T) {
	ruleIDs := []string{"CF01", "CF02", "DA01", "DA02", "PR01", "PR02", "TT01", "DR01", "DR02", "DB01", "SY01", "SY03"}
	checks := make([]HealthCheck, len(ruleIDs))
	for i, id := range ruleIDs {
		checks[i] = HealthCheck{RuleID: id, Status: "warn", IssueCount: 1}
	}

	recommendations := generateRecommendations(checks)
	assert.Len(t, recommendations, 5)
}

func TestCheckOutputMode(t *testing.T) {
	tests := []struct {
		format string
		status string
	}{
		{"", "pass"},
		{"auto", "pass"},
		{"text", "pass"},
		{"markdown", "pass"},
		{"json", "pass"},
		{"yaml", "error"},
		{"pretty", "error"},
	}

	for _, tt := range tests {
		t.Run("format_"+tt.format, func(t *testing.T) {
			cfg := &config.Config{OutputFormat: tt.format}
			check := checkOutputMode(cfg)
			assert.Equal(t, tt.status, check.Status)
			if tt.status == "error" {
				assert.Contains(t, check.Details[0], "unknown output mode")
			}
		})
	}
}

func TestCheckProvider(t *testing.T) {
	tests := []struct {
		provider string
		status   string
	}{
		{"openai", "pass"},
		{"Anthropic", "pass"},
		{"gemini", "pass"},
		{"claude", "error"},
		{"", "error"},
	}

	for _, tt := range tests {
		t.Run("provider_"+tt.provider, func(t *testing.T) {
			cfg := &config.Config{Provider: tt.provider}
			check := checkProvider(cfg)
			assert.Equal(t, tt.status, check.Status)
		})
	}
}

func TestCheckAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &config.Config{Provider: "openai"}
	check := checkAPIKey(cfg)
	assert.Equal(t, "error", check.Status)
	assert.Contains(t, check.Details[0], "OPENAI_API_KEY")

	cfg.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	}
	check = checkAPIKey(cfg)
	assert.Equal(t, "pass", check.Status)
}

func TestGroupTitle(t *testing.T) {
	assert.Equal(t, "Config", groupTitle("config"))
	assert.Equal(t, "TTS", groupTitle("tts"))
	assert.Equal(t, "Database", groupTitle("database"))
	assert.Equal(t, "System", groupTitle("system"))
}

func TestHealthCheckStruct(t *testing.T) {
	check := HealthCheck{
		RuleID:     "DB01",
		Name:       "Library database",
		Group:      "database",
		Status:     "pass",
		IssueCount: 0,
		Details:    nil,
	}

	assert.Equal(t, "DB01", check.RuleID)
	assert.Equal(t, "database", check.Group)
	assert.Equal(t, "pass", check.Status)
}
