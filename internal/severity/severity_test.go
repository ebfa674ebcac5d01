package severity

import (
	"testing"

	"github.com/ppiankov/codespectre/internal/agent"
)

func TestForImport(t *testing.T) {
	tests := []struct {
		module string
		want   agent.Severity
	}{
		{"pickle", agent.SeverityHigh},
		{"marshal", agent.SeverityHigh},
		{"subprocess", agent.SeverityMedium},
		{"somethingelse", agent.SeverityMedium},
	}
	for _, tt := range tests {
		if got := ForImport(tt.module); got != tt.want {
			t.Errorf("ForImport(%q) = %q, want %q", tt.module, got, tt.want)
		}
	}
}

func TestForPattern(t *testing.T) {
	tests := []struct {
		key  string
		want agent.Severity
	}{
		{"shell=True", agent.SeverityCritical},
		{"eval(", agent.SeverityCritical},
		{"os.system(", agent.SeverityCritical},
		{"password=", agent.SeverityHigh},
		{"api_key=", agent.SeverityHigh},
		{"verify=False", agent.SeverityHigh},
		{"md5(", agent.SeverityMedium},
		{"DEBUG=True", agent.SeverityMedium},
		{"unknown", Default},
	}
	for _, tt := range tests {
		if got := ForPattern(tt.key); got != tt.want {
			t.Errorf("ForPattern(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRank(t *testing.T) {
	if Rank(agent.SeverityCritical) >= Rank(agent.SeverityHigh) {
		t.Error("CRITICAL should rank before HIGH")
	}
	if Rank("bogus") != len(agent.Severities) {
		t.Errorf("Rank(bogus) = %d", Rank("bogus"))
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		sev, min agent.Severity
		want     bool
	}{
		{agent.SeverityCritical, agent.SeverityHigh, true},
		{agent.SeverityHigh, agent.SeverityHigh, true},
		{agent.SeverityMedium, agent.SeverityHigh, false},
		{"", agent.SeverityLow, false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.sev, tt.min); got != tt.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tt.sev, tt.min, got, tt.want)
		}
	}
}
