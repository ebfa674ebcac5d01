package severity

import "github.com/ppiankov/codespectre/internal/agent"

// ImportSeverities maps a module name to the tier assigned when it is imported.
// Modules missing from the table fall back to Default.
var ImportSeverities = map[string]agent.Severity{
	"pickle":     agent.SeverityHigh,
	"cPickle":    agent.SeverityHigh,
	"dill":       agent.SeverityHigh,
	"marshal":    agent.SeverityHigh,
	"shelve":     agent.SeverityHigh,
	"subprocess": agent.SeverityMedium,
	"telnetlib":  agent.SeverityMedium,
	"ftplib":     agent.SeverityMedium,
}

// patternSeverities maps a marker found in a pattern key to a tier. Checked in
// order; the first marker contained in the key wins.
var patternSeverities = []struct {
	marker   string
	severity agent.Severity
}{
	{"shell=True", agent.SeverityCritical},
	{"eval(", agent.SeverityCritical},
	{"exec(", agent.SeverityCritical},
	{"os.system(", agent.SeverityCritical},
	{"password", agent.SeverityHigh},
	{"api_key", agent.SeverityHigh},
	{"secret", agent.SeverityHigh},
	{"pickle.load", agent.SeverityHigh},
	{"yaml.load(", agent.SeverityHigh},
	{"verify=False", agent.SeverityHigh},
	{"md5(", agent.SeverityMedium},
	{"sha1(", agent.SeverityMedium},
	{"DEBUG", agent.SeverityMedium},
}

// Default is the tier used when no table entry matches.
const Default = agent.SeverityMedium
