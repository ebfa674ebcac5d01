package security

import (
	"fmt"
	"regexp"
)

type importRule struct {
	module string
	detail string
	re     *regexp.Regexp
}

func newImportRule(module, detail string) importRule {
	q := regexp.QuoteMeta(module)
	return importRule{
		module: module,
		detail: detail,
		re:     regexp.MustCompile(fmt.Sprintf(`(?m)^[ \t]*(?:import[ \t]+%s\b|from[ \t]+%s(?:\.[\w.]+)?[ \t]+import\b)`, q, q)),
	}
}

var insecureImports = []importRule{
	newImportRule("pickle", "Deserialization vulnerability risk"),
	newImportRule("cPickle", "Deserialization vulnerability risk"),
	newImportRule("dill", "Deserialization of arbitrary objects"),
	newImportRule("marshal", "Unsafe deserialization of untrusted data"),
	newImportRule("shelve", "Pickle-backed storage can execute code on load"),
	newImportRule("subprocess", "Command injection risk if unsanitized inputs"),
	newImportRule("telnetlib", "Cleartext protocol"),
	newImportRule("ftplib", "Cleartext protocol"),
}

// patternRule is a regular expression over source text. Key feeds severity
// classification; Category names the pattern in the security pattern catalogue.
type patternRule struct {
	key      string
	category string
	issue    string
	detail   string
	re       *regexp.Regexp
}

var insecurePatterns = []patternRule{
	{
		key: "shell=True", category: "command_injection",
		issue:  "Subprocess call with shell=True",
		detail: "Shell interpolation allows command injection",
		re:     regexp.MustCompile(`shell[ \t]*=[ \t]*True\b`),
	},
	{
		key: "eval(", category: "code_injection",
		issue:  "Use of eval()",
		detail: "Arbitrary code execution risk",
		re:     regexp.MustCompile(`(?m)(?:^|[^\w.])eval[ \t]*\(`),
	},
	{
		key: "exec(", category: "code_injection",
		issue:  "Use of exec()",
		detail: "Arbitrary code execution risk",
		re:     regexp.MustCompile(`(?m)(?:^|[^\w.])exec[ \t]*\(`),
	},
	{
		key: "os.system(", category: "command_injection",
		issue:  "Use of os.system()",
		detail: "Command injection risk if unsanitized inputs",
		re:     regexp.MustCompile(`\bos\.system[ \t]*\(`),
	},
	{
		key: "password=", category: "hardcoded_password",
		issue:  "Hardcoded password",
		detail: "Password literal assigned in source code",
		re:     regexp.MustCompile(`(?i)\b\w*password\w*[ \t]*=[ \t]*["'][^"'\n]+["']`),
	},
	{
		key: "api_key=", category: "hardcoded_password",
		issue:  "Hardcoded api_key",
		detail: "API key literal assigned in source code",
		re:     regexp.MustCompile(`(?i)\b\w*api_?key\w*[ \t]*=[ \t]*["'][^"'\n]+["']`),
	},
	{
		key: "secret=", category: "hardcoded_password",
		issue:  "Hardcoded secret",
		detail: "Secret literal assigned in source code",
		re:     regexp.MustCompile(`(?i)\b\w*secret\w*[ \t]*=[ \t]*["'][^"'\n]+["']`),
	},
	{
		key: "pickle.load", category: "insecure_deserialization",
		issue:  "Unsafe pickle.load deserialization",
		detail: "Loading pickled data from untrusted sources executes code",
		re:     regexp.MustCompile(`\bpickle\.loads?[ \t]*\(`),
	},
	{
		key: "yaml.load(", category: "insecure_deserialization",
		issue:  "Unsafe yaml.load without SafeLoader",
		detail: "yaml.load can construct arbitrary objects",
		re:     regexp.MustCompile(`\byaml\.load[ \t]*\(`),
	},
	{
		key: "verify=False", category: "insecure_transport",
		issue:  "TLS verification disabled (verify=False)",
		detail: "Certificate validation is turned off",
		re:     regexp.MustCompile(`\bverify[ \t]*=[ \t]*False\b`),
	},
	{
		key: "md5(", category: "weak_cryptography",
		issue:  "Weak hash algorithm md5",
		detail: "MD5 is not collision resistant",
		re:     regexp.MustCompile(`\bmd5[ \t]*\(`),
	},
	{
		key: "sha1(", category: "weak_cryptography",
		issue:  "Weak hash algorithm sha1",
		detail: "SHA-1 is not collision resistant",
		re:     regexp.MustCompile(`\bsha1[ \t]*\(`),
	},
	{
		key: "DEBUG", category: "debug_enabled",
		issue:  "Debug mode enabled (DEBUG = True)",
		detail: "Debug mode leaks internals in production",
		re:     regexp.MustCompile(`(?m)^[ \t]*DEBUG[ \t]*=[ \t]*True\b`),
	},
}
