package safety

import "regexp"

// dangerousPattern is one entry in the fixed deny list scanned against
// free-text fields (typed text, message bodies, the original utterance).
type dangerousPattern struct {
	name string
	re   *regexp.Regexp
}

// The list is deliberately fixed and conservative: destructive filesystem
// operations, privilege and account manipulation, and shutdown/restart
// commands. Matching any of these fails validation outright.
var dangerousPatterns = []dangerousPattern{
	{"recursive_delete", regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\b`)},
	{"windows_force_delete", regexp.MustCompile(`(?i)\bdel\s+/[fqs]\b`)},
	{"recursive_rmdir", regexp.MustCompile(`(?i)\brmdir\s+/s\b`)},
	{"format_volume", regexp.MustCompile(`(?i)\bformat\s+[a-z]:`)},
	{"mkfs", regexp.MustCompile(`(?i)\bmkfs(\.[a-z0-9]+)?\b`)},
	{"disk_overwrite", regexp.MustCompile(`(?i)\bdd\s+if=`)},
	{"diskpart", regexp.MustCompile(`(?i)\bdiskpart\b`)},
	{"registry_delete", regexp.MustCompile(`(?i)\breg\s+delete\b`)},
	{"account_manipulation", regexp.MustCompile(`(?i)\bnet\s+user\b|\buseradd\b|\buserdel\b|\bpasswd\b`)},
	{"privilege_escalation", regexp.MustCompile(`(?i)\bsudo\s+|\brunas\s+/user:`)},
	{"shutdown_restart", regexp.MustCompile(`(?i)\bshutdown\b|\breboot\b|\bhalt\s*$|\bpoweroff\b`)},
	{"fork_bomb", regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`)},
}

// ScanDangerous checks free text against the deny list. Returns the name of
// the first matching pattern.
func ScanDangerous(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range dangerousPatterns {
		if p.re.MatchString(text) {
			return p.name, true
		}
	}
	return "", false
}
