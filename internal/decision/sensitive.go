package decision

import "path/filepath"

// sensitivePatterns is the built-in bypass list: matching paths never
// get cache metadata attached, regardless of the bypass flag.
var sensitivePatterns = []string{
	".env*", "*.pem", "*.key", "*.p12", "*.pfx", "*.crt", "*.cer",
	"*.der", "*.pk8", "id_rsa", "id_ed25519", ".npmrc", ".netrc",
}

// isSensitivePath reports whether path's basename matches the built-in
// sensitive-path bypass list or one of extra, a deployment's
// additional glob patterns from config.SensitiveConfig.ExtraPatterns.
func isSensitivePath(path string, extra []string) bool {
	base := filepath.Base(path)
	for _, pat := range sensitivePatterns {
		if matched, _ := filepath.Match(pat, base); matched {
			return true
		}
	}
	for _, pat := range extra {
		if matched, _ := filepath.Match(pat, base); matched {
			return true
		}
	}
	return false
}
