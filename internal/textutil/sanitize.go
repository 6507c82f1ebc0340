package textutil

import (
	"path/filepath"
	"strings"
)

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// CommandToken names an executable for use inside a file name: the base name
// without directory or extension, sanitized. "/opt/bin/Waifu2x.exe" becomes
// "waifu2x".
func CommandToken(command string) string {
	base := filepath.Base(strings.TrimSpace(command))
	if base == "." || base == string(filepath.Separator) {
		return SanitizeToken("")
	}
	return SanitizeToken(strings.TrimSuffix(base, filepath.Ext(base)))
}
