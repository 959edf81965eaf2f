package export

import (
	"regexp"
	"strings"
)

var (
	// Unicode spaces included, so a non-breaking space in a brand name
	// becomes an underscore like any other whitespace.
	whitespaceRun  = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	disallowedChar = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	edgeDotsSpaces = regexp.MustCompile(`^[.\s]+|[.\s]+$`)
)

// SanitizeFilename makes a brand or model usable as a path segment. The
// steps run in a fixed order: whitespace runs to "_", strip everything
// outside [a-zA-Z0-9_-], lowercase, trim leading/trailing dots and spaces.
// Other tools build the same paths, so the order must not change.
func SanitizeFilename(name string) string {
	s := whitespaceRun.ReplaceAllString(name, "_")
	s = disallowedChar.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	return edgeDotsSpaces.ReplaceAllString(s, "")
}
