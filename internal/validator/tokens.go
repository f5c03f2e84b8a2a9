package validator

import (
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// identifiers returns the set of lower-cased identifiers longer than two characters
func identifiers(lines ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range lines {
		for _, tok := range identPattern.FindAllString(line, -1) {
			if len(tok) <= 2 {
				continue
			}
			set[strings.ToLower(tok)] = struct{}{}
		}
	}
	return set
}

// normalize collapses whitespace, folds case and unifies quote style
func normalize(line string) string {
	line = strings.Join(strings.Fields(line), " ")
	line = strings.ToLower(line)
	return strings.ReplaceAll(line, "'", `"`)
}
