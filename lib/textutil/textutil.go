package textutil

import (
	"regexp"
	"strings"
)

var (
	admissionsOpenRegex = regexp.MustCompile(`(?i)admissions?\s+open`)
	trailingPunctRegex  = regexp.MustCompile(`[,.\s]+$`)
	programPrefixRegex  = regexp.MustCompile(`^\s*\d+\s*\.\s*`)
)

// CleanUniversityName strips the promotional "Admissions Open" suffix
// that listing sites tack onto institution names, plus any punctuation
// left dangling after the removal.
func CleanUniversityName(name string) string {
	name = admissionsOpenRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = trailingPunctRegex.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// CleanProgramName removes ordinal prefixes like "3. " from program
// names. Anything that doesn't start with a numeral-period prefix is
// returned trimmed but otherwise unchanged.
func CleanProgramName(program string) string {
	if programPrefixRegex.MatchString(program) {
		return strings.TrimSpace(programPrefixRegex.ReplaceAllString(program, ""))
	}
	return strings.TrimSpace(program)
}
