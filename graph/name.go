package graph

import (
	"regexp"
)

var (
	parenthesisRe = regexp.MustCompile(`\([^()]*\)`)
	anglesRe      = regexp.MustCompile(`<[^<>]*>`)
	constRe       = regexp.MustCompile(`\s+const$`)
)

// StripName removes argument lists, a trailing const qualifier and template
// parameters from a demangled function name.
//
//	std::vector<int>::push_back(int const&) const -> std::vector::push_back
func StripName(name string) string {
	name = removeNested(parenthesisRe, name)
	name = constRe.ReplaceAllString(name, "")
	return removeNested(anglesRe, name)
}

func removeNested(re *regexp.Regexp, s string) string {
	for {
		next := re.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}
