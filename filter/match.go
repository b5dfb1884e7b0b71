package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher tests a single candidate value against one accepted value.
type Matcher interface {
	MatchString(string) bool
}

type foldMatcher string

func (m foldMatcher) MatchString(s string) bool {
	return strings.EqualFold(string(m), s)
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// compileValue turns one accepted value into a Matcher. Plain values compare
// case-insensitively; values containing wildcards compile to an anchored
// case-insensitive regexp. `*` matches any run of characters including `/`.
func compileValue(value string) (Matcher, error) {
	if !hasWildcard(value) {
		return foldMatcher(value), nil
	}
	re, err := globToRegexp(value)
	if err != nil {
		return nil, err
	}
	return re, nil
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated character class in %q", pattern)
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteByte('[')
			sb.WriteString(class)
			sb.WriteByte(']')
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("bad wildcard pattern %q: %s", pattern, err)
	}
	return re, nil
}
