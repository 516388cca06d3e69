// Package filter implements per-source title rules applied to candidates.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

const regexPrefix = "re:"

// Rules is a compiled include/exclude rule set. Plain values match as
// case-insensitive substrings; values prefixed with "re:" are regular
// expressions.
type Rules struct {
	include []matcher
	exclude []matcher
}

type matcher struct {
	word string
	re   *regexp.Regexp
}

func (m matcher) match(lowered string) bool {
	if m.re != nil {
		return m.re.MatchString(lowered)
	}
	return strings.Contains(lowered, m.word)
}

// Compile builds Rules from raw include and exclude values.
func Compile(include, exclude []string) (*Rules, error) {
	r := &Rules{}
	var err error
	if r.include, err = compileAll(include); err != nil {
		return nil, err
	}
	if r.exclude, err = compileAll(exclude); err != nil {
		return nil, err
	}
	return r, nil
}

func compileAll(values []string) ([]matcher, error) {
	var out []matcher
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(v, regexPrefix); ok {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
			out = append(out, matcher{re: re})
			continue
		}
		out = append(out, matcher{word: strings.ToLower(v)})
	}
	return out, nil
}

// Empty reports whether the rule set accepts everything.
func (r *Rules) Empty() bool {
	return r == nil || (len(r.include) == 0 && len(r.exclude) == 0)
}

// Match checks whether a title passes the rules.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func (r *Rules) Match(title string) bool {
	if r.Empty() {
		return true
	}
	text := strings.ToLower(title)
	for _, m := range r.exclude {
		if m.match(text) {
			return false
		}
	}
	if len(r.include) == 0 {
		return true
	}
	for _, m := range r.include {
		if m.match(text) {
			return true
		}
	}
	return false
}
