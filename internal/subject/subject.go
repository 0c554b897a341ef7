// Package subject provides normalizers applied to inbound subjects before
// they are matched against registered handlers.
package subject

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizer maps a raw subject to the key used for dispatch.
type Normalizer func(string) string

// replyPrefix matches one leading reply or forward marker, e.g. "Re: ",
// "FWD:", "Aw:" or "Re[2]: ".
var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd?|aw|wg)(\[\d+\])?\s*:\s*`)

// Trim removes surrounding whitespace.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Lower folds the subject to lower case.
func Lower(s string) string {
	return strings.ToLower(s)
}

// StripReplyPrefixes removes any number of leading reply and forward markers.
func StripReplyPrefixes(s string) string {
	for {
		stripped := replyPrefix.ReplaceAllString(s, "")
		if stripped == s {
			return strings.TrimSpace(s)
		}
		s = stripped
	}
}

// Chain applies normalizers left to right.
func Chain(fns ...Normalizer) Normalizer {
	return func(s string) string {
		for _, fn := range fns {
			s = fn(s)
		}
		return s
	}
}

var byName = map[string]Normalizer{
	"trim":        Trim,
	"lower":       Lower,
	"strip-reply": StripReplyPrefixes,
}

// FromNames builds a chain from configuration names ("trim", "lower",
// "strip-reply"). No names yields nil, meaning subjects are used verbatim.
func FromNames(names []string) (Normalizer, error) {
	var fns []Normalizer
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		fn, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown subject normalizer %q", name)
		}
		fns = append(fns, fn)
	}
	if len(fns) == 0 {
		return nil, nil
	}
	return Chain(fns...), nil
}
