package content

import (
	"errors"
	"strings"
)

// ErrUnknownVersion is returned by Resolve when nothing in the catalog matches.
var ErrUnknownVersion = errors.New("unknown bible version")

var englishPriority = []string{
	"king james",
	"world english",
	"bible in basic english",
	"webster",
	"american standard",
	"darby",
}

const (
	commonMax = 6
	commonMin = 4
)

// CommonEnglish picks up to six well-known English versions from the catalog,
// preferring the names in englishPriority, and tops up with other English
// versions when fewer than four matched.
func CommonEnglish(all []Version) []Version {
	var english []Version
	for _, v := range all {
		if v.Language == "eng" {
			english = append(english, v)
		}
	}

	out := make([]Version, 0, commonMax)
	seen := map[string]bool{}
	for _, kw := range englishPriority {
		for _, v := range english {
			if len(out) >= commonMax {
				return out
			}
			if !seen[v.ID] && strings.Contains(strings.ToLower(v.Name), kw) {
				out = append(out, v)
				seen[v.ID] = true
			}
		}
	}
	if len(out) < commonMin {
		for _, v := range english {
			if len(out) >= commonMax {
				break
			}
			if !seen[v.ID] {
				out = append(out, v)
				seen[v.ID] = true
			}
		}
	}
	return out
}

// Resolve finds a version by exact id, or by abbreviation (case-insensitive).
// Abbreviation matches prefer English versions.
func Resolve(all []Version, input string) (Version, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Version{}, ErrUnknownVersion
	}
	for _, v := range all {
		if v.ID == input {
			return v, nil
		}
	}
	var fallback *Version
	for i := range all {
		v := all[i]
		if !strings.EqualFold(v.Abbreviation, input) {
			continue
		}
		if v.Language == "eng" {
			return v, nil
		}
		if fallback == nil {
			fallback = &all[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Version{}, ErrUnknownVersion
}
