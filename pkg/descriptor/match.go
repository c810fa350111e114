// pkg/descriptor/match.go - identifier matching.

package descriptor

import "strings"

// MatchMode selects which identifier lists of a family are consulted.
type MatchMode int

const (
	MatchKnown MatchMode = iota
	MatchIncompatible
	MatchEither
)

func (m MatchMode) String() string {
	switch m {
	case MatchKnown:
		return "known"
	case MatchIncompatible:
		return "incompatible"
	case MatchEither:
		return "either"
	default:
		return "unknown"
	}
}

// Matches reports whether any of ids equals a non-blank pattern of the
// family, ignoring case.
func (f Family) Matches(ids []string, mode MatchMode) bool {
	switch mode {
	case MatchKnown:
		return MatchesAny(ids, f.IDs)
	case MatchIncompatible:
		return MatchesAny(ids, f.IncompatibleIDs)
	case MatchEither:
		return MatchesAny(ids, f.IDs) || MatchesAny(ids, f.IncompatibleIDs)
	}
	return false
}

// MatchesAny reports whether ids and patterns share an entry, ignoring case
// and blank values on either side.
func MatchesAny(ids, patterns []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		for _, p := range patterns {
			if p != "" && strings.EqualFold(id, p) {
				return true
			}
		}
	}
	return false
}

// FirstMatch returns the first id that matches the family, or "".
func (f Family) FirstMatch(ids []string, mode MatchMode) string {
	for _, id := range ids {
		if f.Matches([]string{id}, mode) {
			return id
		}
	}
	return ""
}
