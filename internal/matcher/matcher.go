// Package matcher proposes source columns for canonical template fields.
// Matching is pure and order-stable: given the same target and candidate
// order it always returns the same answer, so suggested mappings do not
// shuffle between uploads of the same file.
package matcher

import "strings"

// BestMatch returns the best candidate source column for a canonical field,
// or "" and false when nothing matches. Rules are tried in strict priority
// order and the first hit wins:
//
//  1. exact case-insensitive match
//  2. substring match in either direction, first candidate in input order
//  3. synonym-table match, synonyms in table order, candidates in input order
func BestMatch(targetField string, candidates []string) (string, bool) {
	target := strings.ToLower(strings.TrimSpace(targetField))
	if target == "" {
		return "", false
	}

	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(strings.TrimSpace(c))
	}

	for i, c := range lowered {
		if c == target {
			return candidates[i], true
		}
	}

	for i, c := range lowered {
		if c == "" {
			continue
		}
		if strings.Contains(c, target) || strings.Contains(target, c) {
			return candidates[i], true
		}
	}

	for _, syn := range synonyms[target] {
		for i, c := range lowered {
			if strings.Contains(c, syn) {
				return candidates[i], true
			}
		}
	}

	return "", false
}

// AutoMap runs BestMatch once per template field and returns the proposed
// field → source column mapping. Fields with no match are present with an
// empty value so the operator sees them as unmapped rather than absent.
func AutoMap(fields []string, candidates []string) map[string]string {
	mapping := make(map[string]string, len(fields))
	for _, f := range fields {
		match, _ := BestMatch(f, candidates)
		mapping[f] = match
	}
	return mapping
}
