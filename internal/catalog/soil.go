package catalog

import (
	"strings"
	"unicode"

	"crop-estimator/internal/models"
)

var soilStopWords = map[string]struct{}{
	"to": {}, "in": {}, "and": {}, "or": {}, "of": {}, "the": {}, "with": {}, "ph": {},
}

// SoilTokens normalises a free-text soil descriptor into a set of match tokens.
//
// The descriptor is lower-cased and split on every rune that is not a letter or
// digit. Pure numbers and stop words are dropped, and the adjectival suffix is
// folded so "Loamy", "Sandy" and "Clayey" match "loam", "sand" and "clay".
func SoilTokens(descriptor string) []string {
	fields := strings.FieldsFunc(strings.ToLower(descriptor), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if isNumeric(f) {
			continue
		}
		if _, stop := soilStopWords[f]; stop {
			continue
		}
		f = foldSuffix(f)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// SoilOverlap scores how much of the farm soil descriptor the crop accepts, in [0, 1].
// For each crop descriptor the score is the share of farm tokens it contains; the
// best descriptor wins. When either token sequence appears as a contiguous run
// inside the other, the descriptor scores 1.
func SoilOverlap(crop *models.CropRecord, soilType string) float64 {
	farm := SoilTokens(soilType)
	if len(farm) == 0 {
		return 0
	}

	best := 0.0
	for _, descriptor := range crop.ViableSoilTypes {
		tokens := SoilTokens(descriptor)
		if len(tokens) == 0 {
			continue
		}
		if containsRun(tokens, farm) || containsRun(farm, tokens) {
			return 1
		}

		accepted := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			accepted[tok] = struct{}{}
		}

		shared := 0
		for _, tok := range farm {
			if _, ok := accepted[tok]; ok {
				shared++
			}
		}

		if frac := float64(shared) / float64(len(farm)); frac > best {
			best = frac
		}
	}
	return best
}

// containsRun reports whether run appears as consecutive tokens in seq
func containsRun(seq, run []string) bool {
	for i := 0; i+len(run) <= len(seq); i++ {
		match := true
		for j := range run {
			if seq[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func foldSuffix(tok string) string {
	if len([]rune(tok)) <= 4 {
		return tok
	}
	if strings.HasSuffix(tok, "ey") {
		return strings.TrimSuffix(tok, "ey")
	}
	if strings.HasSuffix(tok, "y") {
		return strings.TrimSuffix(tok, "y")
	}
	return tok
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
