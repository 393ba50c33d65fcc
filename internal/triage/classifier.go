// Package triage routes free-text symptom descriptions to candidate medical
// specialties. It is a routing hint for booking, not a diagnosis.
package triage

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	maxRecommendations = 3
	fallbackConfidence = 0.5
	fullScore          = 3.0
)

// Recommendation is one ranked specialty guess.
type Recommendation struct {
	SpecialtyCode string  `json:"specialty_code"`
	SpecialtyName string  `json:"specialty_name"`
	Confidence    float64 `json:"confidence"`
	Emergency     bool    `json:"emergency"`
	Rank          int     `json:"rank"`
}

// Analysis is the classifier output for one message.
type Analysis struct {
	Recommendations   []Recommendation `json:"recommended_specialties"`
	EmergencyDetected bool             `json:"emergency_detected"`
	MatchedKeywords   []string         `json:"matched_keywords,omitempty"`
}

// Classify returns the ranked specialty recommendations for text. The result is
// never empty.
func Classify(text string) []Recommendation {
	return Analyze(text).Recommendations
}

// Analyze classifies text and reports the emergency flag and matched keywords.
func Analyze(text string) Analysis {
	normalized := normalize(text)
	emergency := IsEmergency(normalized)

	scores := make(map[string]int)
	// first match position per code; ties rank in keyword table order
	firstHit := make(map[string]int)
	var matched []string
	if normalized != "" {
		for _, rule := range keywordRules {
			if !strings.Contains(normalized, rule.keyword) {
				continue
			}
			matched = append(matched, rule.keyword)
			for _, code := range rule.codes {
				if _, seen := firstHit[code]; !seen {
					firstHit[code] = len(firstHit)
				}
				scores[code]++
			}
		}
	}

	if len(scores) == 0 {
		return Analysis{
			Recommendations: []Recommendation{{
				SpecialtyCode: DefaultSpecialty.Code,
				SpecialtyName: DefaultSpecialty.Name,
				Confidence:    fallbackConfidence,
				Emergency:     emergency,
				Rank:          1,
			}},
			EmergencyDetected: emergency,
		}
	}

	type scored struct {
		specialty Specialty
		order     int
		score     int
	}
	ranked := make([]scored, 0, len(scores))
	for code, score := range scores {
		sp, ok := Lookup(code)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{specialty: sp, order: firstHit[code], score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})
	if len(ranked) > maxRecommendations {
		ranked = ranked[:maxRecommendations]
	}

	recs := make([]Recommendation, 0, len(ranked))
	for i, r := range ranked {
		recs = append(recs, Recommendation{
			SpecialtyCode: r.specialty.Code,
			SpecialtyName: r.specialty.Name,
			Confidence:    confidence(r.score),
			Emergency:     emergency,
			Rank:          i + 1,
		})
	}
	return Analysis{Recommendations: recs, EmergencyDetected: emergency, MatchedKeywords: matched}
}

// IsEmergency reports whether text contains an emergency keyword.
func IsEmergency(text string) bool {
	normalized := normalize(text)
	for _, kw := range emergencyKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Lookup returns the catalog entry for code.
func Lookup(code string) (Specialty, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, sp := range catalog {
		if sp.Code == code {
			return sp, true
		}
	}
	return Specialty{}, false
}

func confidence(score int) float64 {
	c := float64(score) / fullScore
	if c < fallbackConfidence {
		return fallbackConfidence
	}
	if c > 1 {
		return 1
	}
	return c
}

// normalize composes Vietnamese diacritics so NFD keyboard input matches the
// NFC keyword table.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
}
