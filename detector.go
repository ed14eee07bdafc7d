package redactor

import (
	"context"
	"math/big"
	"strings"
)

const (
	// DefaultMinScore is the Presidio-compatible minimum confidence
	// threshold. Matches below this score are discarded unless boosted
	// by context words.
	DefaultMinScore = 0.5

	// ContextBoost is the score increment applied when a context word is
	// found near a match, saturating at 1.0. Matches Presidio's default
	// context_similarity_factor.
	ContextBoost = 0.35

	// DefaultContextWindow is the number of characters searched before and
	// after a match when looking for context words.
	DefaultContextWindow = 100
)

// RawMatch is one detected entity span over the original text. Offsets are
// byte offsets into the original text, half-open ([Start, End)).
type RawMatch struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// EntityDetector produces raw entity matches for a text given the active
// recognizer set. Implementations must be safe for concurrent use and must
// honor ctx cancellation if detection is expensive (e.g. model inference).
//
// The built-in RegexDetector covers pattern and deny-list recognizers; an
// NLP-backed implementation (see the analyzer package) can be swapped in
// for context-aware detection of unstructured entities.
type EntityDetector interface {
	Detect(ctx context.Context, text string, recognizers []Recognizer) ([]RawMatch, error)
}

// RegexDetector is the built-in reference EntityDetector. It evaluates each
// recognizer's patterns and deny list against the text, applies checksum
// gates (Luhn, IBAN) where configured, and adjusts scores with context-word
// boosting before filtering on the minimum score.
type RegexDetector struct {
	minScore      float64
	contextWindow int
}

// RegexDetectorOption configures a RegexDetector.
type RegexDetectorOption func(*RegexDetector)

// WithMinScore overrides the minimum confidence threshold for matches.
func WithMinScore(score float64) RegexDetectorOption {
	return func(d *RegexDetector) { d.minScore = score }
}

// WithContextWindow overrides the context search window size in characters.
func WithContextWindow(chars int) RegexDetectorOption {
	return func(d *RegexDetector) { d.contextWindow = chars }
}

// NewRegexDetector creates the built-in detector with default thresholds.
func NewRegexDetector(opts ...RegexDetectorOption) *RegexDetector {
	d := &RegexDetector{
		minScore:      DefaultMinScore,
		contextWindow: DefaultContextWindow,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect implements EntityDetector.
func (d *RegexDetector) Detect(ctx context.Context, text string, recognizers []Recognizer) ([]RawMatch, error) {
	var matches []RawMatch

	for _, rec := range recognizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, p := range rec.patterns {
			for _, loc := range p.compiled.FindAllStringIndex(text, -1) {
				m, ok := d.buildMatch(text, rec, loc[0], loc[1], p.Score)
				if ok {
					matches = append(matches, m)
				}
			}
		}

		if rec.denyRe != nil {
			for _, loc := range rec.denyRe.FindAllStringIndex(text, -1) {
				m, ok := d.buildMatch(text, rec, loc[0], loc[1], rec.denyListScore)
				if ok {
					matches = append(matches, m)
				}
			}
		}
	}

	return matches, nil
}

// buildMatch applies checksum gates and context boosting, returning false
// when the candidate should be dropped.
func (d *RegexDetector) buildMatch(text string, rec Recognizer, start, end int, baseScore float64) (RawMatch, bool) {
	value := text[start:end]

	if rec.validateIBAN {
		clean := strings.ReplaceAll(value, " ", "")
		if !validateIBANLength(clean) || !validateIBANChecksum(clean) {
			return RawMatch{}, false
		}
	}
	if rec.validateLuhn {
		if !luhnValid(stripNonDigits(value)) {
			return RawMatch{}, false
		}
	}

	score := d.boostScore(text, start, baseScore, rec.context)
	if score < d.minScore {
		return RawMatch{}, false
	}

	return RawMatch{
		EntityType: rec.entityType,
		Start:      start,
		End:        end,
		Text:       value,
		Score:      score,
	}, true
}

// boostScore raises the base score by ContextBoost when any context word is
// found within the window around the match position, saturating at 1.0.
func (d *RegexDetector) boostScore(text string, position int, baseScore float64, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return baseScore
	}
	start := position - d.contextWindow
	if start < 0 {
		start = 0
	}
	end := position + d.contextWindow
	if end > len(text) {
		end = len(text)
	}
	window := strings.ToLower(text[start:end])

	for _, cw := range contextWords {
		if strings.Contains(window, strings.ToLower(cw)) {
			boosted := baseScore + ContextBoost
			if boosted > 1.0 {
				boosted = 1.0
			}
			return boosted
		}
	}
	return baseScore
}

// luhnValid checks whether a digit string passes the Luhn algorithm (ISO/IEC 7812).
func luhnValid(number string) bool {
	n := len(number)
	if n < 2 {
		return false
	}
	sum := 0
	alt := false
	for i := n - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// validateIBANChecksum verifies the MOD-97 check digits per ISO 13616.
// The IBAN is rearranged (country+check moved to end), letters are converted
// to digits (A=10 ... Z=35), and the remainder mod 97 must equal 1.
func validateIBANChecksum(iban string) bool {
	if len(iban) < 5 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var numStr strings.Builder
	for _, ch := range rearranged {
		switch {
		case ch >= '0' && ch <= '9':
			numStr.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			numStr.WriteString(big.NewInt(int64(ch - 'A' + 10)).String())
		default:
			return false
		}
	}
	n := new(big.Int)
	if _, ok := n.SetString(numStr.String(), 10); !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// ibanLengths maps country codes to their fixed IBAN length per the
// ISO 13616 registry (common SEPA subset).
var ibanLengths = map[string]int{
	"AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28, "CZ": 24,
	"DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FR": 27,
	"GB": 22, "GR": 27, "HR": 21, "HU": 28, "IE": 22, "IS": 26,
	"IT": 27, "LI": 21, "LT": 20, "LU": 20, "LV": 21, "MC": 27,
	"MT": 31, "NL": 18, "NO": 15, "PL": 28, "PT": 25, "RO": 24,
	"SE": 24, "SI": 19, "SK": 24, "SM": 27,
}

// validateIBANLength checks that the IBAN has the correct length for its country code.
func validateIBANLength(iban string) bool {
	if len(iban) < 2 {
		return false
	}
	expected, ok := ibanLengths[iban[:2]]
	return ok && len(iban) == expected
}

// stripNonDigits removes all non-digit characters from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
