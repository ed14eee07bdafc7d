package redactor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// DefaultPatternScore is the base confidence assigned to builder patterns
// that do not specify their own score.
const DefaultPatternScore = 0.6

// DefaultDenyListScore is the confidence assigned to deny-list literal
// matches. Deny-list entries are exact words the caller asked to redact,
// so they score as certain.
const DefaultDenyListScore = 1.0

// Pattern is a single scored regex within a recognizer.
type Pattern struct {
	Name  string
	Regex string
	Score float64

	compiled *regexp.Regexp
}

// Recognizer is an immutable description of a custom entity: one or more
// regex patterns and/or a deny list of literal words, plus optional context
// keywords that boost match confidence when they appear near a match.
//
// A built Recognizer is safe to share across Redactor instances and
// concurrent Redact calls.
type Recognizer struct {
	name          string
	entityType    string
	patterns      []Pattern
	denyList      []string
	denyListScore float64
	denyRe        *regexp.Regexp
	context       []string
	validateLuhn  bool
	validateIBAN  bool

	id string
}

// Name returns the recognizer name (defaults to the entity type).
func (r Recognizer) Name() string { return r.name }

// EntityType returns the uppercase entity type this recognizer detects.
func (r Recognizer) EntityType() string { return r.entityType }

// Patterns returns the recognizer's scored regex patterns.
func (r Recognizer) Patterns() []Pattern { return r.patterns }

// DenyList returns the literal words this recognizer matches exactly.
func (r Recognizer) DenyList() []string { return r.denyList }

// ContextWords returns the keywords that boost confidence when found near a match.
func (r Recognizer) ContextWords() []string { return r.context }

// ID returns a stable identity for the recognizer, derived from its type,
// patterns, deny list and context words. AddRecognizer uses it to make
// registration idempotent per distinct recognizer.
func (r Recognizer) ID() string { return r.id }

func (r *Recognizer) computeID() {
	h := sha256.New()
	h.Write([]byte(r.entityType))
	for _, p := range r.patterns {
		h.Write([]byte{0})
		h.Write([]byte(p.Regex))
	}
	for _, w := range r.denyList {
		h.Write([]byte{1})
		h.Write([]byte(w))
	}
	words := append([]string(nil), r.context...)
	sort.Strings(words)
	for _, w := range words {
		h.Write([]byte{2})
		h.Write([]byte(w))
	}
	r.id = hex.EncodeToString(h.Sum(nil)[:12])
}

// compile builds the runtime regexes. Must be called exactly once before use.
func (r *Recognizer) compile() error {
	for i := range r.patterns {
		re, err := regexp.Compile(r.patterns[i].Regex)
		if err != nil {
			return configErrorf("pattern", "compiling %q in recognizer %q: %w",
				r.patterns[i].Regex, r.name, err)
		}
		r.patterns[i].compiled = re
	}
	if len(r.denyList) > 0 {
		re, err := regexp.Compile(denyListRegex(r.denyList))
		if err != nil {
			return configErrorf("deny_list", "compiling deny list for recognizer %q: %w", r.name, err)
		}
		r.denyRe = re
	}
	return nil
}

// denyListRegex builds a case-insensitive alternation of quoted literals.
// Word boundaries are applied only where the literal edge is a word
// character, so entries like "PROJECT-X" still match as standalone words.
func denyListRegex(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		quoted := regexp.QuoteMeta(w)
		if isWordChar(w[0]) {
			quoted = `\b` + quoted
		}
		if isWordChar(w[len(w)-1]) {
			quoted += `\b`
		}
		parts = append(parts, quoted)
	}
	return `(?i)(?:` + strings.Join(parts, "|") + `)`
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// RecognizerBuilder assembles an immutable Recognizer. Build fails fast on
// an empty entity type, a missing pattern/deny list, or an invalid regex, so
// a broken recognizer is never registered.
type RecognizerBuilder struct {
	rec Recognizer
}

// NewRecognizer starts a builder for the given entity type. The type is
// normalized to uppercase; it becomes the placeholder prefix (e.g. a
// recognizer for "ticket_id" yields TICKET_ID_1 placeholders).
func NewRecognizer(entityType string) *RecognizerBuilder {
	t := strings.ToUpper(strings.TrimSpace(entityType))
	return &RecognizerBuilder{rec: Recognizer{
		name:          t,
		entityType:    t,
		denyListScore: DefaultDenyListScore,
	}}
}

// WithName sets a display name distinct from the entity type.
func (b *RecognizerBuilder) WithName(name string) *RecognizerBuilder {
	b.rec.name = name
	return b
}

// WithPattern adds a regex pattern at the default score.
func (b *RecognizerBuilder) WithPattern(regex string) *RecognizerBuilder {
	return b.WithScoredPattern("", regex, DefaultPatternScore)
}

// WithScoredPattern adds a named regex pattern with an explicit base score.
func (b *RecognizerBuilder) WithScoredPattern(name, regex string, score float64) *RecognizerBuilder {
	b.rec.patterns = append(b.rec.patterns, Pattern{Name: name, Regex: regex, Score: score})
	return b
}

// WithDenyList adds literal words to match exactly (case-insensitive).
func (b *RecognizerBuilder) WithDenyList(words ...string) *RecognizerBuilder {
	b.rec.denyList = append(b.rec.denyList, words...)
	return b
}

// WithContext adds context keywords. When one appears within the detector's
// context window around a match, the match score is boosted by the context
// factor, saturating at 1.0.
func (b *RecognizerBuilder) WithContext(words ...string) *RecognizerBuilder {
	b.rec.context = append(b.rec.context, words...)
	return b
}

// Build validates and compiles the recognizer. The returned value is
// immutable and reusable across Redactor instances.
func (b *RecognizerBuilder) Build() (Recognizer, error) {
	rec := b.rec
	if rec.entityType == "" {
		return Recognizer{}, configErrorf("entity_type", "entity type must not be empty")
	}
	if len(rec.patterns) == 0 && len(rec.denyList) == 0 {
		return Recognizer{}, configErrorf("pattern", "recognizer %q has no pattern and no deny list", rec.name)
	}
	if err := rec.compile(); err != nil {
		return Recognizer{}, err
	}
	rec.computeID()
	return rec, nil
}
