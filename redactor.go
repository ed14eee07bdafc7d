// Package redactor provides reversible redaction of sensitive text spans.
//
// Detected entities (emails, phone numbers, person names, custom codewords,
// caller-defined patterns) are replaced with deterministic placeholder
// tokens like PERSON_1 or EMAIL_ADDRESS_2, and a mapping table is returned
// so the original text can be restored later — typically after the redacted
// text has made a round trip through an external consumer such as an LLM.
//
// Near-duplicate surface forms of the same entity ("John Smith" vs
// "Jon Smith") can be consolidated into a single placeholder via a
// configurable fuzzy level. Consolidation is deliberately lossy: all merged
// variants restore to the first-seen surface form.
//
// Entity detection runs behind the EntityDetector interface. The built-in
// RegexDetector handles pattern and deny-list recognizers; NLP-backed
// detectors can be plugged in without touching the mapping engine.
package redactor

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	redactorotel "github.com/Xaisr/redactor/internal/otel"
	"github.com/Xaisr/redactor/patterns"
)

var tracer = redactorotel.Tracer("github.com/Xaisr/redactor")

// CustomEntityType is the reserved entity type assigned to custom-word
// matches. Registering an additional recognizer under this type while
// custom words are configured is rejected as ambiguous.
const CustomEntityType = "CUSTOM"

// Redactor turns text into a redacted copy plus a reversible mapping table,
// and restores originals from such tables.
//
// Redact and Restore are safe to call concurrently against one instance.
// AddRecognizer is a write operation guarded by the same lock; complete
// recognizer registration before concurrent redaction begins, or accept
// that in-flight calls use the set as of their start.
type Redactor struct {
	mu          sync.RWMutex
	recognizers []Recognizer
	recognized  map[string]bool // recognizer IDs, for idempotent registration

	detector       EntityDetector
	fuzzy          *FuzzyMatcher
	hasCustomWords bool
	lenientRestore bool
}

// Option configures a Redactor.
type Option func(*options)

type options struct {
	customWords    []string
	fuzzyLevel     int
	entityTypes    []string
	patternFile    string
	recognizers    []Recognizer
	detector       EntityDetector
	lenientRestore bool
	skipDefaults   bool
}

// WithCustomWords adds literal words that are always redacted under the
// CUSTOM entity type, regardless of the recognizer set.
func WithCustomWords(words ...string) Option {
	return func(o *options) { o.customWords = append(o.customWords, words...) }
}

// WithFuzzyLevel sets the fuzzy consolidation level (0 = exact matching
// only; 1..3 merge progressively less similar surface forms).
func WithFuzzyLevel(level int) Option {
	return func(o *options) { o.fuzzyLevel = level }
}

// WithEntityTypes restricts the built-in recognizer set to the given entity
// types. Custom words and explicitly registered recognizers are unaffected.
func WithEntityTypes(types ...string) Option {
	return func(o *options) { o.entityTypes = append(o.entityTypes, types...) }
}

// WithPatternFile layers a Presidio-format recognizer YAML file over the
// embedded defaults. A missing file is a no-op.
func WithPatternFile(path string) Option {
	return func(o *options) { o.patternFile = path }
}

// WithRecognizers registers additional recognizers at construction time.
func WithRecognizers(recs ...Recognizer) Option {
	return func(o *options) { o.recognizers = append(o.recognizers, recs...) }
}

// WithDetector replaces the built-in RegexDetector with another
// EntityDetector implementation (e.g. a remote NLP analyzer).
func WithDetector(d EntityDetector) Option {
	return func(o *options) { o.detector = d }
}

// WithLenientRestore makes Restore pass unmapped placeholder-shaped tokens
// through verbatim instead of failing with a RestoreLookupError.
func WithLenientRestore() Option {
	return func(o *options) { o.lenientRestore = true }
}

// WithoutDefaultRecognizers drops the embedded recognizer set so only
// custom words and explicitly provided recognizers are active.
func WithoutDefaultRecognizers() Option {
	return func(o *options) { o.skipDefaults = true }
}

// New creates a Redactor. Without options it detects the embedded default
// entity types with the built-in regex detector at fuzzy level 0.
func New(opts ...Option) (*Redactor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fuzzy, err := NewFuzzyMatcher(o.fuzzyLevel)
	if err != nil {
		return nil, err
	}

	var configs []RecognizerConfig
	if !o.skipDefaults {
		defaults, err := defaultRecognizerConfigs()
		if err != nil {
			return nil, err
		}
		configs = defaults
	}
	if o.patternFile != "" {
		rf, err := LoadRecognizerFile(o.patternFile)
		if err != nil {
			return nil, err
		}
		if rf != nil {
			configs = MergeRecognizerConfigs(configs, rf.Recognizers)
		}
	}
	configs = FilterByEntityTypes(configs, o.entityTypes)

	recs, err := CompileRecognizers(configs)
	if err != nil {
		return nil, err
	}

	r := &Redactor{
		recognizers:    recs,
		recognized:     make(map[string]bool, len(recs)+len(o.recognizers)+1),
		detector:       o.detector,
		fuzzy:          fuzzy,
		lenientRestore: o.lenientRestore,
	}
	if r.detector == nil {
		r.detector = NewRegexDetector()
	}
	for _, rec := range recs {
		r.recognized[rec.id] = true
	}

	if len(o.customWords) > 0 {
		cw, err := customWordsRecognizer(o.customWords)
		if err != nil {
			return nil, configErrorf("custom_words", "%w", err)
		}
		r.recognizers = append(r.recognizers, cw)
		r.recognized[cw.id] = true
		r.hasCustomWords = true
	}

	for _, rec := range o.recognizers {
		if err := r.AddRecognizer(rec); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// defaultRecognizerConfigs parses the embedded default recognizer set.
func defaultRecognizerConfigs() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.DefaultYAML())
	if err != nil {
		return nil, configErrorf("defaults", "parsing embedded recognizers: %w", err)
	}
	return rf.Recognizers, nil
}

// MustNew is like New but panics on error. Useful for zero-config startup
// where the embedded defaults are expected to always compile.
func MustNew(opts ...Option) *Redactor {
	r, err := New(opts...)
	if err != nil {
		panic("redactor.New: " + err.Error())
	}
	return r
}

// AddRecognizer registers an additional recognizer. Registration is
// idempotent per distinct recognizer identity and must not race with
// in-flight Redact calls; the instance lock serializes both.
//
// A recognizer under the reserved CUSTOM type conflicts with configured
// custom words (the placeholder numbering would be ambiguous between the
// two sources) and is rejected with a ConfigError.
func (r *Redactor) AddRecognizer(rec Recognizer) error {
	if rec.id == "" {
		return configErrorf("recognizer", "recognizer was not built; use RecognizerBuilder.Build")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.entityType == CustomEntityType && r.hasCustomWords {
		return configErrorf("recognizer",
			"entity type %s is reserved for custom words on this instance", CustomEntityType)
	}
	if r.recognized[rec.id] {
		return nil
	}
	r.recognized[rec.id] = true
	r.recognizers = append(r.recognizers, rec)
	return nil
}

// Recognizers returns a snapshot of the active recognizer set.
func (r *Redactor) Recognizers() []Recognizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Recognizer, len(r.recognizers))
	copy(out, r.recognizers)
	return out
}

// Redact detects entity spans in text and replaces them with placeholder
// tokens, returning the redacted text and the mapping table needed to
// reverse it. Output is deterministic for identical text, recognizer set
// and fuzzy level. On any failure no partial text is returned.
//
// Placeholder counters are scoped to this call: every Redact starts at
// {TYPE}_1, and the returned mapping is the only state the caller needs.
func (r *Redactor) Redact(ctx context.Context, text string) (string, *Mapping, error) {
	ctx, span := tracer.Start(ctx, "redactor.redact")
	defer span.End()

	r.mu.RLock()
	recs := make([]Recognizer, len(r.recognizers))
	copy(recs, r.recognizers)
	detector := r.detector
	fuzzy := r.fuzzy
	r.mu.RUnlock()

	raw, err := detector.Detect(ctx, text, recs)
	if err != nil {
		return "", nil, &DetectionError{Err: err}
	}

	accepted := resolveOverlaps(raw)
	redacted, mapping := substitute(text, accepted, fuzzy)

	span.SetAttributes(
		attribute.Int("redact.raw_matches", len(raw)),
		attribute.Int("redact.accepted_spans", len(accepted)),
		attribute.Int("redact.entities", mapping.Len()),
	)

	return redacted, mapping, nil
}

// canonicalEntity is the deduplicated identity behind one placeholder.
// It lives only for the duration of a single Redact call.
type canonicalEntity struct {
	surface string // first-seen surface form; the restore target
	token   string
}

// substitute assigns placeholder tokens to the accepted spans and splices
// them into the text. Spans must be non-overlapping and ordered by start.
func substitute(text string, spans []RawMatch, fuzzy *FuzzyMatcher) (string, *Mapping) {
	mapping := NewMapping()
	if len(spans) == 0 {
		return text, mapping
	}

	counters := make(map[string]int)
	entities := make(map[string][]canonicalEntity)

	// Left-to-right: reuse a placeholder when the fuzzy matcher judges the
	// surface to be a known entity of the same type, otherwise allocate the
	// next id for that type. Ids are never reused within a call.
	tokens := make([]string, len(spans))
	for i, span := range spans {
		token := ""
		for _, ent := range entities[span.EntityType] {
			if fuzzy.Same(span.EntityType, span.Text, ent.surface) {
				token = ent.token
				break
			}
		}
		if token == "" {
			counters[span.EntityType]++
			token = span.EntityType + "_" + strconv.Itoa(counters[span.EntityType])
			entities[span.EntityType] = append(entities[span.EntityType],
				canonicalEntity{surface: span.Text, token: token})
			mapping.Set(token, span.Text)
		}
		tokens[i] = token
	}

	// Right-to-left splice so earlier spans' offsets stay valid.
	result := []byte(text)
	for i := len(spans) - 1; i >= 0; i-- {
		span := spans[i]
		result = append(result[:span.Start], append([]byte(tokens[i]), result[span.End:]...)...)
	}

	return string(result), mapping
}

// Restore replaces every mapped placeholder occurrence in redacted text
// with its original surface. By default a placeholder-shaped token missing
// from the mapping fails with a RestoreLookupError; WithLenientRestore
// switches to passing such tokens through verbatim.
func (r *Redactor) Restore(ctx context.Context, redacted string, mapping *Mapping) (string, error) {
	_, span := tracer.Start(ctx, "redactor.restore")
	defer span.End()

	restored, err := restoreText(redacted, mapping, !r.lenientRestore)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("restore.entries", mapping.Len()))
	return restored, nil
}

// Restore is the package-level restore for callers that persisted a mapping
// and no longer hold a Redactor. It uses the strict unmapped-token policy.
func Restore(redacted string, mapping *Mapping) (string, error) {
	return restoreText(redacted, mapping, true)
}
