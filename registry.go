package redactor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecognizerFile is the top-level YAML structure for a recognizer config
// file. It follows the Presidio recognizer registry format so existing
// pattern files can be reused.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig is the declarative YAML form of a recognizer.
type RecognizerConfig struct {
	Name            string          `yaml:"name" json:"name"`
	SupportedEntity string          `yaml:"supported_entity" json:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Context         []string        `yaml:"context,omitempty" json:"context,omitempty"`
	DenyList        []string        `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	DenyListScore   float64         `yaml:"deny_list_score,omitempty" json:"deny_list_score,omitempty"`
	// Checksum gates for structured identifiers.
	ValidateLuhn bool `yaml:"validate_luhn,omitempty" json:"validate_luhn,omitempty"`
	ValidateIBAN bool `yaml:"validate_iban,omitempty" json:"validate_iban,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer config.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
}

// isEnabled returns true if the recognizer is enabled (defaults to true when nil).
func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, configErrorf("pattern_file", "parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, configErrorf("pattern_file", "reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizerConfigs layers recognizer lists: embedded defaults first,
// then user overrides. Later layers replace earlier ones by matching on the
// Name field; new recognizers are appended.
func MergeRecognizerConfigs(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

// FilterByEntityTypes keeps only recognizers whose supported entity is in
// the allow list. An empty allow list keeps everything.
func FilterByEntityTypes(configs []RecognizerConfig, entityTypes []string) []RecognizerConfig {
	if len(entityTypes) == 0 {
		return configs
	}
	allowed := make(map[string]bool, len(entityTypes))
	for _, e := range entityTypes {
		allowed[strings.ToUpper(strings.TrimSpace(e))] = true
	}
	var filtered []RecognizerConfig
	for _, rc := range configs {
		if allowed[strings.ToUpper(rc.SupportedEntity)] {
			filtered = append(filtered, rc)
		}
	}
	return filtered
}

// CompileRecognizers converts declarative configs into compiled, immutable
// Recognizer values. Disabled recognizers are skipped; any invalid regex
// fails the whole compile with a ConfigError.
func CompileRecognizers(configs []RecognizerConfig) ([]Recognizer, error) {
	var recs []Recognizer
	for _, rc := range configs {
		if !rc.isEnabled() {
			continue
		}
		name := rc.Name
		if name == "" {
			name = rc.SupportedEntity
		}
		rec := Recognizer{
			name:          name,
			entityType:    strings.ToUpper(strings.TrimSpace(rc.SupportedEntity)),
			denyList:      rc.DenyList,
			denyListScore: rc.DenyListScore,
			context:       rc.Context,
			validateLuhn:  rc.ValidateLuhn,
			validateIBAN:  rc.ValidateIBAN,
		}
		if rec.entityType == "" {
			return nil, configErrorf("supported_entity",
				"recognizer %q has no supported_entity", name)
		}
		if rec.denyListScore == 0 {
			rec.denyListScore = DefaultDenyListScore
		}
		for _, p := range rc.Patterns {
			score := p.Score
			if score == 0 {
				score = DefaultPatternScore
			}
			rec.patterns = append(rec.patterns, Pattern{Name: p.Name, Regex: p.Regex, Score: score})
		}
		if len(rec.patterns) == 0 && len(rec.denyList) == 0 {
			return nil, configErrorf("pattern",
				"recognizer %q has no patterns and no deny list", name)
		}
		if err := rec.compile(); err != nil {
			return nil, err
		}
		rec.computeID()
		recs = append(recs, rec)
	}
	return recs, nil
}

// customWordsRecognizer builds the implicit deny-list recognizer for the
// caller's custom words. Each word matches as a case-insensitive literal
// under the reserved CUSTOM entity type.
func customWordsRecognizer(words []string) (Recognizer, error) {
	clean := make([]string, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			clean = append(clean, w)
		}
	}
	if len(clean) == 0 {
		return Recognizer{}, fmt.Errorf("no custom words")
	}
	return NewRecognizer(CustomEntityType).
		WithName("custom_words").
		WithDenyList(clean...).
		Build()
}
