package redactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactAndRestoreRoundTrip(t *testing.T) {
	red := MustNew()
	ctx := context.Background()

	input := "My name is John Doe and my email is john.doe@example.com"

	redacted, mapping, err := red.Redact(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "My name is PERSON_1 and my email is EMAIL_ADDRESS_1", redacted)

	value, ok := mapping.Get("PERSON_1")
	require.True(t, ok)
	assert.Equal(t, "John Doe", value)
	value, ok = mapping.Get("EMAIL_ADDRESS_1")
	require.True(t, ok)
	assert.Equal(t, "john.doe@example.com", value)
	assert.Equal(t, 2, mapping.Len())

	restored, err := red.Restore(ctx, redacted, mapping)
	require.NoError(t, err)
	assert.Equal(t, input, restored)
}

func TestRedactCustomWords(t *testing.T) {
	red := MustNew(WithCustomWords("PROJECT-X"))
	ctx := context.Background()

	redacted, mapping, err := red.Redact(ctx, "Discussing PROJECT-X details")
	require.NoError(t, err)
	assert.Equal(t, "Discussing CUSTOM_1 details", redacted)

	value, ok := mapping.Get("CUSTOM_1")
	require.True(t, ok)
	assert.Equal(t, "PROJECT-X", value)

	restored, err := red.Restore(ctx, redacted, mapping)
	require.NoError(t, err)
	assert.Equal(t, "Discussing PROJECT-X details", restored)
}

func TestRedactCustomWordCaseInsensitive(t *testing.T) {
	red := MustNew(WithCustomWords("codename-falcon"))
	ctx := context.Background()

	redacted, mapping, err := red.Redact(ctx, "About Codename-Falcon again")
	require.NoError(t, err)
	assert.Equal(t, "About CUSTOM_1 again", redacted)

	// The mapping holds the surface as it appeared in the text, so restore
	// reproduces the original exactly.
	value, _ := mapping.Get("CUSTOM_1")
	assert.Equal(t, "Codename-Falcon", value)
}

func TestFuzzyConsolidation(t *testing.T) {
	ctx := context.Background()
	input := "Dear customer John Smith, thanks for calling. Regards to Jon Smith."

	t.Run("level 1 merges near-duplicates", func(t *testing.T) {
		red := MustNew(WithFuzzyLevel(1))
		redacted, mapping, err := red.Redact(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, "Dear customer PERSON_1, thanks for calling. Regards to PERSON_1.", redacted)
		require.Equal(t, 1, mapping.Len())

		// Merged variants restore to the first-seen surface: this is the
		// documented lossy behavior of fuzzy mode.
		value, _ := mapping.Get("PERSON_1")
		assert.Equal(t, "John Smith", value)

		restored, err := red.Restore(ctx, redacted, mapping)
		require.NoError(t, err)
		assert.Equal(t, "Dear customer John Smith, thanks for calling. Regards to John Smith.", restored)
	})

	t.Run("level 0 keeps variants separate", func(t *testing.T) {
		red := MustNew()
		redacted, mapping, err := red.Redact(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, "Dear customer PERSON_1, thanks for calling. Regards to PERSON_2.", redacted)
		assert.Equal(t, 2, mapping.Len())

		restored, err := red.Restore(ctx, redacted, mapping)
		require.NoError(t, err)
		assert.Equal(t, input, restored)
	})
}

func TestTypeIsolation(t *testing.T) {
	ctx := context.Background()

	codeword, err := NewRecognizer("CODEWORD").WithDenyList("falcon one").Build()
	require.NoError(t, err)
	callsign, err := NewRecognizer("CALLSIGN").WithDenyList("falcon two").Build()
	require.NoError(t, err)

	// "falcon one" vs "falcon two" reach the level-3 similarity threshold,
	// so the same surfaces under one type do merge (control case below).
	t.Run("different types never merge", func(t *testing.T) {
		red := MustNew(
			WithoutDefaultRecognizers(),
			WithFuzzyLevel(MaxFuzzyLevel),
			WithRecognizers(codeword, callsign),
		)
		redacted, mapping, err := red.Redact(ctx, "falcon one met falcon two")
		require.NoError(t, err)
		assert.Equal(t, "CODEWORD_1 met CALLSIGN_1", redacted)
		assert.Equal(t, 2, mapping.Len())
	})

	t.Run("same type merges at the same similarity", func(t *testing.T) {
		both, err := NewRecognizer("CODEWORD").WithDenyList("falcon one", "falcon two").Build()
		require.NoError(t, err)
		red := MustNew(
			WithoutDefaultRecognizers(),
			WithFuzzyLevel(MaxFuzzyLevel),
			WithRecognizers(both),
		)
		redacted, mapping, err := red.Redact(ctx, "falcon one met falcon two")
		require.NoError(t, err)
		assert.Equal(t, "CODEWORD_1 met CODEWORD_1", redacted)
		require.Equal(t, 1, mapping.Len())
		value, _ := mapping.Get("CODEWORD_1")
		assert.Equal(t, "falcon one", value)
	})
}

func TestRedactDeterminism(t *testing.T) {
	red := MustNew(WithCustomWords("PROJECT-X"), WithFuzzyLevel(1))
	ctx := context.Background()
	input := "Dear Jane Roe (jane@corp.example), PROJECT-X ships 2026-01-01. Call +4915112345678."

	text1, mapping1, err := red.Redact(ctx, input)
	require.NoError(t, err)
	text2, mapping2, err := red.Redact(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, text1, text2)
	assert.Equal(t, mapping1.Entries(), mapping2.Entries())
}

func TestMappingCompleteness(t *testing.T) {
	red := MustNew(WithCustomWords("atlas", "hermes"))
	ctx := context.Background()

	redacted, mapping, err := red.Redact(ctx,
		"Contact Mr Alan Turing at alan@bletchley.example or +441234567890; codewords atlas and hermes.")
	require.NoError(t, err)

	inText := make(map[string]bool)
	for _, token := range placeholderRe.FindAllString(redacted, -1) {
		inText[token] = true
		_, ok := mapping.Get(token)
		assert.True(t, ok, "placeholder %s missing from mapping", token)
	}
	for _, token := range mapping.Tokens() {
		assert.True(t, inText[token], "mapping token %s not present in redacted text", token)
	}
}

func TestPlaceholderCountersResetPerCall(t *testing.T) {
	red := MustNew()
	ctx := context.Background()

	_, mapping1, err := red.Redact(ctx, "Mail a@example.com and b@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"EMAIL_ADDRESS_1", "EMAIL_ADDRESS_2"}, mapping1.Tokens())

	// A fresh call starts numbering at 1 again; no cross-call state leaks.
	_, mapping2, err := red.Redact(ctx, "Mail c@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"EMAIL_ADDRESS_1"}, mapping2.Tokens())
}

func TestAddRecognizer(t *testing.T) {
	t.Run("idempotent per identity", func(t *testing.T) {
		red := MustNew(WithoutDefaultRecognizers(), WithCustomWords("x"))
		rec, err := NewRecognizer("TICKET").WithPattern(`TCK-[0-9]+`).Build()
		require.NoError(t, err)

		require.NoError(t, red.AddRecognizer(rec))
		require.NoError(t, red.AddRecognizer(rec))

		count := 0
		for _, r := range red.Recognizers() {
			if r.EntityType() == "TICKET" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("reserved CUSTOM type rejected with custom words", func(t *testing.T) {
		red := MustNew(WithCustomWords("secret"))
		rec, err := NewRecognizer("CUSTOM").WithPattern(`[0-9]+`).Build()
		require.NoError(t, err)

		err = red.AddRecognizer(rec)
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("CUSTOM type allowed without custom words", func(t *testing.T) {
		red := MustNew()
		rec, err := NewRecognizer("CUSTOM").WithDenyList("classified").Build()
		require.NoError(t, err)
		require.NoError(t, red.AddRecognizer(rec))
	})

	t.Run("unbuilt recognizer rejected", func(t *testing.T) {
		red := MustNew()
		err := red.AddRecognizer(Recognizer{})
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestNewInvalidFuzzyLevel(t *testing.T) {
	for _, level := range []int{-1, MaxFuzzyLevel + 1, 99} {
		_, err := New(WithFuzzyLevel(level))
		require.Error(t, err, "level %d", level)
		assert.True(t, IsConfigError(err))
	}
}

var errDetectorDown = errors.New("model unavailable")

type failingDetector struct{}

func (failingDetector) Detect(context.Context, string, []Recognizer) ([]RawMatch, error) {
	return nil, errDetectorDown
}

func TestDetectorFailurePropagates(t *testing.T) {
	red := MustNew(WithDetector(failingDetector{}))

	redacted, mapping, err := red.Redact(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, IsDetectionError(err))
	// The underlying detector error is preserved unchanged.
	assert.ErrorIs(t, err, errDetectorDown)
	// No partial output on failure.
	assert.Empty(t, redacted)
	assert.Nil(t, mapping)
}

func TestRedactNoMatches(t *testing.T) {
	red := MustNew()
	redacted, mapping, err := red.Redact(context.Background(), "nothing sensitive here")
	require.NoError(t, err)
	assert.Equal(t, "nothing sensitive here", redacted)
	assert.Equal(t, 0, mapping.Len())
}

func TestRedactEmptyText(t *testing.T) {
	red := MustNew()
	redacted, mapping, err := red.Redact(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, redacted)
	assert.Equal(t, 0, mapping.Len())
}

func TestConcurrentRedactAndRestore(t *testing.T) {
	red := MustNew(WithFuzzyLevel(1))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf("Mail user%d@example.com about invoice %d", i, i)
			redacted, mapping, err := red.Redact(ctx, input)
			if !assert.NoError(t, err) {
				return
			}
			restored, err := red.Restore(ctx, redacted, mapping)
			if assert.NoError(t, err) {
				assert.Equal(t, input, restored)
			}
		}(i)
	}
	wg.Wait()
}

func TestWithEntityTypesRestrictsDefaults(t *testing.T) {
	red := MustNew(WithEntityTypes("EMAIL_ADDRESS"))
	ctx := context.Background()

	redacted, mapping, err := red.Redact(ctx,
		"My name is John Doe and my email is john.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "My name is John Doe and my email is EMAIL_ADDRESS_1", redacted)
	assert.Equal(t, 1, mapping.Len())
}
