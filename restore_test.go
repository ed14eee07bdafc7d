package redactor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreAllOccurrences(t *testing.T) {
	m := NewMapping()
	m.Set("PERSON_1", "John Doe")
	m.Set("EMAIL_ADDRESS_1", "john@example.com")

	restored, err := Restore("PERSON_1 asked PERSON_1 to mail EMAIL_ADDRESS_1.", m)
	require.NoError(t, err)
	assert.Equal(t, "John Doe asked John Doe to mail john@example.com.", restored)
}

func TestRestoreStrictUnknownToken(t *testing.T) {
	m := NewMapping()
	m.Set("PERSON_1", "John Doe")

	restored, err := Restore("PERSON_1 met PERSON_2.", m)
	require.Error(t, err)
	assert.Empty(t, restored)
	assert.True(t, IsRestoreLookupError(err))

	var lookupErr *RestoreLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "PERSON_2", lookupErr.Token)
}

func TestRestoreLenientUnknownToken(t *testing.T) {
	red := MustNew(WithLenientRestore())
	m := NewMapping()
	m.Set("PERSON_1", "John Doe")

	restored, err := red.Restore(context.Background(), "PERSON_1 met PERSON_2.", m)
	require.NoError(t, err)
	assert.Equal(t, "John Doe met PERSON_2.", restored)
}

func TestRestoreIgnoresNonPlaceholderText(t *testing.T) {
	m := NewMapping()
	m.Set("PERSON_1", "John Doe")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase suffix is not a placeholder", "build person_1 now", "build person_1 now"},
		{"zero-numbered token is not a placeholder", "PERSON_0 stays", "PERSON_0 stays"},
		{"token inside a word stays", "XPERSON_1Y stays", "XPERSON_1Y stays"},
		{"plain text untouched", "no tokens at all", "no tokens at all"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restored, err := Restore(tt.in, m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, restored)
		})
	}
}

func TestRestoreStrictFlagsPlaceholderShapedWords(t *testing.T) {
	// Anything matching the placeholder shape is looked up, even if it was
	// never produced by Redact. Strict mode surfaces these as errors so the
	// caller learns the mapping is incomplete; lenient mode is the escape
	// hatch for text that legitimately contains such words.
	m := NewMapping()
	_, err := Restore("release VERSION_2 is out", m)
	require.Error(t, err)
	assert.True(t, IsRestoreLookupError(err))
}

func TestRestoreEmptyMapping(t *testing.T) {
	restored, err := Restore("nothing redacted here", NewMapping())
	require.NoError(t, err)
	assert.Equal(t, "nothing redacted here", restored)
}
