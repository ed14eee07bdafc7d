package redactor

import "regexp"

// placeholderRe matches placeholder-shaped tokens: an uppercase entity type
// (letters, digits, underscores) followed by an underscore and a positive
// integer, e.g. PERSON_1 or EMAIL_ADDRESS_2.
var placeholderRe = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*_[1-9][0-9]*\b`)

// restoreText substitutes every mapped placeholder occurrence with its
// original surface. Substitution is exact: no partial or fuzzy matching on
// tokens, and every occurrence of a token is replaced identically.
//
// When strict is true, a placeholder-shaped token without a mapping entry
// aborts the restore with a RestoreLookupError and no text is returned.
// When strict is false, unmapped tokens pass through verbatim.
func restoreText(redacted string, mapping *Mapping, strict bool) (string, error) {
	var lookupErr error

	restored := placeholderRe.ReplaceAllStringFunc(redacted, func(token string) string {
		if value, ok := mapping.Get(token); ok {
			return value
		}
		if strict && lookupErr == nil {
			lookupErr = &RestoreLookupError{Token: token}
		}
		return token
	})

	if lookupErr != nil {
		return "", lookupErr
	}
	return restored, nil
}
