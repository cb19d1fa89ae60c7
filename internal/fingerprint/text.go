// Package fingerprint derives deterministic content digests for deduplication.
//
// Text gets two digests: a raw hash over the lightly-normalized input for
// exact-match lookups, and a summary hash over the fully-normalized text so a
// markup/case/whitespace variant of previously-judged content still hits the
// verdict store.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TextHashes holds both digests for one text submission.
type TextHashes struct {
	RawHash        string
	NormalizedHash string
}

var (
	markupTags = regexp.MustCompile(`<[^>]*>`)

	// Emphasis markers are stripped outermost-first so **bold** does not
	// leave stray asterisks behind.
	emphasisMarkers = []*regexp.Regexp{
		regexp.MustCompile(`\*\*(.*?)\*\*`),
		regexp.MustCompile(`\*(.*?)\*`),
		regexp.MustCompile(`__(.*?)__`),
		regexp.MustCompile(`_(.*?)_`),
	}

	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalize applies the full normalization pipeline in fixed order: strip
// markup tags, strip emphasis markers keeping inner text, NFKC, lowercase,
// collapse punctuation to whitespace keeping letters and digits of any
// script, collapse and trim whitespace. Pure and deterministic.
func Normalize(input string) string {
	if input == "" {
		return ""
	}

	text := markupTags.ReplaceAllString(input, " ")
	for _, re := range emphasisMarkers {
		text = re.ReplaceAllString(text, " ${1} ")
	}
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// normalizeLight is the minimal normalization applied before the raw hash so
// trailing whitespace and letter case do not defeat exact-match dedup.
func normalizeLight(input string) string {
	return strings.TrimSpace(strings.ToLower(input))
}

// TextDigest returns the hex SHA-256 of the lightly-normalized input.
func TextDigest(input string) string {
	sum := sha256.Sum256([]byte(normalizeLight(input)))
	return hex.EncodeToString(sum[:])
}

// HashText computes both digests for a text submission.
func HashText(input string) TextHashes {
	return TextHashes{
		RawHash:        TextDigest(input),
		NormalizedHash: TextDigest(Normalize(input)),
	}
}
