package matcher

import (
	"regexp"
	"strings"
)

var (
	multipackRe = regexp.MustCompile(`(?i)\d+\s*x\s*\d+\s*(kg|g|ml|l)\b`)
	weightRe    = regexp.MustCompile(`(?i)\d+([.,]\d+)?\s*(kg|gram[a-zów]*|g)\b`)
	volumeRe    = regexp.MustCompile(`(?i)\d+([.,]\d+)?\s*(litr[a-zów]*|ml|l)\b`)
	punctRe     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Store brands and marketing prefixes that carry no product identity.
var noiseWords = map[string]struct{}{
	"tesco":     {},
	"carrefour": {},
	"biedronka": {},
	"auchan":    {},
	"kaufland":  {},
	"lidl":      {},
	"żabka":     {},
	"organic":   {},
	"bio":       {},
	"eco":       {},
	"fresh":     {},
	"premium":   {},
	"deluxe":    {},
	"extra":     {},
}

// Polish freshness modifiers in all grammatical genders.
var modifierWords = map[string]struct{}{
	"naturalny": {}, "naturalna": {}, "naturalne": {},
	"świeży": {}, "świeża": {}, "świeże": {},
	"mrożony": {}, "mrożona": {}, "mrożone": {},
	"suszony": {}, "suszona": {}, "suszone": {},
}

// Normalize reduces a receipt product name to its canonical matching form:
// lowercase, no weights/volumes, no brand or freshness noise, single spaces.
// Normalize is idempotent.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	s = multipackRe.ReplaceAllString(s, " ")
	s = weightRe.ReplaceAllString(s, " ")
	s = volumeRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, ok := noiseWords[w]; ok {
			continue
		}
		if _, ok := modifierWords[w]; ok {
			continue
		}
		kept = append(kept, w)
	}

	return spaceRe.ReplaceAllString(strings.Join(kept, " "), " ")
}
