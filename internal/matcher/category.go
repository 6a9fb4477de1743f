package matcher

import "strings"

// DefaultCategory is assigned when no keyword matches.
const DefaultCategory = "Inne"

// categoryKeywords maps category names to the product words that imply them.
// Order matters: the first category with a hit wins.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"Warzywa i Owoce", []string{
		"pomidor", "ogórek", "jabłko", "banan", "marchew", "ziemniak",
		"cebula", "sałata", "papryka", "cytryna", "owoce", "warzywa",
	}},
	{"Nabiał", []string{
		"mleko", "ser", "jogurt", "masło", "śmietana", "kefir", "twaróg", "jajka",
	}},
	{"Mięso i Wędliny", []string{
		"kurczak", "wołowina", "wieprzowina", "szynka", "kiełbasa", "parówki", "mięso",
	}},
	{"Pieczywo", []string{
		"chleb", "bułka", "bagietka", "rogal", "chałka",
	}},
	{"Napoje", []string{
		"woda", "sok", "cola", "piwo", "wino", "herbata", "kawa", "napój",
	}},
	{"Artykuły Chemiczne", []string{
		"mydło", "szampon", "proszek", "płyn", "papier",
	}},
}

// CategoryFor guesses the category of a normalized product name.
func CategoryFor(normalized string) string {
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(normalized, kw) {
				return c.name
			}
		}
	}
	return DefaultCategory
}
