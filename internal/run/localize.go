package run

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/routinekit/pkg/schema"
)

// Localizer picks display text in a preferred language and orders titles the way
// that language sorts them.
type Localizer struct {
	tag language.Tag
}

// NewLocalizer returns a localizer for a BCP 47 tag such as "en" or "es-CL".
// Unparseable tags fall back to English.
func NewLocalizer(lang string) *Localizer {
	tag, err := language.Parse(lang)
	if err != nil || tag == language.Und {
		tag = language.English
	}
	return &Localizer{tag: tag}
}

// Language returns the preferred language tag.
func (l *Localizer) Language() string {
	return l.tag.String()
}

// Pick returns the translation that best matches the preferred language, or the
// first translation when none is close. It returns nil for an empty set.
func (l *Localizer) Pick(tr schema.Translations) *schema.Translation {
	if len(tr) == 0 {
		return nil
	}
	tags := make([]language.Tag, len(tr))
	for i, t := range tr {
		tag, err := language.Parse(t.Language)
		if err != nil {
			tag = language.Und
		}
		tags[i] = tag
	}
	_, idx, conf := language.NewMatcher(tags).Match(l.tag)
	if conf == language.No {
		idx = 0
	}
	return &tr[idx]
}

// Text returns the best title and description from the first set that has a title.
func (l *Localizer) Text(sets ...schema.Translations) (title, description string) {
	for _, set := range sets {
		if t := l.Pick(set); t != nil && t.Title != "" {
			return t.Title, t.Description
		}
	}
	return "", ""
}

// Collator returns a fresh collator for the preferred language. Collators are not
// safe for concurrent use.
func (l *Localizer) Collator() *collate.Collator {
	return collate.New(l.tag, collate.IgnoreCase)
}

// Compare orders two titles alphabetically for the preferred language.
func (l *Localizer) Compare(c *collate.Collator, a, b string) int {
	return c.CompareString(norm.NFC.String(a), norm.NFC.String(b))
}
