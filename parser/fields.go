package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// Field names a value pulled out of a listing article.
type Field string

const (
	FieldTitle    Field = "title"
	FieldURL      Field = "url"
	FieldImage    Field = "image"
	FieldDuration Field = "duration"
	FieldViews    Field = "views"
	FieldAuthor   Field = "author"
	FieldNarrator Field = "narrator"
	FieldDate     Field = "date"
)

// Mode selects how a matched node is turned into a string.
type Mode int

const (
	// ModeText reads the node's text and normalizes it.
	ModeText Mode = iota
	// ModeAttr reads the first non-empty attribute listed in Attrs, undecoded.
	ModeAttr
	// ModeViews reads the node's text and keeps its digits.
	ModeViews
)

// FieldRule maps a CSS selector to one field.
type FieldRule struct {
	Field     Field
	Selector  string
	Mode      Mode
	Attrs     []string
	Default   string
	Transform func(string) string
}

// BookFields is the selector table for article.block-loop-item entries.
var BookFields = []FieldRule{
	{Field: FieldTitle, Selector: "h3.entry-title a", Mode: ModeText, Default: models.UnknownTitle},
	{Field: FieldURL, Selector: "h3.entry-title a", Mode: ModeAttr, Attrs: []string{"href"}},
	{Field: FieldImage, Selector: "img.wp-post-image", Mode: ModeAttr, Attrs: []string{"src", "data-src"}, Transform: CleanImageURL},
	{Field: FieldDuration, Selector: "div.duration", Mode: ModeText, Default: models.UnknownDuration},
	{Field: FieldViews, Selector: "div.views", Mode: ModeViews, Default: models.ZeroViews},
	{Field: FieldAuthor, Selector: "span.entry-auteur a", Mode: ModeText, Default: models.UnknownAuthor},
	{Field: FieldNarrator, Selector: "span.entry-voix a", Mode: ModeText},
	{Field: FieldDate, Selector: "span.posted-on a", Mode: ModeText},
}

// FieldValue is an extracted value. Found is false when Value is the default.
type FieldValue struct {
	Value string
	Found bool
}

// Fields holds the values extracted for one article.
type Fields map[Field]FieldValue

// Get returns the value for field, or "" if the field was never extracted.
func (f Fields) Get(field Field) string {
	return f[field].Value
}

// ExtractFields applies every rule to sel. It never panics; a rule that
// cannot be satisfied yields its default.
func ExtractFields(sel *goquery.Selection, rules []FieldRule) Fields {
	out := make(Fields, len(rules))
	for _, rule := range rules {
		out[rule.Field] = extractField(sel, rule)
	}
	return out
}

func extractField(sel *goquery.Selection, rule FieldRule) (value FieldValue) {
	value = FieldValue{Value: rule.Default}
	defer func() {
		if r := recover(); r != nil {
			value = FieldValue{Value: rule.Default}
		}
	}()

	if sel == nil {
		return value
	}
	node := sel.Find(rule.Selector).First()
	if node.Length() == 0 {
		return value
	}

	var raw string
	switch rule.Mode {
	case ModeText:
		raw = NormalizeText(node.Text())
	case ModeViews:
		raw = ExtractViews(node.Text())
	case ModeAttr:
		for _, attr := range rule.Attrs {
			if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
				raw = v
				break
			}
		}
	}
	if raw == "" {
		return value
	}
	if rule.Transform != nil {
		raw = rule.Transform(raw)
	}
	return FieldValue{Value: raw, Found: true}
}
