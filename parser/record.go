package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// ArticleSelector matches one book entry on a listing page.
const ArticleSelector = "article.block-loop-item"

const (
	postIDAttr   = "data-id"
	postIDPrefix = "post-"
)

// DefaultSeenSize caps the per-pass dedup set when no size is configured.
const DefaultSeenSize = 4096

// Outcome reports what happened to one article.
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// SeenSet tracks post identifiers already accepted in one listing pass.
type SeenSet interface {
	Seen(id string) bool
	Add(id string)
}

type lruSeenSet struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeenSet returns an empty dedup set holding at most size identifiers.
// Callers build one per pass; sets must never be shared between passes.
func NewSeenSet(size int) SeenSet {
	if size <= 0 {
		size = DefaultSeenSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(fmt.Sprintf("parser: seen set: %v", err))
	}
	return &lruSeenSet{cache: cache}
}

func (s *lruSeenSet) Seen(id string) bool {
	return s.cache.Contains(id)
}

func (s *lruSeenSet) Add(id string) {
	s.cache.Add(id, struct{}{})
}

// PostID reads the site identifier of an article, without the "post-" prefix.
func PostID(sel *goquery.Selection) string {
	raw, _ := sel.Attr(postIDAttr)
	return strings.TrimPrefix(strings.TrimSpace(raw), postIDPrefix)
}

// BuildBook assembles the record for one article. Duplicates and malformed
// articles are reported through the Outcome; err explains a Malformed one.
// A panic while reading the article is recovered here so that one bad
// article never aborts the rest of the page.
func BuildBook(sel *goquery.Selection, seen SeenSet) (book models.Book, outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			book = models.Book{}
			outcome = Malformed
			err = fmt.Errorf("recovered while building article: %v", r)
		}
	}()

	if sel == nil || sel.Length() == 0 {
		return models.Book{}, Malformed, fmt.Errorf("empty article selection")
	}

	id := PostID(sel)
	if id == "" {
		return models.Book{}, Malformed, fmt.Errorf("article has no %s attribute", postIDAttr)
	}
	if seen.Seen(id) {
		return models.Book{}, Duplicate, nil
	}
	seen.Add(id)

	fields := ExtractFields(sel, BookFields)
	book = models.Book{
		ID:       id,
		Title:    fields.Get(FieldTitle),
		Author:   fields.Get(FieldAuthor),
		ImageURL: fields.Get(FieldImage),
		Duration: fields.Get(FieldDuration),
		Views:    fields.Get(FieldViews),
		URL:      fields.Get(FieldURL),
		Narrator: fields.Get(FieldNarrator),
		Date:     fields.Get(FieldDate),
		Chapters: []models.Chapter{},
	}
	if err := ValidateBook(&book); err != nil {
		return models.Book{}, Malformed, err
	}
	return book, Accepted, nil
}

// Articles returns the listing entries of doc in document order.
func Articles(doc *goquery.Selection) *goquery.Selection {
	return doc.Find(ArticleSelector)
}
