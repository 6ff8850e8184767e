// Package scraper runs listing passes against the audiobook site: it fetches
// pages, builds deduplicated book records and ranks or paginates them.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-audiobooks-api/config"
	"github.com/aluiziolira/go-audiobooks-api/models"
	"github.com/aluiziolira/go-audiobooks-api/parser"
	"github.com/aluiziolira/go-audiobooks-api/pipeline"
)

// Scraper is safe for concurrent use: every pass allocates its own dedup
// set and no per-request state lives on the struct.
type Scraper struct {
	cfg      *config.Config
	fetcher  Fetcher
	chapters parser.ChapterSpec
	Metrics  *Metrics
}

// NewScraper builds a scraper that fetches through colly.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewCollyFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return New(cfg, fetcher, metrics), nil
}

// New builds a scraper around an arbitrary fetcher.
func New(cfg *config.Config, fetcher Fetcher, metrics *Metrics) *Scraper {
	return &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		chapters: parser.DefaultChapterSpec,
		Metrics:  metrics,
	}
}

// ListHomepage accepts up to limit books from the homepage in document
// order, then ranks them by views into featured and recent.
func (s *Scraper) ListHomepage(ctx context.Context, limit int) (models.HomeListing, error) {
	if limit < 1 {
		return models.HomeListing{}, fmt.Errorf("%w: limit must be at least 1", ErrInvalidArgument)
	}
	s.Metrics.IncPass("home")

	doc, err := s.document(ctx, s.cfg.BaseURL)
	if err != nil {
		return models.HomeListing{}, err
	}
	books := s.collect(doc, limit, "home")
	return pipeline.HomeListing(books), nil
}

// ListPopular returns every accepted book of one popularity ranking page.
func (s *Scraper) ListPopular(ctx context.Context, page int) (models.PopularPage, error) {
	if page < 1 {
		return models.PopularPage{}, fmt.Errorf("%w: page must be greater than 0", ErrInvalidArgument)
	}
	s.Metrics.IncPass("popular")

	doc, err := s.document(ctx, s.cfg.PopularURL(page))
	if err != nil {
		return models.PopularPage{}, err
	}
	return models.PopularPage{
		Page:       page,
		TotalPages: parser.ResolveTotalPages(doc.Selection),
		Books:      s.collect(doc, 0, "popular"),
	}, nil
}

// FindBook looks id up on the homepage, then on the first popularity page.
func (s *Scraper) FindBook(ctx context.Context, id string) (models.Book, error) {
	home, err := s.ListHomepage(ctx, s.cfg.DefaultLimit)
	if err != nil {
		return models.Book{}, err
	}
	if book, ok := findByID(id, home.Featured, home.Recent); ok {
		return book, nil
	}

	popular, err := s.ListPopular(ctx, 1)
	if err != nil {
		return models.Book{}, err
	}
	if book, ok := findByID(id, popular.Books); ok {
		return book, nil
	}
	return models.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, id)
}

// Details fetches the book's own page and fills its description and
// chapters. A book without a URL is returned unchanged.
func (s *Scraper) Details(ctx context.Context, book models.Book) (models.Book, error) {
	if book.URL == "" {
		return book, nil
	}
	pageURL, err := s.absoluteURL(book.URL)
	if err != nil {
		return models.Book{}, &FetchError{URL: book.URL, Err: err}
	}

	doc, err := s.document(ctx, pageURL)
	if err != nil {
		return models.Book{}, err
	}
	book.Description, book.Chapters = parser.ExtractChapters(doc.Selection, s.chapters)
	return book, nil
}

// DetailsAll runs Details for every book, at most cfg.Parallelism at a time.
// The first failure cancels the remaining fetches.
func (s *Scraper) DetailsAll(ctx context.Context, books []models.Book) ([]models.Book, error) {
	out := make([]models.Book, len(books))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Parallelism, 1))

	for i := range books {
		g.Go(func() error {
			detailed, err := s.Details(gctx, books[i])
			if err != nil {
				return err
			}
			out[i] = detailed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Scraper) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

// collect runs the record builder over every article until limit books are
// accepted. A limit of zero accepts the whole page.
func (s *Scraper) collect(doc *goquery.Document, limit int, listing string) []models.Book {
	seen := parser.NewSeenSet(s.cfg.DedupeMaxSize)
	books := []models.Book{}

	parser.Articles(doc.Selection).EachWithBreak(func(i int, article *goquery.Selection) bool {
		if limit > 0 && len(books) >= limit {
			return false
		}
		book, outcome, err := parser.BuildBook(article, seen)
		if outcome != parser.Accepted {
			s.Metrics.IncSkipped(outcome.String())
			slog.Debug("article skipped",
				slog.String("listing", listing),
				slog.Int("index", i),
				slog.String("reason", outcome.String()),
				slog.Any("error", err),
			)
			return true
		}
		s.Metrics.IncItems()
		books = append(books, book)
		return true
	})

	slog.Debug("listing pass complete",
		slog.String("listing", listing),
		slog.Int("books", len(books)),
	)
	return books
}

func (s *Scraper) absoluteURL(ref string) (string, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse book url: %w", err)
	}
	return base.ResolveReference(rel).String(), nil
}

func findByID(id string, lists ...[]models.Book) (models.Book, bool) {
	for _, list := range lists {
		for _, book := range list {
			if book.ID == id {
				return book, true
			}
		}
	}
	return models.Book{}, false
}
