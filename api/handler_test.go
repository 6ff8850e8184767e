package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-audiobooks-api/models"
	"github.com/aluiziolira/go-audiobooks-api/pipeline"
	"github.com/aluiziolira/go-audiobooks-api/scraper"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCatalog struct {
	mu         sync.Mutex
	books      []models.Book
	totalPages int
	err        error
	detailErr  error
	lastLimit  int
	lastPage   int
}

func (f *fakeCatalog) ListHomepage(_ context.Context, limit int) (models.HomeListing, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	if f.err != nil {
		return models.HomeListing{}, f.err
	}
	books := f.books
	if len(books) > limit {
		books = books[:limit]
	}
	return pipeline.HomeListing(books), nil
}

func (f *fakeCatalog) ListPopular(_ context.Context, page int) (models.PopularPage, error) {
	f.mu.Lock()
	f.lastPage = page
	f.mu.Unlock()
	if f.err != nil {
		return models.PopularPage{}, f.err
	}
	return models.PopularPage{Page: page, TotalPages: f.totalPages, Books: f.books}, nil
}

func (f *fakeCatalog) FindBook(_ context.Context, id string) (models.Book, error) {
	if f.err != nil {
		return models.Book{}, f.err
	}
	for _, b := range f.books {
		if b.ID == id {
			return b, nil
		}
	}
	return models.Book{}, fmt.Errorf("%w: %s", scraper.ErrBookNotFound, id)
}

func (f *fakeCatalog) Details(_ context.Context, book models.Book) (models.Book, error) {
	if f.detailErr != nil {
		return models.Book{}, f.detailErr
	}
	book.Description = "description " + book.ID
	book.Chapters = []models.Chapter{{Number: 1, Title: "Chapter 1", Duration: "1:00", AudioURL: "/" + book.ID + ".mp3"}}
	return book, nil
}

func (f *fakeCatalog) DetailsAll(ctx context.Context, books []models.Book) ([]models.Book, error) {
	out := make([]models.Book, len(books))
	for i, b := range books {
		detailed, err := f.Details(ctx, b)
		if err != nil {
			return nil, err
		}
		out[i] = detailed
	}
	return out, nil
}

func sampleBooks(views ...string) []models.Book {
	books := make([]models.Book, len(views))
	for i, v := range views {
		books[i] = models.Book{
			ID:       fmt.Sprint(i + 1),
			Title:    fmt.Sprintf("Livre %d", i+1),
			Author:   models.UnknownAuthor,
			Duration: models.UnknownDuration,
			Views:    v,
			URL:      fmt.Sprintf("/livre-%d", i+1),
			Chapters: []models.Chapter{},
		}
	}
	return books
}

func serve(t *testing.T, catalog Catalog, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(catalog, 20, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHomeRoutes(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("5", "100", "3", "3", "50")}

	for _, path := range []string{"/", "/home"} {
		rec := serve(t, catalog, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

		listing := decode[models.HomeListing](t, rec)
		require.Equal(t, []string{"2", "5", "1"}, ids(listing.Featured))
		require.Equal(t, []string{"3", "4"}, ids(listing.Recent))
		require.Equal(t, 20, catalog.lastLimit)
	}
}

func TestHomeLimitAndDetails(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("1", "2", "3", "4")}

	rec := serve(t, catalog, http.MethodGet, "/home?limit=2&details=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, catalog.lastLimit)

	listing := decode[models.HomeListing](t, rec)
	require.Len(t, listing.Featured, 2)
	require.Empty(t, listing.Recent)
	for _, b := range listing.Featured {
		require.Equal(t, "description "+b.ID, b.Description)
		require.Len(t, b.Chapters, 1)
	}
}

func TestHomeJSONShape(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("7")}
	rec := serve(t, catalog, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `"featured_books"`)
	require.Contains(t, body, `"recent_books":[]`)
	require.Contains(t, body, `"views":"7"`)
	require.Contains(t, body, `"imageUrl"`)
}

func TestInvalidQueryParams(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("1")}
	tests := []string{
		"/?limit=0",
		"/home?limit=-4",
		"/home?limit=abc",
		"/home?details=maybe",
		"/popular?page=0",
		"/popular?page=x",
		"/popular?layout=grid",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := serve(t, catalog, http.MethodGet, target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[map[string]string](t, rec)
			require.NotEmpty(t, resp["error"])
		})
	}
}

func TestPopularLayouts(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("1", "2", "3", "4", "5"), totalPages: 12}

	rec := serve(t, catalog, http.MethodGet, "/popular")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, catalog.lastPage)
	flat := decode[models.PopularPage](t, rec)
	require.Equal(t, 1, flat.Page)
	require.Equal(t, 12, flat.TotalPages)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(flat.Books))

	rec = serve(t, catalog, http.MethodGet, "/popular?layout=home")
	require.Equal(t, http.StatusOK, rec.Code)
	split := decode[models.PopularHomePage](t, rec)
	require.Equal(t, []string{"1", "2", "3"}, ids(split.Featured))
	require.Equal(t, []string{"4", "5"}, ids(split.Recent))

	rec = serve(t, catalog, http.MethodGet, "/popular?page=3&layout=home&details=true")
	require.Equal(t, http.StatusOK, rec.Code)
	later := decode[models.PopularHomePage](t, rec)
	require.Equal(t, 3, later.Page)
	require.Empty(t, later.Featured)
	require.Len(t, later.Recent, 5)
	require.Equal(t, "description 1", later.Recent[0].Description)
}

func TestBookRoute(t *testing.T) {
	catalog := &fakeCatalog{books: sampleBooks("1", "2")}

	rec := serve(t, catalog, http.MethodGet, "/book/2")
	require.Equal(t, http.StatusOK, rec.Code)
	book := decode[models.Book](t, rec)
	require.Equal(t, "2", book.ID)
	require.Equal(t, "description 2", book.Description)
	require.Len(t, book.Chapters, 1)
	require.Equal(t, "/2.mp3", book.Chapters[0].AudioURL)

	rec = serve(t, catalog, http.MethodGet, "/book/99")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "book not found", decode[map[string]string](t, rec)["error"])
}

func TestUpstreamErrors(t *testing.T) {
	fetchErr := &scraper.FetchError{
		URL:        "https://www.litteratureaudio.com",
		StatusCode: http.StatusBadGateway,
		Err:        errors.New("<html>secret upstream page</html>"),
	}
	tests := []struct {
		name   string
		cat    *fakeCatalog
		target string
		status int
	}{
		{name: "home fetch", cat: &fakeCatalog{err: fetchErr}, target: "/", status: http.StatusServiceUnavailable},
		{name: "popular fetch", cat: &fakeCatalog{err: fetchErr}, target: "/popular", status: http.StatusServiceUnavailable},
		{name: "book details", cat: &fakeCatalog{books: sampleBooks("1"), detailErr: fetchErr}, target: "/book/1", status: http.StatusServiceUnavailable},
		{name: "internal", cat: &fakeCatalog{err: errors.New("boom")}, target: "/home", status: http.StatusInternalServerError},
		{name: "invalid argument", cat: &fakeCatalog{err: fmt.Errorf("%w: bad", scraper.ErrInvalidArgument)}, target: "/home", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.cat, http.MethodGet, tt.target)
			require.Equal(t, tt.status, rec.Code)
			require.NotContains(t, rec.Body.String(), "secret upstream page")
		})
	}

	rec := serve(t, &fakeCatalog{err: errors.New("boom")}, http.MethodGet, "/")
	require.Equal(t, "internal server error", decode[map[string]string](t, rec)["error"])
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeCatalog{}, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]string](t, rec)
	require.Equal(t, "healthy", resp["status"])
	_, err := time.Parse(time.RFC3339, resp["timestamp"])
	require.NoError(t, err)
}

func TestCORS(t *testing.T) {
	rec := serve(t, &fakeCatalog{}, http.MethodOptions, "/home")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(t, &fakeCatalog{}, http.MethodGet, "/health")
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	rec := serve(t, &fakeCatalog{}, http.MethodGet, "/health")
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	require.NoError(t, err)

	router := NewRouter(NewHandler(&fakeCatalog{}, 20, nil))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "audiobooks_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	router := NewRouter(NewHandler(&fakeCatalog{}, 20, registry))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "audiobooks_test_total 1"))
}

func ids(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}
