// Package api exposes the listing passes over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-audiobooks-api/models"
	"github.com/aluiziolira/go-audiobooks-api/pipeline"
	"github.com/aluiziolira/go-audiobooks-api/scraper"
)

// Catalog is the subset of *scraper.Scraper the handlers depend on.
type Catalog interface {
	ListHomepage(ctx context.Context, limit int) (models.HomeListing, error)
	ListPopular(ctx context.Context, page int) (models.PopularPage, error)
	FindBook(ctx context.Context, id string) (models.Book, error)
	Details(ctx context.Context, book models.Book) (models.Book, error)
	DetailsAll(ctx context.Context, books []models.Book) ([]models.Book, error)
}

const (
	layoutFlat = "flat"
	layoutHome = "home"
)

// ValidationError reports a query parameter the handlers refuse.
type ValidationError struct {
	Param string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Msg)
}

// Handler serves the listing endpoints from a Catalog.
type Handler struct {
	Catalog      Catalog
	DefaultLimit int
	Gatherer     prometheus.Gatherer
}

// NewHandler fills in a default limit of 20 and an empty registry when unset.
func NewHandler(catalog Catalog, defaultLimit int, gatherer prometheus.Gatherer) *Handler {
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &Handler{Catalog: catalog, DefaultLimit: defaultLimit, Gatherer: gatherer}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.home)
	r.GET("/home", h.home)
	r.GET("/popular", h.popular)
	r.GET("/book/:id", h.book)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
}

func (h *Handler) home(c *gin.Context) {
	limit, err := positiveInt(c, "limit", h.DefaultLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	details, err := boolParam(c, "details")
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	listing, err := h.Catalog.ListHomepage(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if details {
		if listing, err = h.detailListing(ctx, listing); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) popular(c *gin.Context) {
	page, err := positiveInt(c, "page", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	details, err := boolParam(c, "details")
	if err != nil {
		writeError(c, err)
		return
	}
	layout := strings.ToLower(c.DefaultQuery("layout", layoutFlat))
	if layout != layoutFlat && layout != layoutHome {
		writeError(c, &ValidationError{Param: "layout", Msg: "must be flat or home"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.Catalog.ListPopular(ctx, page)
	if err != nil {
		writeError(c, err)
		return
	}
	if details {
		if result.Books, err = h.Catalog.DetailsAll(ctx, result.Books); err != nil {
			writeError(c, err)
			return
		}
	}

	if layout == layoutHome {
		c.JSON(http.StatusOK, pipeline.SplitPopular(result))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) book(c *gin.Context) {
	ctx := c.Request.Context()
	book, err := h.Catalog.FindBook(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	book, err = h.Catalog.Details(ctx, book)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// detailListing enriches featured and recent in one bounded batch.
func (h *Handler) detailListing(ctx context.Context, listing models.HomeListing) (models.HomeListing, error) {
	all := make([]models.Book, 0, len(listing.Featured)+len(listing.Recent))
	all = append(all, listing.Featured...)
	all = append(all, listing.Recent...)

	detailed, err := h.Catalog.DetailsAll(ctx, all)
	if err != nil {
		return models.HomeListing{}, err
	}
	n := len(listing.Featured)
	return models.HomeListing{Featured: detailed[:n], Recent: detailed[n:]}, nil
}

func positiveInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Param: name, Msg: "must be an integer"}
	}
	if n < 1 {
		return 0, &ValidationError{Param: name, Msg: "must be greater than 0"}
	}
	return n, nil
}

func boolParam(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ValidationError{Param: name, Msg: "must be true or false"}
	}
	return v, nil
}

// writeError maps an error to its status code. Upstream bodies and internal
// error text never reach the client.
func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) (int, string) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, validation.Error()
	}
	if errors.Is(err, scraper.ErrInvalidArgument) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, scraper.ErrBookNotFound) {
		return http.StatusNotFound, "book not found"
	}
	var fetchErr *scraper.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusServiceUnavailable, "upstream unavailable: " + fetchErr.Kind()
	}
	return http.StatusInternalServerError, "internal server error"
}
