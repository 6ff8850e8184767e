// Package models defines data structures shared by the scraper and the API.
package models

// Book represents one audiobook entry scraped from a listing page.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ImageURL    string    `json:"imageUrl"`
	Duration    string    `json:"duration"`
	Views       string    `json:"views"`
	URL         string    `json:"url"`
	Narrator    string    `json:"narrator"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Chapters    []Chapter `json:"chapters"`
}

// Chapter is one playable section of a book's detail page.
type Chapter struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Duration  string `json:"duration"`
	AudioURL  string `json:"audioUrl"`
	StartTime int    `json:"startTime"`
}

// HomeListing is the featured/recent split of one homepage pass.
type HomeListing struct {
	Featured []Book `json:"featured_books"`
	Recent   []Book `json:"recent_books"`
}

// PopularPage is one page of the popularity ranking.
type PopularPage struct {
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Books      []Book `json:"books"`
}

// PopularHomePage is the popularity ranking shaped like the homepage.
type PopularHomePage struct {
	Featured   []Book `json:"featured_books"`
	Recent     []Book `json:"recent_books"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
}

// Placeholders used when a listing field cannot be extracted.
const (
	UnknownTitle    = "Unknown Title"
	UnknownAuthor   = "Unknown Author"
	UnknownDuration = "Unknown"
	ZeroViews       = "0"
)
