package pipeline

import (
	"sort"
	"strings"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// FeaturedCount is the number of books promoted to the featured bucket.
const FeaturedCount = 3

// RankByViews returns a copy of books ordered by numeric views, highest
// first. Books with equal views keep their input order.
func RankByViews(books []models.Book) []models.Book {
	ranked := make([]models.Book, len(books))
	copy(ranked, books)
	sort.SliceStable(ranked, func(i, j int) bool {
		return compareViews(ranked[i].Views, ranked[j].Views) > 0
	})
	return ranked
}

// Partition splits books into the first n and the remainder. Both slices
// are non-nil.
func Partition(books []models.Book, n int) (head, tail []models.Book) {
	if n > len(books) {
		n = len(books)
	}
	if n < 0 {
		n = 0
	}
	head = append([]models.Book{}, books[:n]...)
	tail = append([]models.Book{}, books[n:]...)
	return head, tail
}

// HomeListing ranks one pass and splits it into featured and recent.
func HomeListing(books []models.Book) models.HomeListing {
	featured, recent := Partition(RankByViews(books), FeaturedCount)
	return models.HomeListing{Featured: featured, Recent: recent}
}

// SplitPopular reshapes a popularity page like the homepage: page 1 is
// split into featured and recent, later pages are entirely recent.
func SplitPopular(page models.PopularPage) models.PopularHomePage {
	out := models.PopularHomePage{
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
	if page.Page == 1 {
		out.Featured, out.Recent = Partition(page.Books, FeaturedCount)
	} else {
		out.Featured, out.Recent = Partition(page.Books, 0)
	}
	return out
}

// compareViews compares two digit strings numerically without parsing them,
// so arbitrarily long counters cannot overflow.
func compareViews(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) > len(b) {
			return 1
		}
		return -1
	}
	return strings.Compare(a, b)
}
