package pipeline

import (
	"fmt"
	"testing"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

func booksWithViews(views ...string) []models.Book {
	books := make([]models.Book, len(views))
	for i, v := range views {
		books[i] = models.Book{ID: fmt.Sprintf("%d", i+1), Views: v}
	}
	return books
}

func ids(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func equalIDs(got []models.Book, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

func TestHomeListingRanking(t *testing.T) {
	// views [5, 100, 3, 3, 50] in document order
	listing := HomeListing(booksWithViews("5", "100", "3", "3", "50"))

	if !equalIDs(listing.Featured, "2", "5", "1") {
		t.Fatalf("featured = %v, want [2 5 1]", ids(listing.Featured))
	}
	if !equalIDs(listing.Recent, "3", "4") {
		t.Fatalf("recent = %v, want [3 4] in original order", ids(listing.Recent))
	}
}

func TestHomeListingSmallPass(t *testing.T) {
	listing := HomeListing(booksWithViews("1", "2"))
	if len(listing.Featured) != 2 {
		t.Fatalf("featured = %d, want 2", len(listing.Featured))
	}
	if listing.Recent == nil || len(listing.Recent) != 0 {
		t.Fatalf("recent = %#v, want empty non-nil", listing.Recent)
	}

	empty := HomeListing(nil)
	if empty.Featured == nil || empty.Recent == nil {
		t.Fatalf("empty listing must encode as arrays, got %#v", empty)
	}
}

func TestRankByViewsNumericNotLexical(t *testing.T) {
	ranked := RankByViews(booksWithViews("9", "10", "0100", "99999999999999999999999"))
	if !equalIDs(ranked, "4", "3", "2", "1") {
		t.Fatalf("ranked = %v, want [4 3 2 1]", ids(ranked))
	}
}

func TestRankByViewsDoesNotMutateInput(t *testing.T) {
	in := booksWithViews("1", "2", "3")
	_ = RankByViews(in)
	if !equalIDs(in, "1", "2", "3") {
		t.Fatalf("input reordered: %v", ids(in))
	}
}

func TestSplitPopular(t *testing.T) {
	books := booksWithViews("9", "8", "7", "6", "5")

	first := SplitPopular(models.PopularPage{Page: 1, TotalPages: 4, Books: books})
	if !equalIDs(first.Featured, "1", "2", "3") || !equalIDs(first.Recent, "4", "5") {
		t.Fatalf("page 1 split = %v / %v", ids(first.Featured), ids(first.Recent))
	}
	if first.TotalPages != 4 || first.Page != 1 {
		t.Fatalf("page metadata lost: %+v", first)
	}

	second := SplitPopular(models.PopularPage{Page: 2, TotalPages: 4, Books: books})
	if len(second.Featured) != 0 || len(second.Recent) != 5 {
		t.Fatalf("page 2 split = %d / %d, want 0 / 5", len(second.Featured), len(second.Recent))
	}
}
