// Package parser turns listing and detail page HTML into book records.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// ValidateBook ensures an assembled record satisfies the listing invariants.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book missing id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title for %s", b.ID)
	}
	if strings.TrimSpace(b.Author) == "" {
		return fmt.Errorf("book missing author for %s", b.ID)
	}
	if b.Views == "" || !isDigits(b.Views) {
		return fmt.Errorf("book %s has non-numeric views %q", b.ID, b.Views)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
