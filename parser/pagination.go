package parser

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const (
	paginationSelector = "nav.pagination"
	pageLinkSelector   = "a.page-numbers"
)

// ResolveTotalPages returns the last numeric page link of the pagination
// block, or 1 when there is none.
func ResolveTotalPages(doc *goquery.Selection) int {
	nav := doc.Find(paginationSelector).First()
	if nav.Length() == 0 {
		return 1
	}

	links := nav.Find(pageLinkSelector)
	for i := links.Length() - 1; i >= 0; i-- {
		label := NormalizeText(links.Eq(i).Text())
		if !isDigits(label) {
			continue
		}
		if n, err := strconv.Atoi(label); err == nil && n >= 1 {
			return n
		}
	}
	return 1
}
