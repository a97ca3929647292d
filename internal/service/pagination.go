package service

import (
	"math"
	"strconv"
)

// PerPage is the fixed listing page size.
const PerPage = 20

// maxPage bounds the page number so the row offset cannot overflow.
const maxPage = math.MaxInt32 / PerPage

// onEachSide is the number of page links shown on each side of the current page.
const onEachSide = 3

const (
	PreviousLabel = "« Previous"
	NextLabel     = "Next »"
	GapLabel      = "..."
)

// PageLink is one navigation entry. Page is nil for a gap or for a
// previous/next link that has no target.
type PageLink struct {
	Label  string `json:"label"`
	Page   *int   `json:"page"`
	Active bool   `json:"active"`
}

// PageInfo describes one page of a length-aware listing.
type PageInfo struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`

	// From and To are the 1-based positions of the first and last item on
	// the page, nil when the page is empty.
	From  *int       `json:"from"`
	To    *int       `json:"to"`
	Links []PageLink `json:"links"`
}

// normalizePage treats anything below 1 as the first page.
func normalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > maxPage:
		return maxPage
	default:
		return page
	}
}

// offsetFor returns the row offset of page.
func offsetFor(page int) int {
	return (page - 1) * PerPage
}

// NewPageInfo builds the page metadata for a listing of total items where the
// current page holds count items.
func NewPageInfo(page int, total int64, count int) PageInfo {
	page = normalizePage(page)

	lastPage := int((total + PerPage - 1) / PerPage)
	if lastPage < 1 {
		lastPage = 1
	}

	info := PageInfo{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     PerPage,
		Total:       total,
	}
	if count > 0 {
		from := offsetFor(page) + 1
		to := from + count - 1
		info.From = &from
		info.To = &to
	}
	info.Links = pageLinks(page, lastPage)
	return info
}

func pageLinks(current, last int) []PageLink {
	links := make([]PageLink, 0, 16)

	prev := PageLink{Label: PreviousLabel}
	if current > 1 {
		prev.Page = intPtr(current - 1)
	}
	links = append(links, prev)

	for _, p := range pageWindow(current, last) {
		if p == 0 {
			links = append(links, PageLink{Label: GapLabel})
			continue
		}
		links = append(links, PageLink{
			Label:  strconv.Itoa(p),
			Page:   intPtr(p),
			Active: p == current,
		})
	}

	next := PageLink{Label: NextLabel}
	if current < last {
		next.Page = intPtr(current + 1)
	}
	return append(links, next)
}

// pageWindow lists the page numbers to render, with 0 marking a gap.
func pageWindow(current, last int) []int {
	if last < onEachSide*2+8 {
		return pageRange(1, last)
	}

	window := onEachSide + 4
	var pages []int
	switch {
	case current <= window:
		pages = append(pages, pageRange(1, window+onEachSide)...)
		pages = append(pages, 0)
		pages = append(pages, pageRange(last-1, last)...)
	case current > last-window:
		pages = append(pages, pageRange(1, 2)...)
		pages = append(pages, 0)
		pages = append(pages, pageRange(last-(window+onEachSide-1), last)...)
	default:
		pages = append(pages, pageRange(1, 2)...)
		pages = append(pages, 0)
		pages = append(pages, pageRange(current-onEachSide, current+onEachSide)...)
		pages = append(pages, 0)
		pages = append(pages, pageRange(last-1, last)...)
	}
	return pages
}

func pageRange(from, to int) []int {
	pages := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}
	return pages
}

func intPtr(i int) *int { return &i }
