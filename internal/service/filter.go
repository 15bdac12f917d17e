package service

import (
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
)

// DefaultPageSize is the number of rows per page.
const DefaultPageSize = 10

// Criteria selects occurrences. Zero values match everything; the date
// bounds are inclusive calendar days in UTC.
type Criteria struct {
	Status    domain.Status `json:"status,omitempty"`
	Search    string        `json:"search,omitempty"`
	StartDate time.Time     `json:"startDate,omitempty"`
	EndDate   time.Time     `json:"endDate,omitempty"`
}

// Page is one visible page of the filtered list.
type Page struct {
	Rows     []domain.Occurrence `json:"rows"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	Pages    int                 `json:"pages"`
	PageSize int                 `json:"pageSize"`
}

// Match reports whether o satisfies every predicate of c.
func (c Criteria) Match(o domain.Occurrence) bool {
	if c.Status != "" && o.Status != c.Status {
		return false
	}
	if q := strings.ToLower(c.Search); q != "" {
		if !strings.Contains(strings.ToLower(o.SaleID), q) &&
			!strings.Contains(strings.ToLower(o.Description), q) {
			return false
		}
	}
	day := truncateDay(o.Date)
	if !c.StartDate.IsZero() && day.Before(truncateDay(c.StartDate)) {
		return false
	}
	if !c.EndDate.IsZero() && day.After(truncateDay(c.EndDate)) {
		return false
	}
	return true
}

// Select returns every match in input order.
func Select(list []domain.Occurrence, c Criteria) []domain.Occurrence {
	out := make([]domain.Occurrence, 0, len(list))
	for _, o := range list {
		if c.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Filter is the pure filter/pagination function. page is clamped to
// [1, pages] and there is always at least one page.
func Filter(list []domain.Occurrence, c Criteria, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	matched := Select(list, c)

	pages := (len(matched) + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	rows := make([]domain.Occurrence, end-start)
	copy(rows, matched[start:end])

	return Page{
		Rows:     rows,
		Total:    len(matched),
		Page:     page,
		Pages:    pages,
		PageSize: pageSize,
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FilterState is the console's current criteria and page. Changing the
// criteria always goes back to page 1.
type FilterState struct {
	mu       sync.Mutex
	criteria Criteria
	page     int
	pageSize int
}

// NewFilterState starts on page 1 with no criteria.
func NewFilterState(pageSize int) *FilterState {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &FilterState{page: 1, pageSize: pageSize}
}

// Criteria returns the current criteria.
func (f *FilterState) Criteria() Criteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.criteria
}

// CurrentPage returns the requested page before clamping.
func (f *FilterState) CurrentPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// SetCriteria replaces the criteria and resets to page 1.
func (f *FilterState) SetCriteria(c Criteria) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = c
	f.page = 1
}

// SetStatus changes the status filter and resets to page 1.
func (f *FilterState) SetStatus(s domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria.Status = s
	f.page = 1
}

// SetSearch changes the free-text filter and resets to page 1.
func (f *FilterState) SetSearch(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria.Search = q
	f.page = 1
}

// SetDateRange changes the date bounds and resets to page 1.
func (f *FilterState) SetDateRange(start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria.StartDate = start
	f.criteria.EndDate = end
	f.page = 1
}

// SetPage moves to page p; Apply clamps it.
func (f *FilterState) SetPage(p int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p < 1 {
		p = 1
	}
	f.page = p
}

// Apply runs Filter over list with the current state.
func (f *FilterState) Apply(list []domain.Occurrence) Page {
	f.mu.Lock()
	c, page, size := f.criteria, f.page, f.pageSize
	f.mu.Unlock()
	return Filter(list, c, page, size)
}
