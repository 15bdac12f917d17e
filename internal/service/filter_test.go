package service_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/go-playground/assert/v2"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// seedOccurrences returns 12 occurrences over the last months, 5 of them Open.
func seedOccurrences(now time.Time) []domain.Occurrence {
	statuses := []domain.Status{
		domain.StatusOpen, domain.StatusResolved, domain.StatusOpen, domain.StatusInAnalysis,
		domain.StatusOpen, domain.StatusResolved, domain.StatusResolved, domain.StatusOpen,
		domain.StatusInAnalysis, domain.StatusOpen, domain.StatusResolved, domain.StatusInAnalysis,
	}
	list := make([]domain.Occurrence, 0, len(statuses))
	for i, s := range statuses {
		list = append(list, domain.Occurrence{
			ID:          fmt.Sprintf("o%02d", i),
			Date:        now.AddDate(0, 0, -10*i),
			SaleID:      fmt.Sprintf("S-%03d", i),
			Description: fmt.Sprintf("issue number %d", i),
			Status:      s,
		})
	}
	service.SortOccurrences(list)
	return list
}

func TestFilter_OpenLastSixMonths(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	list := seedOccurrences(now)

	got := service.Filter(list, service.Criteria{
		Status:    domain.StatusOpen,
		StartDate: now.AddDate(0, -6, 0),
		EndDate:   now,
	}, 1, service.DefaultPageSize)

	assert.Equal(t, got.Total, 5)
	assert.Equal(t, len(got.Rows), 5)
	assert.Equal(t, got.Page, 1)
	assert.Equal(t, got.Pages, 1)
	for _, o := range got.Rows {
		assert.Equal(t, o.Status, domain.StatusOpen)
	}
}

func TestFilter_Deterministic(t *testing.T) {
	list := seedOccurrences(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	c := service.Criteria{Search: "issue", StartDate: day("2024-04-01")}

	first := service.Filter(list, c, 2, 3)
	second := service.Filter(list, c, 2, 3)
	assert.Equal(t, first, second)
}

func TestFilter_IsConjunctionOfPredicates(t *testing.T) {
	list := []domain.Occurrence{
		{ID: "a", Date: day("2024-03-01"), SaleID: "S-100", Description: "Late delivery", Status: domain.StatusOpen},
		{ID: "b", Date: day("2024-03-05"), SaleID: "S-200", Description: "wrong item", Status: domain.StatusOpen},
		{ID: "c", Date: day("2024-03-10"), SaleID: "S-300", Description: "LATE refund", Status: domain.StatusResolved},
		{ID: "d", Date: day("2024-04-01"), SaleID: "X-late", Description: "n/a", Status: domain.StatusOpen},
	}
	criteria := []service.Criteria{
		{},
		{Status: domain.StatusOpen},
		{Search: "late"},
		{Search: "S-2"},
		{StartDate: day("2024-03-05"), EndDate: day("2024-03-10")},
		{Status: domain.StatusOpen, Search: "LATE", EndDate: day("2024-03-31")},
	}

	for i, c := range criteria {
		t.Run(fmt.Sprintf("criteria-%d", i), func(t *testing.T) {
			got := service.Select(list, c)
			want := []domain.Occurrence{}
			for _, o := range list {
				statusOK := c.Status == "" || o.Status == c.Status
				textOK := service.Criteria{Search: c.Search}.Match(o)
				dateOK := service.Criteria{StartDate: c.StartDate, EndDate: c.EndDate}.Match(o)
				if statusOK && textOK && dateOK {
					want = append(want, o)
				}
			}
			assert.Equal(t, got, want)
		})
	}
}

func TestFilter_SearchMatchesSaleIDOrDescriptionCaseInsensitive(t *testing.T) {
	list := []domain.Occurrence{
		{ID: "a", SaleID: "ABC-1", Description: "broken seal"},
		{ID: "b", SaleID: "XYZ-2", Description: "Missing abc label"},
		{ID: "c", SaleID: "QQQ-3", Description: "other"},
	}
	got := service.Select(list, service.Criteria{Search: "abc"})
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].ID, "a")
	assert.Equal(t, got[1].ID, "b")
}

func TestFilter_WhitespaceSearchIsLiteral(t *testing.T) {
	list := []domain.Occurrence{
		{ID: "a", SaleID: "ABC-1", Description: "broken seal"},
		{ID: "b", SaleID: "XYZ-2", Description: "Missing"},
	}
	got := service.Select(list, service.Criteria{Search: " "})
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].ID, "a")
}

func TestFilter_DateRangeIsInclusiveByDay(t *testing.T) {
	list := []domain.Occurrence{
		{ID: "start", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "end", Date: time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)},
		{ID: "after", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "before", Date: time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC)},
	}
	got := service.Select(list, service.Criteria{
		StartDate: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
		EndDate:   day("2024-05-31"),
	})
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].ID, "start")
	assert.Equal(t, got[1].ID, "end")
}

func TestFilter_ClampsPage(t *testing.T) {
	list := make([]domain.Occurrence, 23)
	for i := range list {
		list[i] = domain.Occurrence{ID: fmt.Sprintf("o%02d", i)}
	}

	tests := []struct {
		name     string
		page     int
		wantPage int
		wantRows int
	}{
		{"zero", 0, 1, 10},
		{"negative", -4, 1, 10},
		{"last", 3, 3, 3},
		{"beyond", 99, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.Filter(list, service.Criteria{}, tt.page, 10)
			assert.Equal(t, got.Page, tt.wantPage)
			assert.Equal(t, len(got.Rows), tt.wantRows)
			assert.Equal(t, got.Pages, 3)
			assert.Equal(t, got.Total, 23)
		})
	}
}

func TestFilter_EmptyListHasOnePage(t *testing.T) {
	got := service.Filter(nil, service.Criteria{Status: domain.StatusOpen}, 5, 10)
	assert.Equal(t, got.Total, 0)
	assert.Equal(t, got.Pages, 1)
	assert.Equal(t, got.Page, 1)
	assert.Equal(t, len(got.Rows), 0)
}

func TestFilterState_AnyCriteriaChangeResetsPage(t *testing.T) {
	changes := map[string]func(f *service.FilterState){
		"status":   func(f *service.FilterState) { f.SetStatus(domain.StatusResolved) },
		"search":   func(f *service.FilterState) { f.SetSearch("late") },
		"dates":    func(f *service.FilterState) { f.SetDateRange(day("2024-01-01"), day("2024-02-01")) },
		"criteria": func(f *service.FilterState) { f.SetCriteria(service.Criteria{Search: "x"}) },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			f := service.NewFilterState(10)
			f.SetPage(4)
			assert.Equal(t, f.CurrentPage(), 4)
			change(f)
			assert.Equal(t, f.CurrentPage(), 1)
		})
	}
}

func TestFilterState_ApplyUsesCurrentState(t *testing.T) {
	list := seedOccurrences(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	f := service.NewFilterState(2)
	f.SetStatus(domain.StatusOpen)
	f.SetPage(3)

	got := f.Apply(list)
	assert.Equal(t, got.Total, 5)
	assert.Equal(t, got.Page, 3)
	assert.Equal(t, len(got.Rows), 1)
}
