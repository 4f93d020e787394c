package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crawldash/internal/domain"
	"crawldash/internal/view"
)

func ptr[T any](v T) *T { return &v }

func TestRenderList(t *testing.T) {
	recs := []domain.URLRecord{
		{ID: 1, URL: "https://b.example", Status: domain.StatusDone, CreatedAt: domain.NewTimestamp(time.Now()), Title: ptr("Bee")},
		{ID: 2, URL: "https://a.example", Status: domain.StatusQueued, CreatedAt: domain.NewTimestamp(time.Now())},
	}
	st := view.NewState(5).Apply(view.ToggleSort{Key: view.KeyURL}, recs)

	var out bytes.Buffer
	NewTableRenderer(&out).RenderList(st.Derive(recs))
	got := out.String()

	assert.Contains(t, got, "URL ▲")
	assert.Contains(t, got, "Page 1 of 1")
	assert.Less(t, strings.Index(got, "a.example"), strings.Index(got, "b.example"), "rows follow the sort")
	assert.Contains(t, got, view.Placeholder, "missing title and last run use the placeholder")
	assert.NotContains(t, got, "[ ]")
}

func TestDetail_Processing(t *testing.T) {
	rec := domain.URLRecord{ID: 3, URL: "https://example.com", Status: domain.StatusQueued}
	got := Detail(rec, &domain.URLStatus{Status: domain.StatusRunning}, 10)
	assert.Contains(t, got, ProcessingMessage)
	assert.Contains(t, got, "running")

	assert.Contains(t, Detail(rec, nil, 10), ProcessingMessage)
}

func TestDetail_Results(t *testing.T) {
	rec := domain.URLRecord{ID: 3, URL: "https://example.com", Status: domain.StatusDone}
	st := &domain.URLStatus{
		Status: domain.StatusDone,
		Results: domain.CrawlResult{
			Title:         ptr("Example Domain"),
			H1Count:       ptr(1),
			InternalLinks: ptr(3),
			ExternalLinks: ptr(1),
			BrokenLinks:   ptr(1),
			HasLoginForm:  ptr(true),
			BrokenDetails: []domain.BrokenLink{{URL: "https://example.com/404", StatusCode: 404}},
		},
	}

	got := Detail(rec, st, 8)
	assert.Contains(t, got, "Example Domain")
	assert.Contains(t, got, "HTML version")
	assert.Contains(t, got, NotAvailable, "missing html version and h2 count")
	assert.Contains(t, got, "Yes")
	assert.Contains(t, got, "██████░░")
	assert.Contains(t, got, "https://example.com/404")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "", Bar(0, 10, 5))
	assert.Equal(t, "", Bar(3, 0, 5))
	assert.Equal(t, "█░░░░", Bar(1, 100, 5), "non-zero shares are always visible")
	assert.Equal(t, "█████", Bar(4, 4, 5))
}
