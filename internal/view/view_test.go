package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawldash/internal/domain"
)

func title(s string) *string { return &s }

func makeRecords(n int) []domain.URLRecord {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]domain.URLRecord, n)
	for i := range out {
		out[i] = domain.URLRecord{
			ID:        int64(i + 1),
			URL:       fmt.Sprintf("https://site%d.test", i+1),
			Status:    domain.Statuses[i%len(domain.Statuses)],
			CreatedAt: domain.NewTimestamp(base.Add(time.Duration(i) * time.Minute)),
		}
	}
	return out
}

// --- Filter ---

func TestFilter_AllReturnsEverything(t *testing.T) {
	records := makeRecords(9)
	assert.Equal(t, records, Filter(records, FilterAll, ""))
}

func TestFilter_StatusOnlyKeepsThatStatus(t *testing.T) {
	records := makeRecords(12)
	for _, st := range domain.Statuses {
		got := Filter(records, StatusFilter(st), "")
		require.NotEmpty(t, got)
		for _, r := range got {
			assert.Equal(t, st, r.Status)
		}
	}
}

func TestFilter_QueryScenario(t *testing.T) {
	records := []domain.URLRecord{
		{ID: 3, URL: "https://three.test", Status: domain.StatusQueued, Title: title("Example")},
		{ID: 4, URL: "https://four.test", Status: domain.StatusDone},
	}

	got := Filter(records, FilterAll, "exa")
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	assert.Empty(t, Filter(records, StatusFilter(domain.StatusDone), "exa"))
}

func TestFilter_QueryMatchesURLAndNullTitle(t *testing.T) {
	records := []domain.URLRecord{
		{ID: 1, URL: "https://GoLang.org", Status: domain.StatusDone},
		{ID: 2, URL: "https://rust-lang.org", Status: domain.StatusDone, Title: title("Rust")},
	}
	got := Filter(records, FilterAll, "golang")
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestStatusFilter_ParseAndNext(t *testing.T) {
	f, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseStatusFilter("paused")
	assert.Error(t, err)

	assert.Equal(t, StatusFilter("queued"), FilterAll.Next())
	assert.Equal(t, FilterAll, StatusFilter("error").Next())
}

// --- Sort ---

func TestSort_ToggleCycle(t *testing.T) {
	var s Sort
	s = s.Toggle(KeyURL)
	assert.Equal(t, Sort{Key: KeyURL, Direction: Ascending}, s)
	s = s.Toggle(KeyURL)
	assert.Equal(t, Sort{Key: KeyURL, Direction: Descending}, s)
	s = s.Toggle(KeyURL)
	assert.False(t, s.Active())
}

func TestSort_NewColumnResetsPrevious(t *testing.T) {
	s := Sort{Key: KeyURL, Direction: Descending}.Toggle(KeyStatus)
	assert.Equal(t, Sort{Key: KeyStatus, Direction: Ascending}, s)
	assert.Equal(t, Unsorted, s.DirectionOf(KeyURL))
}

func TestSort_AscDescReverseWithStableTies(t *testing.T) {
	records := []domain.URLRecord{
		{ID: 1, URL: "a", Status: domain.StatusDone},
		{ID: 2, URL: "b", Status: domain.StatusQueued},
		{ID: 3, URL: "c", Status: domain.StatusDone},
		{ID: 4, URL: "d", Status: domain.StatusError},
		{ID: 5, URL: "e", Status: domain.StatusQueued},
	}

	var s Sort
	s = s.Toggle(KeyStatus)
	assert.Equal(t, []int64{1, 3, 4, 2, 5}, domain.IDs(s.Apply(records)))

	s = s.Toggle(KeyStatus)
	assert.Equal(t, []int64{2, 5, 4, 1, 3}, domain.IDs(s.Apply(records)),
		"descending reverses the key order while equal keys stay adjacent in input order")

	s = s.Toggle(KeyStatus)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, domain.IDs(s.Apply(records)), "third toggle restores input order")
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	records := makeRecords(4)
	Sort{Key: KeyCreatedAt, Direction: Descending}.Apply(records)
	assert.Equal(t, []int64{1, 2, 3, 4}, domain.IDs(records))
}

func TestSort_LastRunNullsAfterInstants(t *testing.T) {
	at := domain.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	records := []domain.URLRecord{
		{ID: 1, URL: "a", Status: domain.StatusQueued},
		{ID: 2, URL: "b", Status: domain.StatusDone, LastRunAt: &at},
	}
	asc := Sort{Key: KeyLastRunAt, Direction: Ascending}.Apply(records)
	assert.Equal(t, []int64{2, 1}, domain.IDs(asc))
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("title:desc")
	require.NoError(t, err)
	assert.Equal(t, Sort{Key: KeyTitle, Direction: Descending}, s)
	assert.Equal(t, "title:desc", s.String())

	s, err = ParseSort("url")
	require.NoError(t, err)
	assert.Equal(t, Ascending, s.Direction)

	_, err = ParseSort("id")
	assert.Error(t, err)
	_, err = ParseSort("url:sideways")
	assert.Error(t, err)
}

// --- Pagination ---

func TestPagination_PageCount(t *testing.T) {
	for count := 0; count <= 23; count++ {
		for size := 1; size <= 7; size++ {
			p := Pagination{Size: size}
			want := (count + size - 1) / size
			if want == 0 {
				want = 1
			}
			assert.Equal(t, want, p.PageCount(count), "count=%d size=%d", count, size)
		}
	}
}

func TestPagination_IndexAlwaysInRange(t *testing.T) {
	p := Pagination{Index: 9, Size: 5}
	for count := 0; count <= 30; count++ {
		c := p.Clamp(count)
		assert.GreaterOrEqual(t, c.Index, 0)
		assert.LessOrEqual(t, c.Index, c.PageCount(count)-1)
	}
}

func TestPagination_SevenRecordsScenario(t *testing.T) {
	records := makeRecords(7)
	p := NewPagination(0)
	require.Equal(t, DefaultPageSize, p.Size)

	assert.Len(t, p.Slice(records), 5)
	assert.True(t, p.CanNext(7))
	assert.False(t, p.CanPrev(7))

	p = p.Next(7)
	assert.Len(t, p.Slice(records), 2)
	assert.False(t, p.CanNext(7), "Next must be disabled on the last page")
	assert.True(t, p.CanPrev(7))

	assert.Equal(t, p, p.Next(7), "Next on the last page is a no-op")
}

func TestPagination_SliceOfEmptySet(t *testing.T) {
	p := Pagination{Index: 3, Size: 5}
	assert.Empty(t, p.Slice(nil))
	assert.Equal(t, 0, p.Clamp(0).Index)
}

// --- Selection ---

func TestSelection_ToggleAndOrder(t *testing.T) {
	s := NewSelection()
	s = s.Toggle(3).Toggle(1).Toggle(2)
	assert.Equal(t, []int64{3, 1, 2}, s.IDs())

	s = s.Toggle(1)
	assert.Equal(t, []int64{3, 2}, s.IDs())
	assert.False(t, s.Has(1))
}

func TestSelection_IsImmutable(t *testing.T) {
	a := NewSelection(1, 2)
	b := a.Add(3)
	c := a.Remove(1)
	assert.Equal(t, []int64{1, 2}, a.IDs())
	assert.Equal(t, []int64{1, 2, 3}, b.IDs())
	assert.Equal(t, []int64{2}, c.IDs())
}

func TestSelection_Retain(t *testing.T) {
	s := NewSelection(1, 2, 3, 4)
	assert.Equal(t, []int64{2, 4}, s.Retain([]int64{4, 2, 9}).IDs())
	assert.True(t, s.Retain(nil).Empty())
}

// --- State reducer ---

func TestState_SelectPageThenFilterPrunes(t *testing.T) {
	records := makeRecords(8)
	st := NewState(5)

	st = st.Apply(SelectPage{}, records)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, st.Selection.IDs())

	st = st.Apply(SetStatusFilter{Filter: StatusFilter(domain.StatusQueued)}, records)
	for _, id := range st.Selection.IDs() {
		assert.Equal(t, domain.StatusQueued, records[id-1].Status, "id %d should have been pruned", id)
	}
	assert.Equal(t, []int64{1, 5}, st.Selection.IDs())
}

func TestState_SelectionSurvivesPaging(t *testing.T) {
	records := makeRecords(8)
	st := NewState(5)
	st = st.Apply(ToggleSelect{ID: 2}, records)
	st = st.Apply(NextPage{}, records)
	assert.Equal(t, 1, st.Page.Index)
	assert.True(t, st.Selection.Has(2))
	st = st.Apply(PrevPage{}, records)
	assert.True(t, st.Selection.Has(2))
}

func TestState_DeletedIDIsPruned(t *testing.T) {
	records := makeRecords(4)
	st := NewState(5).Apply(SelectPage{}, records)
	require.True(t, st.Selection.Has(3))

	afterDelete := append(append([]domain.URLRecord{}, records[:2]...), records[3:]...)
	st = st.Apply(RecordsChanged{}, afterDelete)
	assert.False(t, st.Selection.Has(3))
	assert.Equal(t, []int64{1, 2, 4}, st.Selection.IDs())
}

func TestState_PageClampedWhenSetShrinks(t *testing.T) {
	records := makeRecords(12)
	st := NewState(5)
	st = st.Apply(GoToPage{Index: 2}, records)
	require.Equal(t, 2, st.Page.Index)

	st = st.Apply(RecordsChanged{}, records[:6])
	assert.Equal(t, 1, st.Page.Index)

	st = st.Apply(RecordsChanged{}, nil)
	assert.Equal(t, 0, st.Page.Index)
}

func TestState_ToggleSelectIgnoresInvisible(t *testing.T) {
	records := makeRecords(4)
	st := NewState(5).Apply(SetQuery{Query: "site1"}, records)
	st = st.Apply(ToggleSelect{ID: 2}, records)
	assert.True(t, st.Selection.Empty())
}

func TestState_Derive(t *testing.T) {
	records := makeRecords(7)
	st := NewState(5).Apply(ToggleSort{Key: KeyCreatedAt}, records).Apply(ToggleSort{Key: KeyCreatedAt}, records)
	f := st.Derive(records)

	assert.Equal(t, 7, f.Total)
	assert.Equal(t, 2, f.PageCount)
	assert.Equal(t, []int64{7, 6, 5, 4, 3}, f.RowIDs())
	assert.True(t, f.CanNext)
	assert.False(t, f.CanPrev)
}

// --- Columns ---

func TestRender_ColumnKinds(t *testing.T) {
	cols := DefaultColumns()
	queued := domain.URLRecord{ID: 1, URL: "https://a.test", Status: domain.StatusQueued}
	done := domain.URLRecord{ID: 2, URL: "https://b.test", Status: domain.StatusDone, Title: title("B")}

	row := RenderRow(cols, queued, true)
	assert.Equal(t, "[x]", row[0])
	assert.Equal(t, "https://a.test", row[1])
	assert.Equal(t, "queued", row[2])
	assert.Equal(t, Placeholder, row[3], "zero created_at renders as placeholder")
	assert.Equal(t, Placeholder, row[4])
	assert.Equal(t, Placeholder, row[5])
	assert.Equal(t, "start delete", row[6])

	row = RenderRow(cols, done, false)
	assert.Equal(t, "[ ]", row[0])
	assert.Equal(t, "B", row[5])
	assert.Equal(t, "delete", row[6], "start is only offered for queued records")
}

func TestHeaderLabel(t *testing.T) {
	col := Column{Kind: KindText, Key: KeyURL, Header: "URL", Sortable: true}
	assert.Equal(t, "URL", HeaderLabel(col, Sort{}))
	assert.Equal(t, "URL ▲", HeaderLabel(col, Sort{Key: KeyURL, Direction: Ascending}))
	assert.Equal(t, "URL ▼", HeaderLabel(col, Sort{Key: KeyURL, Direction: Descending}))
	assert.Equal(t, "URL", HeaderLabel(col, Sort{Key: KeyTitle, Direction: Descending}))
}

// --- Preferences ---

func TestPreferences_RoundTripThroughState(t *testing.T) {
	records := makeRecords(3)
	st := NewState(10).
		Apply(SetStatusFilter{Filter: StatusFilter(domain.StatusDone)}, records).
		Apply(ToggleSort{Key: KeyTitle}, records).
		Apply(ToggleSort{Key: KeyTitle}, records)

	prefs := st.Preferences()
	assert.Equal(t, Preferences{Status: "done", Sort: "title:desc", PageSize: 10}, prefs)

	restored := StateFrom(prefs)
	assert.Equal(t, st.Status, restored.Status)
	assert.Equal(t, st.Sort, restored.Sort)
	assert.Equal(t, 10, restored.Page.Size)
	assert.True(t, restored.Selection.Empty())
}

func TestStateFrom_IgnoresUnknownValues(t *testing.T) {
	st := StateFrom(Preferences{Status: "paused", Sort: "bogus:up", PageSize: -3})
	assert.Equal(t, FilterAll, st.Status)
	assert.False(t, st.Sort.Active())
	assert.Equal(t, DefaultPageSize, st.Page.Size)
}

func TestState_SelectIDsIsPruned(t *testing.T) {
	records := makeRecords(4)
	st := NewState(5).Apply(SelectIDs{IDs: []int64{4, 2, 99}}, records)
	assert.Equal(t, []int64{4, 2}, st.Selection.IDs())
}
