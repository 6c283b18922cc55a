package leads_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salasarservices/pulse/internal/leads"
	"github.com/salasarservices/pulse/internal/model"
)

type fakeStore struct {
	records []leads.Record
	err     error
	flushed bool
}

func (f *fakeStore) All(context.Context) ([]leads.Record, error) {
	return f.records, f.err
}

func (f *fakeStore) Flush(context.Context) (leads.FlushResult, error) {
	if f.err != nil {
		return leads.FlushResult{}, f.err
	}
	f.flushed = true
	n := int64(len(f.records))
	f.records = nil
	return leads.FlushResult{Collections: []string{"leads"}, Deleted: n}, nil
}

func sample() []leads.Record {
	return []leads.Record{
		{
			{Key: "Name", Value: "Asha"},
			{Key: "Number", Value: "9820000000"},
			{Key: "Brokerage Received", Value: "1,250.5"},
			{Key: "Date", Value: int32(20250814)},
			{Key: "Lead Status", Value: " Interested "},
		},
		{
			{Key: "Name", Value: "Ravi"},
			{Key: "Date", Value: "20250702"},
			{Key: "Lead Status", Value: "Closed"},
			{Key: "Brokerage Received", Value: float64(5000)},
			{Key: "City", Value: "Pune"},
		},
		{
			{Key: "Name", Value: "Meera"},
			{Key: "Date", Value: "soon"},
			{Key: "Lead Status", Value: "Not Interested"},
			{Key: "Brokerage Received", Value: "n/a"},
		},
		{
			{Key: "Name", Value: "Kiran"},
			{Key: "Lead Status", Value: "Callback"},
		},
	}
}

// ─── Normalization ────────────────────────────────────────────────────────────

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "August 2025", leads.MonthLabel("20250814"))
	assert.Equal(t, "August 2025", leads.MonthLabel(20250814.0))
	assert.Equal(t, "", leads.MonthLabel("2025-08"))
	assert.Equal(t, "", leads.MonthLabel("20251345"))
	assert.Equal(t, "", leads.MonthLabel(nil))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, model.StatusInterested, leads.ClassifyStatus(" Interested"))
	assert.Equal(t, model.StatusNotInterested, leads.ClassifyStatus("Not Interested"))
	assert.Equal(t, model.StatusClosed, leads.ClassifyStatus("Closed "))
	assert.Equal(t, model.StatusOther, leads.ClassifyStatus("interested"))
	assert.Equal(t, model.StatusOther, leads.ClassifyStatus(""))

	assert.Equal(t, leads.ColorInterested, leads.StatusColor("Interested"))
	assert.Equal(t, leads.ColorClosed, leads.StatusColor("Closed"))
	assert.Equal(t, leads.ColorNotInterested, leads.StatusColor("Not Interested"))
	assert.Equal(t, leads.ColorOther, leads.StatusColor("Callback"))
}

func TestNormalize(t *testing.T) {
	all := leads.NormalizeAll(sample())
	require.Len(t, all, 4)

	asha := all[0]
	assert.Equal(t, "August 2025", asha.Month)
	assert.Equal(t, "20250814", asha.DateRaw)
	assert.Equal(t, "Interested", asha.Status)
	assert.Equal(t, model.StatusInterested, asha.StatusClass)
	require.True(t, asha.HasBrokerage())
	assert.Equal(t, 1250.5, *asha.Brokerage)
	assert.Equal(t, "₹ 1250.50", asha.Get("Brokerage Received"))
	assert.Equal(t, "August 2025", asha.Get("Date"))
	assert.Equal(t, "", asha.Get("Number"), "phone numbers are not displayed")
	assert.Len(t, asha.Fields, 4)

	meera := all[2]
	assert.Equal(t, "", meera.Month)
	assert.False(t, meera.HasBrokerage())
	assert.Equal(t, "", meera.Get("Brokerage Received"))

	kiran := all[3]
	assert.Equal(t, model.StatusOther, kiran.StatusClass)
	assert.Nil(t, kiran.Brokerage)
}

func TestLoad(t *testing.T) {
	got, err := leads.Load(context.Background(), &fakeStore{records: sample()})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = leads.Load(context.Background(), &fakeStore{err: errors.New("connection refused")})
	assert.ErrorContains(t, err, "reading leads")
}

func TestFlushEmptiesStore(t *testing.T) {
	s := &fakeStore{records: sample()}
	res, err := s.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Deleted)

	got, err := leads.Load(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, model.LeadSummary{}, leads.Summarize(got))
}

// ─── Summary ──────────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	s := leads.Summarize(leads.NormalizeAll(sample()))
	assert.Equal(t, model.LeadSummary{
		Total:          4,
		Interested:     1,
		NotInterested:  1,
		Closed:         1,
		TotalBrokerage: 6250.5,
	}, s)
}

func TestFilterMonth(t *testing.T) {
	all := leads.NormalizeAll(sample())

	aug, err := leads.FilterMonth(all, "August 2025")
	require.NoError(t, err)
	require.Len(t, aug, 1)
	assert.Equal(t, "Asha", aug[0].Get("Name"))

	jul, err := leads.FilterMonth(all, "2025-07")
	require.NoError(t, err)
	require.Len(t, jul, 1)

	none, err := leads.FilterMonth(all, "March 2020")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = leads.FilterMonth(all, "Smarch")
	assert.Error(t, err)
}

// ─── Display ──────────────────────────────────────────────────────────────────

func TestColumns(t *testing.T) {
	cols := leads.Columns(leads.NormalizeAll(sample()))
	assert.Equal(t, []string{"Name", "Date", "Lead Status", "Brokerage Received", "City"}, cols)

	noStatus := []model.Lead{{Fields: []model.Field{{Name: "Brokerage Received"}, {Name: "Name"}}}}
	assert.Equal(t, []string{"Brokerage Received", "Name"}, leads.Columns(noStatus))
	assert.Empty(t, leads.Columns(nil))
}

func TestMonthColors(t *testing.T) {
	all := []model.Lead{{Month: "September 2025"}, {Month: "July 2025"}, {Month: ""}, {Month: "July 2025"}}
	colors := leads.MonthColors(all)
	assert.Len(t, colors, 2)
	assert.Equal(t, "#f7f1d5", colors["July 2025"])
	assert.Equal(t, "#fbe4eb", colors["September 2025"])
}

func TestFormatAmount(t *testing.T) {
	v := 1234.5
	assert.Equal(t, "₹ 1234.50", leads.FormatAmount(&v))
	assert.Equal(t, "", leads.FormatAmount(nil))
}

func TestFormatBrokerage(t *testing.T) {
	cases := map[float64]string{
		0:        "₹ 0.00",
		999.5:    "₹ 999.50",
		1500:     "₹ 1.5K",
		45000:    "₹ 45K",
		250000:   "₹ 2.5L",
		32000000: "₹ 3.2Cr",
	}
	for in, want := range cases {
		assert.Equal(t, want, leads.FormatBrokerage(in), "%v", in)
	}
}
