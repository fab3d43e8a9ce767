package loader

import (
	"testing"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
	"github.com/stretchr/testify/assert"
)

func TestCoerce_Datetime(t *testing.T) {
	c := schema.Default()

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2020-01-01 08:00", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01 08:00:15", time.Date(2020, 1, 1, 8, 0, 15, 0, time.UTC)},
		{"2020-01-01T08:00", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01T08:00:15", time.Date(2020, 1, 1, 8, 0, 15, 0, time.UTC)},
		{"2020-01-01T08:00:15Z", time.Date(2020, 1, 1, 8, 0, 15, 0, time.UTC)},
		{"2020-01-01T08:00:15-08:00", time.Date(2020, 1, 1, 16, 0, 15, 0, time.UTC)},
		{"2020-01-01T08:00:15.250Z", time.Date(2020, 1, 1, 8, 0, 15, 250_000_000, time.UTC)},
		{"2020-01-01T08:00Z", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01T08:00+05:00", time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC)},
		{"2020-01-01T08:00-0700", time.Date(2020, 1, 1, 15, 0, 0, 0, time.UTC)},
		{"2020-01-01T08:00:00+0000", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01T08:00:00.5+0100", time.Date(2020, 1, 1, 7, 0, 0, 500_000_000, time.UTC)},
		{"2020-01-01 08:00:00+00:00", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01 08:00:00.123456-08:00", time.Date(2020, 1, 1, 16, 0, 0, 123_456_000, time.UTC)},
		{"2020-01-01 08:00:00+0530", time.Date(2020, 1, 1, 2, 30, 0, 0, time.UTC)},
		{"2020-01-01 08:00Z", time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"  1899-12-31 ", time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cell, ok := Coerce(c, domain.TypeDatetime, tt.raw)
			assert.True(t, ok)
			assert.True(t, cell.Valid)
			assert.True(t, tt.want.Equal(cell.Time), "got %s", cell.Time)
			assert.Equal(t, time.UTC, cell.Time.Location())
		})
	}
}

func TestCoerce_DatetimeFailures(t *testing.T) {
	c := schema.Default()
	for _, raw := range []string{"not-a-date", "01/02/2020", "2020-13-01", "2020-01-01 25:00", "Jan 1 2020", "2020-01-01 08:00:00 +00:00"} {
		t.Run(raw, func(t *testing.T) {
			cell, ok := Coerce(c, domain.TypeDatetime, raw)
			assert.False(t, ok)
			assert.True(t, cell.Null())
			assert.True(t, cell.CoercionFailed())
			assert.Equal(t, raw, cell.Raw)
			assert.Equal(t, domain.TypeDatetime, cell.Type)
		})
	}
}

func TestCoerce_Number(t *testing.T) {
	c := schema.Default()

	tests := []struct {
		raw    string
		want   float64
		valid  bool
		failed bool
	}{
		{raw: "2.5", want: 2.5, valid: true},
		{raw: " -1000 ", want: -1000, valid: true},
		{raw: "1e9", want: 1e9, valid: true},
		{raw: "0", want: 0, valid: true},
		{raw: ""},
		{raw: "   "},
		{raw: "NA"},
		{raw: "NaN"},
		{raw: "abc", failed: true},
		{raw: "1,5", failed: true},
		{raw: "Inf", failed: true},
		{raw: "<0.1", failed: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cell, ok := Coerce(c, domain.TypeNumber, tt.raw)
			assert.Equal(t, !tt.failed, ok)
			assert.Equal(t, tt.valid, cell.Valid)
			assert.Equal(t, tt.failed, cell.CoercionFailed())
			if tt.valid {
				assert.Equal(t, tt.want, cell.Num)
			}
		})
	}
}

func TestCoerce_StringTrimsWithoutCaseFolding(t *testing.T) {
	c := schema.Default()

	cell, ok := Coerce(c, domain.TypeString, "  BC08nl0001\t")
	assert.True(t, ok)
	assert.Equal(t, "BC08nl0001", cell.Str)

	cell, ok = Coerce(c, domain.TypeString, " ")
	assert.True(t, ok)
	assert.True(t, cell.Null())
	assert.False(t, cell.CoercionFailed())
}
