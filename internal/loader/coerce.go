package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// Coerce converts raw cell text to typ. Null tokens give a null cell and
// succeed. Text that does not parse gives a null cell carrying the original
// text in Raw, and ok is false.
func Coerce(c *schema.Contract, typ domain.ColumnType, raw string) (cell domain.Cell, ok bool) {
	s := strings.TrimSpace(raw)
	if c.IsNullToken(s) {
		return domain.Cell{Type: typ}, true
	}

	switch typ {
	case domain.TypeNumber:
		v, ok := parseNumber(s)
		if !ok {
			return domain.Cell{Type: typ, Raw: raw}, false
		}
		return domain.Cell{Type: typ, Valid: true, Num: v}, true
	case domain.TypeDatetime:
		t, ok := parseTime(s, c.TimeLayouts())
		if !ok {
			return domain.Cell{Type: typ, Raw: raw}, false
		}
		return domain.Cell{Type: typ, Valid: true, Time: t}, true
	default:
		return domain.Cell{Type: domain.TypeString, Valid: true, Str: s}, true
	}
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseTime tries each layout in order. Values without a zone are UTC.
func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
