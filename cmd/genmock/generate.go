package main

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

var header = []string{
	"site_no", "sample_datetime", "variable", "variable_fr", "variable_code",
	"value", "unit", "qualifier_flag", "sdl", "mdl", "qa_status", "sample_id",
}

type parameter struct {
	name, nameFR, code, unit string
	lo, hi                   float64
}

var (
	stations = []string{"BC08NL0001", "BC08MH0453", "AB05BH0045", "MB05OJ0001"}

	parameters = []parameter{
		{"PH", "PH", "10301", "pH", 6.2, 8.9},
		{"TURBIDITY", "TURBIDITÉ", "02073", "NTU", 0.1, 180},
		{"TEMPERATURE WATER", "TEMPÉRATURE DE L'EAU", "02061", "DEG C", 0, 24},
		{"NITROGEN DISSOLVED NITRATE", "AZOTE DISSOUS NITRATE", "07110", "MG/L", 0.002, 3.5},
	}

	cleanStart  = time.Date(2020, time.January, 1, 8, 0, 0, 0, time.UTC)
	defectStart = time.Date(2023, time.March, 1, 8, 0, 0, 0, time.UTC)
)

// defect is one seeded row and the issue code the validator must report for it.
type defect struct {
	code  string
	apply func(row []string)
}

// defects are appended after the clean rows. Each starts from a valid row
// with its own timestamp, so exactly one issue is expected per defect.
var defects = []defect{
	{domain.CodeInvalidDatetime, func(r []string) { r[1] = "2020-13-45 08:00" }},
	{domain.CodeTimestampOutOfRange, func(r []string) { r[1] = "1850-06-01 08:00" }},
	{domain.CodeFutureTimestamp, func(r []string) { r[1] = "2030-01-01 08:00" }},
	{domain.CodeValueOutOfRange, func(r []string) { r[5] = "-5000" }},
	{domain.CodeTypeMismatch, func(r []string) { r[5] = "abc" }},
	{domain.CodeInvalidStationID, func(r []string) { r[0] = "" }},
	{domain.CodeInvalidStationID, func(r []string) { r[0] = "BC08 NL0001" }},
	{domain.CodeInvalidQualifierCode, func(r []string) { r[7] = "Q" }},
	{domain.CodeInvalidQAStatus, func(r []string) { r[10] = "X" }},
	{domain.CodeValueTooLong, func(r []string) { r[6] = strings.Repeat("M", 60) }},
}

// expectedCodes counts the issue codes the seeded defects produce, including
// the one duplicate of the first clean row.
func expectedCodes() map[string]int {
	want := map[string]int{domain.CodeDuplicateRecord: 1}
	for _, d := range defects {
		want[d.code]++
	}
	return want
}

// generate returns header plus n clean rows, one duplicate, and the defect rows.
func generate(n int, seed uint64) [][]string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([][]string, 0, n+len(defects)+2)
	out = append(out, header)
	for i := range n {
		out = append(out, cleanRow(rng, i, cleanStart.Add(time.Duration(i)*6*time.Hour)))
	}
	out = append(out, append([]string(nil), out[1]...))

	for i, d := range defects {
		row := cleanRow(rng, n+i, defectStart.Add(time.Duration(i)*24*time.Hour))
		row[0] = "NU10LB0001"
		d.apply(row)
		out = append(out, row)
	}
	return out
}

func cleanRow(rng *rand.Rand, i int, ts time.Time) []string {
	p := parameters[(i/len(stations))%len(parameters)]
	v := p.lo + rng.Float64()*(p.hi-p.lo)

	qualifier := ""
	if rng.IntN(10) == 0 {
		qualifier = "<"
	}
	qa := "V"
	if rng.IntN(3) == 0 {
		qa = "P"
	}

	return []string{
		stations[i%len(stations)],
		ts.Format("2006-01-02 15:04"),
		p.name,
		p.nameFR,
		p.code,
		strconv.FormatFloat(v, 'f', 3, 64),
		p.unit,
		qualifier,
		"0.001",
		"0.002",
		qa,
		"S" + strconv.Itoa(100000+i),
	}
}
