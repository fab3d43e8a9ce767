package validate

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

const header = "site_no,sample_datetime,variable,value,unit\n"

func readCSV(t *testing.T, input string) *domain.Dataset {
	t.Helper()
	l := loader.New(schema.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ds, err := l.Read("test.csv", strings.NewReader(input))
	require.NoError(t, err)
	return ds
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func validateCSV(t *testing.T, input string) domain.ValidationReport {
	t.Helper()
	freezeClock(t)
	report, err := New(schema.Default(), DefaultOptions()).Validate(readCSV(t, input))
	require.NoError(t, err)
	return report
}

func codes(issues []domain.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func TestValidate_EndToEndScenario(t *testing.T) {
	input := header +
		"BC08NL0001,2020-01-01 08:00,TURBIDITY,2.5,NTU\n" +
		"BC08NL0001,2020-01-01 08:00,TURBIDITY,2.5,NTU\n" +
		" ,not-a-date,PH,7.0,pH\n"

	report := validateCSV(t, input)

	assert.False(t, report.Passed)
	assert.Equal(t, 3, report.Summary.RowCount)
	assert.Equal(t, []string{domain.CodeInvalidDatetime}, codes(report.Errors))
	assert.Equal(t, []string{domain.CodeDuplicateRecord, domain.CodeInvalidStationID}, codes(report.Warnings))

	dup := report.Warnings[0]
	require.NotNil(t, dup.Location.Row)
	require.NotNil(t, dup.Location.DuplicateOf)
	assert.Equal(t, 1, *dup.Location.Row)
	assert.Equal(t, 0, *dup.Location.DuplicateOf)

	station := report.Warnings[1]
	assert.Equal(t, 2, *station.Location.Row)
	assert.Equal(t, domain.ColStationID, station.Location.Column)
	assert.Equal(t, domain.CategoryBusinessRule, station.Category)

	invalid := report.Errors[0]
	assert.Equal(t, 2, *invalid.Location.Row)
	assert.Equal(t, 4, invalid.Location.Line)
	assert.Equal(t, domain.ColTimestamp, invalid.Location.Column)
	assert.Contains(t, invalid.Message, "not-a-date")

	assert.Equal(t, 1, report.Summary.DistinctStationCount)
	assert.Equal(t, 2, report.Summary.DistinctParameterCount)
	assert.Equal(t, map[domain.Category]int{
		domain.CategorySchema:       0,
		domain.CategoryQuality:      1,
		domain.CategoryBusinessRule: 2,
	}, report.Summary.IssueCountsByCategory)
	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityError:   1,
		domain.SeverityWarning: 2,
	}, report.Summary.IssueCountsBySeverity)
	assert.InDelta(t, 1.0/3.0, report.Summary.NullRatesByColumn[domain.ColStationID], 1e-9)
	assert.InDelta(t, 1.0/3.0, report.Summary.NullRatesByColumn[domain.ColTimestamp], 1e-9)
	assert.Equal(t, 0.0, report.Summary.NullRatesByColumn[domain.ColValue])
}

func TestValidate_RangeBoundaries(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"-1000", true},
		{"1e9", true},
		{"1000000000", true},
		{"0", true},
		{"-1000.01", false},
		{"1000000001", false},
		{"1e10", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			report := validateCSV(t, header+"S1,2020-01-01,PH,"+tt.value+",pH\n")
			if tt.ok {
				assert.True(t, report.Passed)
				assert.Zero(t, report.CountCode(domain.CodeValueOutOfRange))
				return
			}
			assert.False(t, report.Passed)
			require.Len(t, report.Errors, 1)
			assert.Equal(t, domain.CodeValueOutOfRange, report.Errors[0].Code)
			assert.Equal(t, domain.ColValue, report.Errors[0].Location.Column)
		})
	}
}

func TestValidate_TimestampBoundaries(t *testing.T) {
	tests := []struct {
		ts   string
		want string
	}{
		{"1899-12-31", domain.CodeTimestampOutOfRange},
		{"1899-12-31 23:59:59", domain.CodeTimestampOutOfRange},
		{"1900-01-01", ""},
		{"2099-12-31 23:59:59", domain.CodeFutureTimestamp},
		{"2100-01-01", domain.CodeTimestampOutOfRange},
		{"2100-01-01T00:00:00Z", domain.CodeTimestampOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			report := validateCSV(t, header+"S1,"+tt.ts+",PH,7,pH\n")
			all := codes(report.Issues())
			if tt.want == "" {
				assert.Empty(t, all)
				return
			}
			assert.Equal(t, []string{tt.want}, all)
		})
	}
}

func TestValidate_FutureTimestampCanBeDisabled(t *testing.T) {
	freezeClock(t)
	ds := readCSV(t, header+"S1,2030-01-01,PH,7,pH\n")

	report, err := New(schema.Default(), Options{}).Validate(ds)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Warnings)

	report, err = New(schema.Default(), DefaultOptions()).Validate(ds)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, []string{domain.CodeFutureTimestamp}, codes(report.Warnings))
}

func TestValidate_DuplicateDetection(t *testing.T) {
	input := header +
		"S1,2020-01-01 08:00,PH,7.0,pH\n" +
		"S1,2020-01-01 09:00,PH,7.1,pH\n" +
		"S1,2020-01-01T08:00:00Z,PH,7.4,pH\n" +
		"S2,2020-01-01 08:00,PH,7.0,pH\n"

	report := validateCSV(t, input)

	assert.True(t, report.Passed)
	require.Equal(t, 1, report.CountCode(domain.CodeDuplicateRecord))
	dup := report.Warnings[0]
	assert.Equal(t, 2, *dup.Location.Row)
	assert.Equal(t, 0, *dup.Location.DuplicateOf)
	assert.Equal(t, "S1", dup.Location.StationID)
}

func TestValidate_DuplicatesAllPointAtFirstOccurrence(t *testing.T) {
	row := "S1,2020-01-01,PH,7,pH\n"
	report := validateCSV(t, header+row+row+row)

	require.Len(t, report.Warnings, 2)
	for _, w := range report.Warnings {
		assert.Equal(t, domain.CodeDuplicateRecord, w.Code)
		assert.Equal(t, 0, *w.Location.DuplicateOf)
	}
}

func TestValidate_NullKeysAreNotDuplicates(t *testing.T) {
	row := "S1,bad-date,PH,7,pH\n"
	report := validateCSV(t, header+row+row)

	assert.Zero(t, report.CountCode(domain.CodeDuplicateRecord))
	assert.Equal(t, 2, report.CountCode(domain.CodeInvalidDatetime))
}

func TestValidate_MissingRequiredColumn(t *testing.T) {
	report := validateCSV(t, "site_no,variable,value,unit\nS1,PH,7,pH\n")

	assert.False(t, report.Passed)
	require.Len(t, report.Errors, 1)
	issue := report.Errors[0]
	assert.Equal(t, domain.CodeMissingRequiredColumn, issue.Code)
	assert.Equal(t, domain.CategorySchema, issue.Category)
	assert.Equal(t, domain.ColTimestamp, issue.Location.Column)
	assert.Nil(t, issue.Location.Row)
	assert.Contains(t, issue.Message, "sample_datetime")

	assert.Zero(t, report.CountCode(domain.CodeInvalidDatetime))
	assert.Zero(t, report.CountCode(domain.CodeDuplicateRecord))
	assert.Equal(t, 1.0, report.Summary.NullRatesByColumn[domain.ColTimestamp])
	assert.Nil(t, report.Summary.DateRange)
}

func TestValidate_EmptyDataset(t *testing.T) {
	report := validateCSV(t, header)

	assert.False(t, report.Passed)
	assert.Equal(t, []string{domain.CodeEmptyDataset}, codes(report.Errors))
	assert.Equal(t, 0, report.Summary.RowCount)
	for col, rate := range report.Summary.NullRatesByColumn {
		assert.Zero(t, rate, col)
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	report := validateCSV(t, header+"S1,2020-01-01,PH,abc,pH\nS1,2020-01-02,PH,,pH\n")

	assert.True(t, report.Passed)
	require.Equal(t, []string{domain.CodeTypeMismatch}, codes(report.Warnings))
	w := report.Warnings[0]
	assert.Equal(t, domain.CategorySchema, w.Category)
	assert.Equal(t, 0, *w.Location.Row)
	assert.Equal(t, domain.ColValue, w.Location.Column)
	assert.Contains(t, w.Message, `"abc"`)
	assert.Equal(t, 0.5, report.Summary.NullRatesByColumn[domain.ColValue])
}

func TestValidate_EmptyTimestampIsInvalid(t *testing.T) {
	report := validateCSV(t, header+"S1,,PH,7,pH\n")

	assert.Equal(t, []string{domain.CodeInvalidDatetime}, codes(report.Errors))
	assert.Empty(t, report.Warnings)
}

func TestValidate_CodeSets(t *testing.T) {
	input := "site_no,sample_datetime,variable,value,unit,qualifier_flag,qa_status\n" +
		"S1,2020-01-01,PH,7,pH,<,V\n" +
		"S1,2020-01-02,PH,7,pH,Z,P\n" +
		"S1,2020-01-03,PH,7,pH,,X\n" +
		"S1,2020-01-04,PH,7,pH,e,\n"

	report := validateCSV(t, input)

	assert.True(t, report.Passed)
	assert.Equal(t, []string{
		domain.CodeInvalidQualifierCode,
		domain.CodeInvalidQAStatus,
		domain.CodeInvalidQualifierCode,
	}, codes(report.Warnings))
	rows := make([]int, len(report.Warnings))
	for i, w := range report.Warnings {
		rows[i] = *w.Location.Row
	}
	assert.Equal(t, []int{1, 2, 3}, rows)
}

func TestValidate_StationID(t *testing.T) {
	input := header +
		"BC08NL0001,2020-01-01,PH,7,pH\n" +
		"\"BC 08\",2020-01-01,PH,7,pH\n" +
		strings.Repeat("X", 51) + ",2020-01-01,PH,7,pH\n" +
		"BC08\u00a0NL0001,2020-01-01,PH,7,pH\n" +
		"BC08\vNL0001,2020-01-01,PH,7,pH\n" +
		"BC08\u2003NL0001,2020-01-01,PH,7,pH\n" +
		"BC08\u0085NL0001,2020-01-01,PH,7,pH\n"

	report := validateCSV(t, input)

	require.Len(t, report.Warnings, 6)
	for i, w := range report.Warnings {
		assert.Equal(t, domain.CodeInvalidStationID, w.Code)
		assert.Equal(t, i+1, *w.Location.Row)
	}
	assert.Contains(t, report.Warnings[1].Message, "51 characters")
}

func TestValidate_ZonedTimestampsPass(t *testing.T) {
	for _, ts := range []string{
		"2020-01-01T08:00Z",
		"2020-01-01T08:00+05:00",
		"2020-01-01T08:00:00+0000",
		"2020-01-01 08:00:00+00:00",
	} {
		t.Run(ts, func(t *testing.T) {
			report := validateCSV(t, header+"BC08NL0001,"+ts+",PH,7.0,pH\n")

			assert.True(t, report.Passed)
			assert.Zero(t, report.CountCode(domain.CodeInvalidDatetime))
		})
	}
}

func TestValidate_LengthLimits(t *testing.T) {
	input := header + "S1,2020-01-01," + strings.Repeat("p", 201) + ",7," + strings.Repeat("u", 51) + "\n"

	report := validateCSV(t, input)

	assert.Equal(t, []string{domain.CodeValueTooLong, domain.CodeValueTooLong}, codes(report.Warnings))
	assert.Equal(t, domain.ColParameter, report.Warnings[0].Location.Column)
	assert.Equal(t, domain.ColUnit, report.Warnings[1].Location.Column)
}

func TestValidate_NullRatePolicy(t *testing.T) {
	freezeClock(t)
	input := "site_no,sample_datetime,variable,value,unit,qualifier_flag\n" +
		"S1,2020-01-01,PH,,pH,\n" +
		"S1,2020-01-02,PH,,pH,\n" +
		"S1,2020-01-03,PH,7,pH,\n" +
		"S1,2020-01-04,PH,,pH,<\n"
	ds := readCSV(t, input)

	report, err := New(schema.Default(), Options{NullRateWarn: 0.5, NullRateError: 0.7}).Validate(ds)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Errors, 2)
	for _, e := range report.Errors {
		assert.Equal(t, domain.CodeHighNullRate, e.Code)
		assert.Equal(t, domain.CategoryQuality, e.Category)
	}
	assert.Equal(t, domain.ColValue, report.Errors[0].Location.Column)
	assert.Equal(t, domain.ColQualifier, report.Errors[1].Location.Column)
	assert.Equal(t, 0.75, report.Summary.NullRatesByColumn[domain.ColValue])

	report, err = New(schema.Default(), Options{NullRateWarn: 0.5}).Validate(ds)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, []string{domain.CodeHighNullRate, domain.CodeHighNullRate}, codes(report.Warnings))

	// A rate equal to a threshold does not exceed it.
	report, err = New(schema.Default(), Options{NullRateWarn: 0.75, NullRateError: 0.75}).Validate(ds)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Zero(t, report.CountCode(domain.CodeHighNullRate))
}

func TestValidate_UnmappedColumnsInSummary(t *testing.T) {
	report := validateCSV(t, "site_no,sample_datetime,variable,value,unit,sdl,colour\nS1,2020-01-01,PH,7,pH,0.1,red\n")

	assert.True(t, report.Passed)
	assert.Equal(t, []string{"sdl", "colour"}, report.Summary.UnmappedColumns)
}

func TestValidate_Idempotent(t *testing.T) {
	freezeClock(t)
	input := header +
		"BC08NL0001,2020-01-01 08:00,TURBIDITY,2.5,NTU\n" +
		"BC08NL0001,2020-01-01 08:00,TURBIDITY,2.5,NTU\n" +
		" ,not-a-date,PH,7.0,pH\n" +
		"S2,1850-01-01,PH,-5000,pH\n" +
		"S3,2020-01-01,PH,abc,pH\n"
	v := New(schema.Default(), DefaultOptions())

	ds := readCSV(t, input)
	first, err := v.Validate(ds)
	require.NoError(t, err)
	second, err := v.Validate(ds)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second validation differs (-first +second):\n%s", diff)
	}

	third, err := v.Validate(readCSV(t, input))
	require.NoError(t, err)
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("re-normalized validation differs (-first +third):\n%s", diff)
	}
}

func TestValidate_PassOrder(t *testing.T) {
	input := header +
		"S1,2020-01-05,PH,abc,pH\n" +
		"S1,1800-01-01,PH,7,pH\n" +
		"S1,2020-01-01,PH,7,pH\n" +
		"S1,2020-01-01,PH,8,pH\n"

	report := validateCSV(t, input)

	assert.Equal(t, []string{domain.CodeTimestampOutOfRange}, codes(report.Errors))
	assert.Equal(t, []string{domain.CodeTypeMismatch, domain.CodeDuplicateRecord}, codes(report.Warnings))
	assert.Equal(t, []string{
		domain.CodeTimestampOutOfRange, domain.CodeTypeMismatch, domain.CodeDuplicateRecord,
	}, codes(report.Issues()))
}

func TestValidate_EngineErrors(t *testing.T) {
	good := readCSV(t, header+"S1,2020-01-01,PH,7,pH\nS1,2020-01-02,PH,7,pH\n")

	tests := []struct {
		name     string
		contract *schema.Contract
		ds       func() *domain.Dataset
	}{
		{
			name:     "nil dataset",
			contract: schema.Default(),
			ds:       func() *domain.Dataset { return nil },
		},
		{
			name:     "nil contract",
			contract: nil,
			ds:       func() *domain.Dataset { return good },
		},
		{
			name:     "out of order records",
			contract: schema.Default(),
			ds: func() *domain.Dataset {
				ds := *good
				ds.Records = []domain.NormalizedRecord{good.Records[1], good.Records[0]}
				return &ds
			},
		},
		{
			name:     "record without cells",
			contract: schema.Default(),
			ds: func() *domain.Dataset {
				ds := *good
				ds.Records = []domain.NormalizedRecord{{Index: 0}}
				return &ds
			},
		},
		{
			name:     "record missing a present column",
			contract: schema.Default(),
			ds: func() *domain.Dataset {
				ds := *good
				ds.Records = []domain.NormalizedRecord{{Index: 0, Cells: map[string]domain.Cell{}}}
				return &ds
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.contract, DefaultOptions()).Validate(tt.ds())
			require.Error(t, err)
			var engErr *ValidationEngineError
			assert.True(t, errors.As(err, &engErr))
		})
	}
}

func TestNullRates_CoverEveryContractColumn(t *testing.T) {
	ds := readCSV(t, header+"S1,2020-01-01,PH,,pH\nS1,2020-01-02,PH,1,pH\n")

	rates := NullRates(ds, schema.Default())
	assert.Len(t, rates, len(schema.Default().NormalizedColumns()))
	assert.Equal(t, 0.5, rates[domain.ColValue])
	assert.Equal(t, 1.0, rates[domain.ColQualifier])
	assert.Equal(t, 0.0, rates[domain.ColStationID])
}

func TestPasses_AreIndependent(t *testing.T) {
	ds := readCSV(t, header+"S1,2020-01-01,PH,abc,pH\nS1,2020-01-01,PH,7,pH\n")
	c := schema.Default()

	assert.Equal(t, []string{domain.CodeTypeMismatch}, codes(SchemaPass(ds, c)))
	assert.Empty(t, QualityPass(QualityOptions{})(ds, c))
	assert.Equal(t, []string{domain.CodeDuplicateRecord}, codes(BusinessRulePass(ds, c)))
}
