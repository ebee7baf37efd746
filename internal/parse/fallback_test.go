package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractByPattern_RecoversMalformedObjects(t *testing.T) {
	raw := `Metrics follow
{"Metric": "Clicks", "Value": "1,200", "Change (%)": 10.5, "Period": "Month on Month"}
{"Metric": "Cost", "Value": "£500", "Change (%)": "N/A", "Period": "Month on Month"
and then {"Metric": "CTR" "Value": "0.2"; "Change (%)": null "Period": "Year on Year"}`

	recs := ExtractByPattern(raw)
	require.Len(t, recs, 3)

	assert.Equal(t, "Clicks", recs[0].Metric)
	assert.Equal(t, "1,200", recs[0].Value)
	require.NotNil(t, recs[0].Change)
	assert.InDelta(t, 10.5, *recs[0].Change, 1e-9)
	assert.Equal(t, "Month on Month", recs[0].Period)

	assert.Equal(t, "Cost", recs[1].Metric)
	assert.Equal(t, "£500", recs[1].Value)
	assert.Nil(t, recs[1].Change)

	assert.Equal(t, "CTR", recs[2].Metric)
	assert.Nil(t, recs[2].Change)
	assert.Equal(t, "Year on Year", recs[2].Period)
}

func TestExtractByPattern_LabelVariants(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantMetric string
		wantValue  string
		wantChange *float64
		wantPeriod string
	}{
		{
			name:       "single quotes",
			raw:        `{'metric': 'Impressions', 'value': '9,000', 'change': '-4', 'period': 'Year on Year'}`,
			wantMetric: "Impressions", wantValue: "9,000", wantChange: ptr(-4), wantPeriod: "Year on Year",
		},
		{
			name:       "equals and bare values",
			raw:        `metric=Conversions; value=42; change%=+3.5%; period=Current Period`,
			wantMetric: "Conversions", wantValue: "42", wantChange: ptr(3.5), wantPeriod: "Current Period",
		},
		{
			name:       "smart quotes",
			raw:        "{“Metric”: “ROAS”, “Value”: “4.2”, “Change (%)”: “∞”, “Period”: “Month on Month”}",
			wantMetric: "ROAS", wantValue: "4.2", wantChange: nil, wantPeriod: "Month on Month",
		},
		{
			name:       "unparseable change",
			raw:        `"Metric": "Leads", "Value": "17", "Change (%)": "about ten", "Period": "Month on Month"`,
			wantMetric: "Leads", wantValue: "17", wantChange: nil, wantPeriod: "Month on Month",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := ExtractByPattern(tt.raw)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.wantMetric, recs[0].Metric)
			assert.Equal(t, tt.wantValue, recs[0].Value)
			assert.Equal(t, tt.wantPeriod, recs[0].Period)
			if tt.wantChange == nil {
				assert.Nil(t, recs[0].Change)
				return
			}
			require.NotNil(t, recs[0].Change)
			assert.InDelta(t, *tt.wantChange, *recs[0].Change, 1e-9)
		})
	}
}

func TestExtractByPattern_NoMatches(t *testing.T) {
	tests := []string{
		"",
		"The report shows strong growth across all campaigns.",
		// Missing the period label: the pattern needs all four.
		`{"Metric": "Clicks", "Value": "10", "Change (%)": 1}`,
		// Empty metric is skipped.
		`{"Metric": "", "Value": "10", "Change (%)": 1, "Period": "Month on Month"}`,
	}
	for _, raw := range tests {
		recs := ExtractByPattern(raw)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	}
}

func ptr(v float64) *float64 { return &v }

func TestExtractByPattern_GroupedBareNumbers(t *testing.T) {
	raw := "Metric: Clicks, Value: 1,200, Change: 10.5, Period: Month on Month\n" +
		"Metric: Cost, Value: £500, Change: -3, Period: Year on Year\n" +
		"Metric: Spend, Value: £12,450.75, Change: 1,200.5, Period: Year on Year\n" +
		"Metric: Reach, Value: -1,000,000%, Change: 0, Period: Current Period"

	recs := ExtractByPattern(raw)
	require.Len(t, recs, 4)

	assert.Equal(t, "Clicks", recs[0].Metric)
	assert.Equal(t, "1,200", recs[0].Value)
	require.NotNil(t, recs[0].Change)
	assert.InDelta(t, 10.5, *recs[0].Change, 1e-9)
	assert.Equal(t, "Month on Month", recs[0].Period)

	assert.Equal(t, "Cost", recs[1].Metric)
	assert.Equal(t, "£500", recs[1].Value)

	assert.Equal(t, "Spend", recs[2].Metric)
	assert.Equal(t, "£12,450.75", recs[2].Value)
	require.NotNil(t, recs[2].Change)
	assert.InDelta(t, 1200.5, *recs[2].Change, 1e-9)

	assert.Equal(t, "Reach", recs[3].Metric)
	assert.Equal(t, "-1,000,000%", recs[3].Value)
	assert.Equal(t, "Current Period", recs[3].Period)
}

func TestExtractByPattern_UngroupedCommaNumbersAreNotRecovered(t *testing.T) {
	// Digits after a comma that do not form a thousands group cannot be told
	// apart from a stray field, so the fragment is skipped.
	recs := ExtractByPattern("Metric: Clicks, Value: 12,00, Change: 1, Period: Month on Month")
	assert.Empty(t, recs)

	recs = ExtractByPattern("Metric: Clicks, Value: 1 200, Change: 1, Period: Month on Month")
	require.Len(t, recs, 1)
	assert.Equal(t, "1 200", recs[0].Value)
}
