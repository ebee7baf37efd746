package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/report-analyst/internal/model"
)

func TestFormatValue(t *testing.T) {
	n := New("")
	tests := []struct {
		in   string
		want string
	}{
		{"1,200", "£1,200"},
		{"12,345.67", "£12,345.67"},
		{"0.2", "0.2%"},
		{"3.2", "3.2%"},
		{"4.99", "4.99%"},
		{"5.0", "5.0"},
		{"0.0", "0.0"},
		{"1,000,000", "£1,000,000"},
		{"100", "100"},
		{"1,00", "1,00"},
		{"£500", "£500"},
		{"$1,200", "$1,200"},
		{"€3.1", "€3.1"},
		{"2.5%", "2.5%"},
		{"173.25K", "173.25K"},
		{"42", "42"},
		{"  1,200 ", "£1,200"},
		{"n/a", "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.FormatValue(tt.in))
		})
	}
}

func TestFormatValue_CustomCurrency(t *testing.T) {
	n := New("$")
	assert.Equal(t, "$1,200", n.FormatValue("1,200"))
	assert.Equal(t, "£1,200", n.FormatValue("£1,200"))
}

func TestCanonicalPeriod(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MoM", "Month on Month"},
		{"month-on-month", "Month on Month"},
		{" Month  on Month ", "Month on Month"},
		{"YoY", "Year on Year"},
		{"Y/Y", "Year on Year"},
		{"current", "Current Period"},
		{"Shopify", "Shopify"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalPeriod(tt.in))
		})
	}
}

func TestNormalize_Scenarios(t *testing.T) {
	got := Normalize([]model.MetricRecord{
		{Metric: "Clicks", Value: "1,200", Change: model.Float(10.5), Period: "Month on Month"},
		{Metric: "CTR", Value: "0.2", Period: "Month on Month"},
		{Metric: "Cost", Value: "£500"},
	})
	require.Len(t, got, 3)

	assert.Equal(t, "£1,200", got[0].Value)
	assert.Equal(t, "+10.5%", FormatChange(got[0].Change))
	assert.Equal(t, model.DirectionPositive, Classify(got[0].Change))

	assert.Equal(t, "0.2%", got[1].Value)
	assert.Nil(t, got[1].Change)
	assert.Equal(t, model.DirectionNeutral, Classify(got[1].Change))

	assert.Equal(t, "Cost", got[2].Metric)
	assert.Equal(t, "£500", got[2].Value)
}

func TestNormalize_DropsIncompleteAndKeepsOrder(t *testing.T) {
	got := Normalize([]model.MetricRecord{
		{Metric: "Z", Value: "1"},
		{Metric: "  ", Value: "2"},
		{Metric: "A", Value: ""},
		{Metric: "M", Value: "3"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Z", got[0].Metric)
	assert.Equal(t, "M", got[1].Metric)
}

func TestNormalize_NonFiniteChange(t *testing.T) {
	got := Normalize([]model.MetricRecord{
		{Metric: "A", Value: "1", Change: model.Float(math.Inf(1))},
		{Metric: "B", Value: "1", Change: model.Float(math.NaN())},
	})
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Change)
	assert.Nil(t, got[1].Change)
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	in := []model.MetricRecord{{Metric: "A", Value: "1", Change: model.Float(2)}}
	out := Normalize(in)
	*out[0].Change = 99
	assert.InDelta(t, 2.0, *in[0].Change, 1e-9)
}

func TestNormalize_Idempotent(t *testing.T) {
	in := []model.MetricRecord{
		{Metric: " Clicks ", Value: "1,200", Change: model.Float(10.5), Period: "mom"},
		{Metric: "CTR", Value: "0.2", Period: "YoY"},
		{Metric: "Conversion rate", Value: "3.2", Change: model.Float(-1.25), Period: "current"},
		{Metric: "Revenue", Value: "$12,000", Change: model.Float(0), Period: "Shopify"},
		{Metric: "Sessions", Value: "173.25K", Period: ""},
		{Metric: "Dropped", Value: " "},
	}
	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestFormatChangeAndClassify(t *testing.T) {
	assert.Equal(t, "", FormatChange(nil))
	assert.Equal(t, "0%", FormatChange(model.Float(0)))
	assert.Equal(t, "-3.2%", FormatChange(model.Float(-3.2)))
	assert.Equal(t, model.DirectionNegative, Classify(model.Float(-3.2)))
	assert.Equal(t, model.DirectionNeutral, Classify(model.Float(0)))
}
