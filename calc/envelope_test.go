package calc

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jing2uo/krx2db/model"
)

func TestEnvelopeSeries_FiveDayWindow(t *testing.T) {
	bars := series("AAA", 1.4e12, 100, 102, 101, 98, 97)

	out := EnvelopeSeries(bars, EnvelopeParams{Window: 5, BandPct: 0.20})
	require.Len(t, out, 5)

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(out[i].MA), "row %d should have no average", i)
		assert.True(t, math.IsNaN(out[i].EnvLower))
		assert.True(t, math.IsNaN(out[i].EnvUpper))
	}

	last := out[4]
	assert.InDelta(t, 99.6, last.MA, 1e-9)
	assert.InDelta(t, 79.68, last.EnvLower, 1e-9)
	assert.InDelta(t, 119.52, last.EnvUpper, 1e-9)
}

func TestEnvelopeSeries_NaNPropagates(t *testing.T) {
	bars := series("AAA", 1.4e12, 10, math.NaN(), 12, 13, 14)

	out := EnvelopeSeries(bars, EnvelopeParams{Window: 2, BandPct: 0.1})

	assert.True(t, math.IsNaN(out[1].MA))
	assert.True(t, math.IsNaN(out[2].MA), "window containing NaN stays NaN")
	assert.InDelta(t, 12.5, out[3].MA, 1e-9)
}

func TestEnrichWithEnvelope_GroupsAndSorts(t *testing.T) {
	aaa := series("AAA", 1.4e12, 100, 102, 101, 98, 97)
	bbb := series("BBB", 6e12, 50, 52, 55, 53, 54)

	// 打乱输入顺序
	bars := []model.PriceBar{bbb[4], aaa[2], aaa[0], bbb[0], aaa[4], bbb[2], aaa[1], bbb[1], aaa[3], bbb[3]}
	set := model.BarSet{Columns: allColumns, Bars: bars}

	out, err := EnrichWithEnvelope(context.Background(), set, EnvelopeParams{Window: 5, BandPct: 0.2})
	require.NoError(t, err)
	require.Len(t, out.Rows, 10)

	for i := 0; i < 5; i++ {
		assert.Equal(t, "AAA", out.Rows[i].Ticker)
		assert.Equal(t, "BBB", out.Rows[i+5].Ticker)
	}
	for i := 1; i < len(out.Rows); i++ {
		if out.Rows[i].Ticker == out.Rows[i-1].Ticker {
			assert.True(t, out.Rows[i].Date.After(out.Rows[i-1].Date))
		}
	}

	assert.InDelta(t, 99.6, out.Rows[4].MA, 1e-9)
	assert.InDelta(t, 52.8, out.Rows[9].MA, 1e-9)
	assert.True(t, out.Has(model.ColEnvLower))
	assert.True(t, out.Has(model.ColMA))
}

func TestEnrichWithEnvelope_ShortHistoryIsNotAnError(t *testing.T) {
	set := model.BarSet{Columns: allColumns, Bars: series("AAA", 1.4e12, 1, 2, 3)}

	out, err := EnrichWithEnvelope(context.Background(), set, EnvelopeParams{Window: 20, BandPct: 0.2})
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)
	for _, r := range out.Rows {
		assert.True(t, math.IsNaN(r.EnvLower))
	}
}

func TestEnrichWithEnvelope_MissingColumn(t *testing.T) {
	set := model.BarSet{
		Columns: []string{model.ColDate, model.ColTicker},
		Bars:    series("AAA", 1.4e12, 1, 2, 3),
	}

	_, err := EnrichWithEnvelope(context.Background(), set, EnvelopeParams{Window: 2, BandPct: 0.2})
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "close")
}

func TestEnrichWithEnvelope_Empty(t *testing.T) {
	out, err := EnrichWithEnvelope(context.Background(), model.BarSet{Columns: allColumns}, EnvelopeParams{Window: 20, BandPct: 0.2})
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}
