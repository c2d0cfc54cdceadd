package calc

import (
	"fmt"

	"github.com/jing2uo/krx2db/model"
)

type MarketCapParams struct {
	MinWon       float64 // 低于此市值的行被丢弃
	HighlightWon float64 // 达到此市值的行标记 LargeCap
}

// FilterByMarketCap 保留 market_cap >= MinWon 的行，NaN 市值视为不满足
func FilterByMarketCap(set model.EnvelopeSet, p MarketCapParams) (model.EnvelopeSet, error) {
	if !set.Has(model.ColMarketCap) {
		return model.EnvelopeSet{}, fmt.Errorf("%w: %s", ErrMissingMarketCap, model.ColMarketCap)
	}

	out := model.EnvelopeSet{
		Columns: set.Columns,
		Rows:    make([]model.EnvelopeBar, 0, len(set.Rows)),
	}
	for _, r := range set.Rows {
		if !(r.MarketCap >= p.MinWon) {
			continue
		}
		r.LargeCap = r.MarketCap >= p.HighlightWon
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}
