package calc

import "errors"

var (
	// ErrMissingColumn 输入缺少必需列
	ErrMissingColumn = errors.New("missing required column")
	// ErrMissingMarketCap 需要按市值过滤但输入没有 market_cap 列
	ErrMissingMarketCap = errors.New("market_cap column not present")
	// ErrDateMismatch replay CSV 的日期与运行日期不一致
	ErrDateMismatch = errors.New("csv date mismatch")
)
