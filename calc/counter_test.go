package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jing2uo/krx2db/model"
)

// 把本次结果当作下一天的已存状态
func toState(rows []model.WatchUniverseRow) map[string]WatchState {
	stored := make(map[string]WatchState, len(rows))
	for _, r := range rows {
		stored[r.Ticker] = WatchState{Times: r.TimesAboveThreshold, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen}
	}
	return stored
}

func universeRow(ticker, date string) model.WatchUniverseRow {
	return model.WatchUniverseRow{Ticker: ticker, FirstSeen: date}
}

func TestIncrementLeaderCounts_ThreeDays(t *testing.T) {
	days := []struct {
		date   string
		leader bool
		times  int64
	}{
		{"2025-09-29", true, 1},
		{"2025-09-30", false, 1},
		{"2025-10-01", true, 2},
	}

	stored := map[string]WatchState{}
	var lastSeen []string
	for _, d := range days {
		leaders := map[string]bool{"000001": d.leader}
		out := IncrementLeaderCounts([]model.WatchUniverseRow{universeRow("000001", d.date)}, stored, leaders, d.date)
		require.Len(t, out, 1)

		assert.Equal(t, d.times, out[0].TimesAboveThreshold, d.date)
		assert.Equal(t, "2025-09-29", out[0].FirstSeen)
		require.NotNil(t, out[0].LastSeen)
		lastSeen = append(lastSeen, *out[0].LastSeen)

		stored = toState(out)
	}

	assert.Equal(t, []string{"2025-09-29", "2025-09-29", "2025-10-01"}, lastSeen)
}

func TestIncrementLeaderCounts_NeverLeader(t *testing.T) {
	out := IncrementLeaderCounts([]model.WatchUniverseRow{universeRow("000002", "2025-09-30")}, nil, nil, "2025-09-30")

	assert.Equal(t, int64(0), out[0].TimesAboveThreshold)
	assert.Nil(t, out[0].LastSeen)
	assert.Equal(t, "2025-09-30", out[0].FirstSeen)
}

func TestIncrementLeaderCounts_OutOfOrderKeepsLatestLastSeen(t *testing.T) {
	later := "2025-10-01"
	stored := map[string]WatchState{"000001": {Times: 1, FirstSeen: "2025-10-01", LastSeen: &later}}

	out := IncrementLeaderCounts([]model.WatchUniverseRow{universeRow("000001", "2025-09-29")}, stored, map[string]bool{"000001": true}, "2025-09-29")

	assert.Equal(t, int64(2), out[0].TimesAboveThreshold)
	assert.Equal(t, "2025-10-01", *out[0].LastSeen)
}

func TestIncrementLeaderCounts_DoesNotAliasStoredState(t *testing.T) {
	seen := "2025-09-29"
	stored := map[string]WatchState{"000001": {Times: 1, FirstSeen: seen, LastSeen: &seen}}

	out := IncrementLeaderCounts([]model.WatchUniverseRow{universeRow("000001", "2025-09-30")}, stored, nil, "2025-09-30")
	*out[0].LastSeen = "changed"

	assert.Equal(t, "2025-09-29", seen)
}
