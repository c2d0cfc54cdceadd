package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/config"
	"github.com/jing2uo/krx2db/report"
	"github.com/jing2uo/krx2db/workflow"
)

func testEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DB = filepath.Join(t.TempDir(), "s2.duckdb")
	cfg.Paths.Backup = filepath.Join(t.TempDir(), "backup")
	var out bytes.Buffer
	return &Env{Cfg: cfg, Log: zap.NewNop(), Out: &out}, &out
}

// writeHistory 每个 ticker 连续 days 天收盘价不变
func writeHistory(t *testing.T, days int, closes, mcaps map[string]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,ticker,name,open,high,low,close,volume,market_cap\n")
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, ticker := range []string{"000001", "000002", "000003"} {
		for i := 0; i < days; i++ {
			c := closes[ticker]
			fmt.Fprintf(&b, "%s,%s,n%s,%v,%v,%v,%v,100,%v\n",
				start.AddDate(0, 0, i).Format(time.DateOnly), ticker, ticker, c, c, c, c, mcaps[ticker])
		}
	}
	path := filepath.Join(t.TempDir(), "ohlcv.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

var (
	testCloses = map[string]float64{"000001": 100, "000002": 50, "000003": 10}
	testMcaps  = map[string]float64{"000001": 6e12, "000002": 2e12, "000003": 1e12}
)

func TestSnapshot(t *testing.T) {
	env, out := testEnv(t)
	input := writeHistory(t, 25, testCloses, testMcaps)
	output := filepath.Join(t.TempDir(), "snap.xlsx")

	path, err := Snapshot(context.Background(), env, input, output)
	require.NoError(t, err)
	assert.Equal(t, output, path)
	assert.Contains(t, out.String(), "rows=2  cols=12")

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(report.SnapshotSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "000001", rows[1][0])
	assert.Equal(t, "TRUE", rows[1][2])
	assert.Equal(t, "80", rows[1][5])
	assert.Equal(t, "000002", rows[2][0])
}

func TestSnapshot_MissingMarketCap(t *testing.T) {
	env, _ := testEnv(t)
	input := filepath.Join(t.TempDir(), "ohlcv.csv")
	require.NoError(t, os.WriteFile(input, []byte("date,ticker,open,high,low,close,volume\n2025-09-01,000001,1,1,1,1,1\n"), 0644))

	_, err := Snapshot(context.Background(), env, input, "")
	assert.ErrorIs(t, err, calc.ErrMissingMarketCap)
}

func TestSnapshot_MissingBarColumns(t *testing.T) {
	env, _ := testEnv(t)
	input := filepath.Join(t.TempDir(), "ohlcv.csv")
	require.NoError(t, os.WriteFile(input, []byte("date,ticker,close,market_cap\n2025-09-01,000001,1,2e12\n"), 0644))

	output := filepath.Join(t.TempDir(), "snap.xlsx")
	_, err := Snapshot(context.Background(), env, input, output)
	require.ErrorIs(t, err, calc.ErrMissingColumn)
	assert.NoFileExists(t, output)
}

func TestEnvelope_FromCSV(t *testing.T) {
	env, out := testEnv(t)
	input := writeHistory(t, 25, testCloses, testMcaps)
	dir := t.TempDir()

	err := Envelope(context.Background(), env, EnvelopeOptions{Input: input, OutDir: dir, Days: 5, Format: "csv"})
	require.NoError(t, err)

	ref := "2025-09-25"
	_, err = os.Stat(report.TargetsPath(dir, ref))
	require.NoError(t, err)

	raw, err := os.ReadFile(report.EnvelopePath(dir, ref, report.FormatCSV))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	// 两个标的各 5 天加表头
	assert.Len(t, lines, 11)
	assert.Contains(t, out.String(), "대상종목 = 2개")
}

func TestEnvelope_RequiresOneSource(t *testing.T) {
	env, _ := testEnv(t)
	err := Envelope(context.Background(), env, EnvelopeOptions{OutDir: t.TempDir()})
	assert.Error(t, err)

	err = Envelope(context.Background(), env, EnvelopeOptions{Input: "a", DBPath: "b", OutDir: t.TempDir()})
	assert.Error(t, err)
}

func writeReplay(t *testing.T, date string) string {
	t.Helper()
	body := "date,ticker,name,market,open,high,low,close,volume,turnover\n" +
		date + ",000001,lead,KOSPI,1,1,1,1,1,600000000000\n" +
		date + ",000002,quiet,KOSDAQ,1,1,1,1,1,100000000\n"
	path := filepath.Join(t.TempDir(), "ohlcv_"+date+".csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDailyAndWatchlist(t *testing.T) {
	env, out := testEnv(t)
	csv := writeReplay(t, "2025-09-30")

	require.NoError(t, Daily(context.Background(), env, DailyOptions{CSV: csv}))
	assert.Contains(t, out.String(), "==== REPLAY SUMMARY ====")
	assert.Contains(t, out.String(), "leaders count     : 1 / universe: 2")

	board, err := Watchlist(context.Background(), env, "", 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "000001", board[0].Ticker)
	assert.Equal(t, int64(1), board[0].TimesAboveThreshold)
}

func TestDaily_NormalModeNotImplemented(t *testing.T) {
	env, _ := testEnv(t)
	env.Cfg.Mode = config.ModeNormal
	err := Daily(context.Background(), env, DailyOptions{})
	assert.ErrorIs(t, err, workflow.ErrNotImplemented)
}

func TestDaily_BadSchedule(t *testing.T) {
	env, _ := testEnv(t)
	err := Daily(context.Background(), env, DailyOptions{Schedule: "not a cron"})
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRank_NoCredentialsNoCache(t *testing.T) {
	env, _ := testEnv(t)
	_, err := Rank(context.Background(), env, RankOptions{OutDir: t.TempDir()})

	var exit *ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 2, exit.Code)
}

func TestRank_NoCredentialsUsesCache(t *testing.T) {
	env, out := testEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ka10031_2025-01-01.json"), []byte(`{"cached":true}`), 0644))

	res, err := Rank(context.Background(), env, RankOptions{OutDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "cache", string(res.Status))
	assert.Contains(t, out.String(), "Using cache")
}

func TestExpandDate(t *testing.T) {
	assert.Equal(t, "replay/ohlcv_2025-09-30.csv", expandDate("replay/ohlcv_{date}.csv", "2025-09-30"))
	assert.Equal(t, "fixed.csv", expandDate("fixed.csv", "2025-09-30"))
}
