package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jing2uo/krx2db/model"
)

// Watchlist 按 leader 次数列出关注池
func Watchlist(ctx context.Context, env *Env, dbPath string, limit int) ([]model.LeaderboardRow, error) {
	db, err := openDB(firstNonEmpty(dbPath, env.Cfg.Paths.DB))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if limit <= 0 {
		limit = 30
	}
	board, err := db.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tticker\tname\tmarket\ttimes\tfirst_seen\tlast_seen\tlast_turnover_eok\tlast_close")
	for i, r := range board {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i+1, r.Ticker, r.Name, r.Market, r.TimesAboveThreshold,
			r.FirstSeen, deref(r.LastSeen),
			fmt.Sprintf("%.1f", r.LastTurnoverEok),
			formatClose(r.LastClose),
		)
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}

	env.printf("📋 关注池共 %d 个标的\n", len(board))
	return board, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatClose(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
