package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate 检查参数取值
func (c Config) Validate() error {
	if c.Mode != ModeReplay && c.Mode != ModeNormal {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeReplay, ModeNormal, c.Mode)
	}
	if c.TestDate != "" {
		if _, err := time.Parse(time.DateOnly, c.TestDate); err != nil {
			return fmt.Errorf("test_date must be YYYY-MM-DD, got %q", c.TestDate)
		}
	}

	if err := c.Signal.validate(); err != nil {
		return err
	}

	if c.Leaders.TurnoverThresholdEok < 0 {
		return errors.New("leaders.turnover_threshold_eok must be >= 0")
	}

	if c.Paths.DB == "" {
		return errors.New("paths.db is required")
	}

	if c.Rank.Count < 1 {
		return errors.New("rank.count must be >= 1")
	}
	if c.Rank.RPS <= 0 {
		return errors.New("rank.rps must be > 0")
	}
	for _, d := range c.Rank.RetryIntervals {
		if d < 0 {
			return fmt.Errorf("rank.retry_intervals must not be negative, got %s", d)
		}
	}

	return nil
}

func (s SignalConfig) validate() error {
	if s.MAWindow < 1 {
		return fmt.Errorf("signal.ma_window must be >= 1, got %d", s.MAWindow)
	}
	if s.BandPct <= 0 || s.BandPct >= 1 {
		return fmt.Errorf("signal.band_pct must be in (0, 1), got %v", s.BandPct)
	}
	if s.MinMcapWon < 0 {
		return errors.New("signal.min_mcap_won must be >= 0")
	}
	if s.HighlightMcapWon < s.MinMcapWon {
		return fmt.Errorf("signal.highlight_mcap_won (%v) cannot be below min_mcap_won (%v)", s.HighlightMcapWon, s.MinMcapWon)
	}
	if s.TierStep <= 0 || s.TierStep >= 1 {
		return fmt.Errorf("signal.tier_step must be in (0, 1), got %v", s.TierStep)
	}
	return nil
}
