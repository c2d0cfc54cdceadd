package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeReplay = "replay"
	ModeNormal = "normal"
)

type Config struct {
	Mode     string         `mapstructure:"mode"`
	TestDate string         `mapstructure:"test_date"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Leaders  LeadersConfig  `mapstructure:"leaders"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Log      LogConfig      `mapstructure:"log"`
	Rank     RankConfig     `mapstructure:"rank"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type SignalConfig struct {
	MAWindow         int     `mapstructure:"ma_window"`
	BandPct          float64 `mapstructure:"band_pct"`
	MinMcapWon       float64 `mapstructure:"min_mcap_won"`
	HighlightMcapWon float64 `mapstructure:"highlight_mcap_won"`
	TierStep         float64 `mapstructure:"tier_step"`
}

type LeadersConfig struct {
	TurnoverThresholdEok float64 `mapstructure:"turnover_threshold_eok"`
}

type PathsConfig struct {
	DB        string `mapstructure:"db"`
	Backup    string `mapstructure:"backup"`
	ReplayCSV string `mapstructure:"replay_csv"`
	RankCache string `mapstructure:"rank_cache"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type RankConfig struct {
	BaseURL        string          `mapstructure:"base_url"`
	APIID          string          `mapstructure:"api_id"`
	Market         string          `mapstructure:"market"`
	Count          int             `mapstructure:"count"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RetryIntervals []time.Duration `mapstructure:"retry_intervals"`
	RPS            float64         `mapstructure:"rps"`
	Token          string          `mapstructure:"token"` // 直接给出 bearer token 时不再申请
	AppKey         string          `mapstructure:"app_key"`
	SecretKey      string          `mapstructure:"secret_key"`
}

type ScheduleConfig struct {
	Daily string `mapstructure:"daily"` // cron 表达式，带秒
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeReplay)
	v.SetDefault("test_date", "2025-09-30")

	v.SetDefault("signal.ma_window", 20)
	v.SetDefault("signal.band_pct", 0.20)
	v.SetDefault("signal.min_mcap_won", 1.3e12)
	v.SetDefault("signal.highlight_mcap_won", 5.0e12)
	v.SetDefault("signal.tier_step", 0.9)

	v.SetDefault("leaders.turnover_threshold_eok", 5000.0)

	v.SetDefault("paths.db", "s2.duckdb")
	v.SetDefault("paths.backup", "backup")
	v.SetDefault("paths.replay_csv", "replay/ohlcv_2025-09-30.csv")
	v.SetDefault("paths.rank_cache", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disable_caller", true)
	v.SetDefault("log.disable_stacktrace", true)

	v.SetDefault("rank.base_url", "https://api.kiwoom.com")
	v.SetDefault("rank.api_id", "ka10031")
	v.SetDefault("rank.market", "ALL")
	v.SetDefault("rank.count", 100)
	v.SetDefault("rank.timeout", "15s")
	v.SetDefault("rank.retry_intervals", []string{"500ms", "1s", "2s"})
	v.SetDefault("rank.rps", 5.0)
	v.SetDefault("rank.token", "")
	v.SetDefault("rank.app_key", "")
	v.SetDefault("rank.secret_key", "")

	v.SetDefault("schedule.daily", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("KRX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

// Default 只包含默认值，不读取文件和环境变量
func Default() Config {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		panic("config: invalid defaults: " + err.Error())
	}
	return cfg
}

// Load 默认值 < yaml 文件 < 环境变量 (KRX_ 前缀)
// path 为空或文件不存在时只用默认值和环境变量
func Load(path string) (Config, error) {
	// .env 可选
	_ = godotenv.Load()

	v := newViper()
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return cfg, nil
}
