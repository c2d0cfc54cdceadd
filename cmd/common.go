package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/config"
	"github.com/jing2uo/krx2db/database"
	"github.com/jing2uo/krx2db/logger"
	"github.com/jing2uo/krx2db/model"
)

// Env 各子命令共享的运行环境
type Env struct {
	Cfg config.Config
	Log *zap.Logger
	Out io.Writer
}

// NewEnv 读取配置并创建 logger
func NewEnv(configPath string) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Env{Cfg: cfg, Log: log, Out: os.Stdout}, nil
}

func (e *Env) printf(format string, v ...interface{}) {
	fmt.Fprintf(e.Out, format, v...)
}

// ExitError 需要以特定退出码结束的错误
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func openDB(dbPath string) (database.StateRepository, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	return database.Open(model.DBConfig{Type: model.DBTypeDuckDB, DSN: dbPath})
}

// expandDate 路径中的 {date} 替换为 YYYY-MM-DD
func expandDate(path, date string) string {
	return strings.ReplaceAll(path, "{date}", date)
}

func today() string {
	return time.Now().Format(time.DateOnly)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
