package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/utils"
)

var ErrNoCache = errors.New("no cached rank response")

type Cache struct {
	Dir string
}

// PathFor {api_id}_{YYYY-MM-DD}.json
func (c Cache) PathFor(apiID string, day time.Time) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s_%s.json", apiID, day.Format(time.DateOnly)))
}

// Save 以缩进格式写入，目录不存在时创建
func (c Cache) Save(path string, data json.RawMessage) error {
	if err := utils.CheckOutputDir(filepath.Dir(path)); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	buf.WriteByte('\n')

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadLatest 按修改时间从新到旧，返回第一个能解析的 json 文件
func (c Cache) LoadLatest() (json.RawMessage, string, error) {
	files, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return nil, "", err
	}

	type entry struct {
		path  string
		mtime time.Time
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		entries = append(entries, entry{f, info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.After(entries[j].mtime) })

	for _, e := range entries {
		data, err := os.ReadFile(e.path)
		if err != nil || !json.Valid(data) {
			continue
		}
		return data, e.path, nil
	}
	return nil, "", fmt.Errorf("%w in %s", ErrNoCache, c.Dir)
}

// Result 一次拉取的结果
type Result struct {
	Status    Status
	Path      string // 今日文件
	CachePath string // 使用缓存时的来源文件
	Attempts  int
}

// Fetcher 由 Client 实现，测试中可替换
type Fetcher interface {
	Fetch(ctx context.Context) (*Response, error)
}

// Probe 拉取排行并保存为今日文件，失败时用最新缓存顶替
func Probe(ctx context.Context, f Fetcher, cache Cache, apiID string, now time.Time, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	out := cache.PathFor(apiID, now)

	resp, err := f.Fetch(ctx)
	if err == nil {
		if err := cache.Save(out, resp.Data); err != nil {
			return nil, err
		}
		log.Info("rank response saved", zap.String("status", string(resp.Status)), zap.String("path", out))
		return &Result{Status: resp.Status, Path: out, Attempts: resp.Attempts}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Error("rank api failed", zap.Error(err))

	data, src, cerr := cache.LoadLatest()
	if cerr != nil {
		return nil, fmt.Errorf("%v: %w", err, cerr)
	}
	if err := cache.Save(out, data); err != nil {
		return nil, err
	}
	log.Warn("using cached rank response", zap.String("cache", src), zap.String("path", out))
	return &Result{Status: StatusCache, Path: out, CachePath: src}, nil
}
