package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jing2uo/krx2db/config"
)

type Status string

const (
	StatusLive  Status = "live"  // 首次请求成功
	StatusRetry Status = "retry" // 重试后成功
	StatusCache Status = "cache" // 全部失败，使用本地缓存
)

const rankPath = "/api/dostk/rkinfo"

// ErrRequestFailed 重试耗尽或遇到不可重试的状态码
var ErrRequestFailed = errors.New("rank request failed")

type rankRequest struct {
	APIID  string `json:"api_id"`
	Market string `json:"market"`
	Count  int    `json:"count"`
}

// Response 成功时的原始 JSON
type Response struct {
	Data       json.RawMessage
	Status     Status
	Attempts   int
	StatusCode int
}

type Client struct {
	cfg     config.RankConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient ts 负责在每个请求上附加 Authorization 头
func NewClient(cfg config.RankConfig, ts oauth2.TokenSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Fetch 首次请求加上 RetryIntervals 次重试，仅 5xx、网络错误和无效 JSON 会重试
func (c *Client) Fetch(ctx context.Context) (*Response, error) {
	body, err := json.Marshal(rankRequest{
		APIID:  c.cfg.APIID,
		Market: c.cfg.Market,
		Count:  c.cfg.Count,
	})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + rankPath

	lastCode := 0
	for attempt := 0; attempt <= len(c.cfg.RetryIntervals); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.cfg.RetryIntervals[attempt-1]); err != nil {
				return nil, err
			}
		}

		code, data, err := c.post(ctx, url, body)
		if code != 0 {
			lastCode = code
		}

		log := c.log.With(zap.Int("attempt", attempt+1), zap.Int("status", code))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("rank request error", zap.Error(err))
			continue
		case code == http.StatusOK:
			if !json.Valid(data) {
				log.Warn("rank response is not valid json")
				continue
			}
			status := StatusLive
			if attempt > 0 {
				status = StatusRetry
			}
			return &Response{Data: data, Status: status, Attempts: attempt + 1, StatusCode: code}, nil
		case code >= 500 && code < 600:
			log.Warn("rank server error")
			continue
		default:
			return nil, fmt.Errorf("%w: status=%d", ErrRequestFailed, code)
		}
	}

	if lastCode == 0 {
		return nil, fmt.Errorf("%w: no response", ErrRequestFailed)
	}
	return nil, fmt.Errorf("%w: status=%d", ErrRequestFailed, lastCode)
}

func (c *Client) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("api-id", c.cfg.APIID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
