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

	"golang.org/x/oauth2"

	"github.com/jing2uo/krx2db/config"
)

// 令牌接口返回的过期时间为韩国时间
var kst = time.FixedZone("KST", 9*60*60)

const expiresLayout = "20060102150405"

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	SecretKey string `json:"secretkey"`
}

type tokenResponse struct {
	Token      string `json:"token"`
	TokenType  string `json:"token_type"`
	ExpiresDt  string `json:"expires_dt"`
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
}

// appKeyTokenSource 用 appkey/secretkey 换取 bearer token
type appKeyTokenSource struct {
	ctx       context.Context
	url       string
	appKey    string
	secretKey string
	client    *http.Client
}

func (s *appKeyTokenSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    s.appKey,
		SecretKey: s.secretKey,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.ReturnCode != 0 || tr.Token == "" {
		return nil, fmt.Errorf("token rejected (code=%d): %s", tr.ReturnCode, tr.ReturnMsg)
	}

	tok := &oauth2.Token{AccessToken: tr.Token, TokenType: "Bearer"}
	if exp, err := time.ParseInLocation(expiresLayout, tr.ExpiresDt, kst); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}

// NewTokenSource 配置了 token 时直接使用，否则用 appkey 申请并缓存到过期
func NewTokenSource(ctx context.Context, cfg config.RankConfig) (oauth2.TokenSource, error) {
	if cfg.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}), nil
	}
	if cfg.AppKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("rank: token or app_key/secret_key is required")
	}

	src := &appKeyTokenSource{
		ctx:       ctx,
		url:       strings.TrimRight(cfg.BaseURL, "/") + "/oauth2/token",
		appKey:    cfg.AppKey,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}
