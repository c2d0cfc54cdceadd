package rank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jing2uo/krx2db/config"
)

func testConfig(base string) config.RankConfig {
	return config.RankConfig{
		BaseURL:        base,
		APIID:          "ka10031",
		Market:         "ALL",
		Count:          100,
		Timeout:        2 * time.Second,
		RetryIntervals: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		Token:          "static-token",
	}
}

func staticSource(tok string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
}

// scripted 依次返回给定状态码，超出后重复最后一个
func scripted(t *testing.T, codes []int, bodies []string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&calls, 1)) - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		w.WriteHeader(codes[i])
		w.Write([]byte(bodies[i]))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch_Live(t *testing.T) {
	var gotAuth string
	var gotBody rankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, rankPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"items":[1,2]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticSource("abc"), nil)
	resp, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusLive, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
	assert.JSONEq(t, `{"items":[1,2]}`, string(resp.Data))
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, rankRequest{APIID: "ka10031", Market: "ALL", Count: 100}, gotBody)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	srv, calls := scripted(t, []int{500, 502, 200}, []string{"", "", `{"ok":true}`})

	c := NewClient(testConfig(srv.URL), staticSource("abc"), nil)
	resp, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusRetry, resp.Status)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestFetch_InvalidJSONIsRetried(t *testing.T) {
	srv, calls := scripted(t, []int{200, 200}, []string{"<html>", `[]`})

	c := NewClient(testConfig(srv.URL), staticSource("abc"), nil)
	resp, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRetry, resp.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestFetch_ClientErrorFailsFast(t *testing.T) {
	srv, calls := scripted(t, []int{401}, []string{`{"msg":"unauthorized"}`})

	c := NewClient(testConfig(srv.URL), staticSource("abc"), nil)
	_, err := c.Fetch(context.Background())
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	srv, calls := scripted(t, []int{503}, []string{""})

	c := NewClient(testConfig(srv.URL), staticSource("abc"), nil)
	_, err := c.Fetch(context.Background())
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv, _ := scripted(t, []int{500}, []string{""})

	cfg := testConfig(srv.URL)
	cfg.RetryIntervals = []time.Duration{time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(cfg, staticSource("abc"), nil).Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewTokenSource_AppKeyReused(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			atomic.AddInt32(&tokenCalls, 1)
			var req tokenRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "client_credentials", req.GrantType)
			assert.Equal(t, "key", req.AppKey)
			assert.Equal(t, "secret", req.SecretKey)
			w.Write([]byte(`{"token":"issued","token_type":"bearer","expires_dt":"20991231235959","return_code":0,"return_msg":"ok"}`))
		case rankPath:
			assert.Equal(t, "Bearer issued", r.Header.Get("Authorization"))
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Token = ""
	cfg.AppKey = "key"
	cfg.SecretKey = "secret"

	ts, err := NewTokenSource(context.Background(), cfg)
	require.NoError(t, err)

	c := NewClient(cfg, ts, nil)
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestNewTokenSource_Errors(t *testing.T) {
	cfg := testConfig("http://127.0.0.1")
	cfg.Token = ""
	_, err := NewTokenSource(context.Background(), cfg)
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"return_code":3,"return_msg":"bad key"}`))
	}))
	defer srv.Close()

	cfg = testConfig(srv.URL)
	cfg.Token = ""
	cfg.AppKey, cfg.SecretKey = "k", "s"
	ts, err := NewTokenSource(context.Background(), cfg)
	require.NoError(t, err)

	_, err = ts.Token()
	assert.ErrorContains(t, err, "bad key")
}

type stubFetcher struct {
	resp *Response
	err  error
}

func (s stubFetcher) Fetch(context.Context) (*Response, error) { return s.resp, s.err }

var probeDay = time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)

func TestProbe_SavesLiveResponse(t *testing.T) {
	cache := Cache{Dir: filepath.Join(t.TempDir(), "rest")}
	f := stubFetcher{resp: &Response{Data: json.RawMessage(`{"a":1}`), Status: StatusLive, Attempts: 1}}

	res, err := Probe(context.Background(), f, cache, "ka10031", probeDay, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, res.Status)
	assert.Equal(t, filepath.Join(cache.Dir, "ka10031_2025-10-02.json"), res.Path)

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(raw))
}

func TestProbe_FallsBackToNewestCache(t *testing.T) {
	dir := t.TempDir()
	cache := Cache{Dir: dir}

	older := filepath.Join(dir, "ka10031_2025-09-29.json")
	newer := filepath.Join(dir, "ka10031_2025-09-30.json")
	broken := filepath.Join(dir, "ka10031_2025-10-01.json")
	require.NoError(t, os.WriteFile(older, []byte(`{"day":29}`), 0644))
	require.NoError(t, os.WriteFile(newer, []byte(`{"day":30}`), 0644))
	require.NoError(t, os.WriteFile(broken, []byte(`{oops`), 0644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))
	require.NoError(t, os.Chtimes(broken, base.Add(2*time.Minute), base.Add(2*time.Minute)))

	f := stubFetcher{err: ErrRequestFailed}
	res, err := Probe(context.Background(), f, cache, "ka10031", probeDay, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCache, res.Status)
	assert.Equal(t, newer, res.CachePath)

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":30}`, string(raw))
}

func TestProbe_NoCache(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	_, err := Probe(context.Background(), stubFetcher{err: ErrRequestFailed}, cache, "ka10031", probeDay, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCache))
}
