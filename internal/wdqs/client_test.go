package wdqs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/WDQC/internal/sparql"
)

const okBody = `{"results":{"bindings":[{"item":{"value":"http://www.wikidata.org/entity/Q1"},"code":{"value":"A"},"desc":{"value":""}}]}}`

func newTestClient(endpoint string, retries int) (*Client, *[]time.Duration) {
	c := New(Options{Endpoint: endpoint, Retries: retries, Backoff: 1.6, Throttle: 0, UserAgent: "wdqc-test"}, nil)
	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return c, slept
}

func TestQuery_RetryExhaustion(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, slept := newTestClient(srv.URL, 3)
	_, err := c.Query(context.Background(), "q")
	if err == nil {
		t.Fatalf("期望失败，实际成功")
	}
	if attempts != 3 {
		t.Fatalf("retries=3 必须恰好尝试 3 次，实际 %d 次", attempts)
	}
	// 最后一次失败后不再睡眠：只有 2 次退避。
	if len(*slept) != 2 {
		t.Fatalf("期望 2 次退避睡眠，实际 %d", len(*slept))
	}

	var hs *HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("错误必须携带最后的底层失败，实际 %v", err)
	}
}

func TestQuery_SucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, slept := newTestClient(srv.URL, 5)
	resp, err := c.Query(context.Background(), "q")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(resp.Results.Bindings) != 1 {
		t.Fatalf("期望 1 个 binding，实际 %d", len(resp.Results.Bindings))
	}
	if attempts != 3 || len(*slept) != 2 {
		t.Fatalf("期望第 3 次成功（2 次退避），实际 attempts=%d slept=%d", attempts, len(*slept))
	}
}

func TestQuery_MalformedBodyIsFatalNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 5)
	_, err := c.Query(context.Background(), "q")

	var pe *sparql.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 *sparql.ParseError，实际 %v", err)
	}
	if attempts != 1 {
		t.Fatalf("响应不合法属于协议错误，不得重试；实际尝试 %d 次", attempts)
	}
}

func TestQuery_NonRetryableStatusIsFatal(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 5)
	_, err := c.Query(context.Background(), "q")
	if err == nil || attempts != 1 {
		t.Fatalf("HTTP 400 不得重试；err=%v attempts=%d", err, attempts)
	}
}

func TestQuery_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("期望 POST，实际 %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/sparql-results+json" {
			t.Errorf("Accept 头不正确：%q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "wdqc-test" {
			t.Errorf("User-Agent 不正确：%q", got)
		}
		if got := r.FormValue("query"); got != "SELECT 1" {
			t.Errorf("表单字段 query 不正确：%q", got)
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 1)
	if _, err := c.Query(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	// backoff^(n-1) + 0.1*n：n=1 -> 1.1s，n=2 -> 1.8s（base=1.6）。
	if d := backoffDelay(1.6, 1); d != time.Duration(1.1*float64(time.Second)) {
		t.Fatalf("第 1 次退避应为 1.1s，实际 %v", d)
	}
	if d := backoffDelay(1.6, 2); d != time.Duration((1.6+0.2)*float64(time.Second)) {
		t.Fatalf("第 2 次退避应为 1.8s，实际 %v", d)
	}
}

func TestNew_ThrottleConfiguresLimiter(t *testing.T) {
	// throttle=0.5s -> 恢复速率 2 次/秒、burst=1：相邻两次 Wait 间隔至少 0.5s。
	c := New(Options{Throttle: 0.5}, nil)
	if got := c.limiter.Limit(); got != rate.Limit(2) {
		t.Fatalf("throttle=0.5 应得到 2 次/秒的恢复速率，实际 %v", got)
	}
	if c.limiter.Burst() != 1 {
		t.Fatalf("burst 必须为 1（不允许突发连发），实际 %d", c.limiter.Burst())
	}

	if c := New(Options{Throttle: 0}, nil); c.limiter.Limit() != rate.Inf {
		t.Fatalf("throttle=0 应不限速，实际 %v", c.limiter.Limit())
	}
	if c := New(Options{Throttle: -1}, nil); c.limiter.Limit() != rate.Inf {
		t.Fatalf("throttle<0 应不限速，实际 %v", c.limiter.Limit())
	}
}

func TestQuery_ThrottleSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := New(Options{Endpoint: srv.URL, Retries: 1, Backoff: 1.6, Throttle: 0.05}, nil)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Query(context.Background(), "q"); err != nil {
			t.Fatalf("第 %d 次查询失败：%v", i+1, err)
		}
	}
	// 首次立即放行，第 2、3 次各等待至少 50ms。
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("限速未生效：3 次查询仅耗时 %v", elapsed)
	}
}

func TestNew_ClampsRetries(t *testing.T) {
	c := New(Options{Retries: 0}, nil)
	if c.retries != 1 {
		t.Fatalf("retries 必须钳到至少 1，实际 %d", c.retries)
	}
}
