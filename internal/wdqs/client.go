// Package wdqs 把“有界重试 + 指数退避 + 批间限速”固化为统一策略。
//
// 设计目标：merge 流程只负责“拼批次 + 聚合命中”，不关心网络策略细节。
package wdqs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/WDQC/internal/sparql"
)

// DefaultEndpoint 是 Wikidata Query Service 的公共端点。
const DefaultEndpoint = "https://query.wikidata.org/sparql"

const requestTimeout = 90 * time.Second

// Options 是客户端的完整配置（一次构造，过程中不可变）。
type Options struct {
	Endpoint  string
	UserAgent string

	// Retries 是总尝试次数（含首次）。第 Retries 次仍失败则 fatal。
	Retries int
	// Backoff 是退避底数：第 n 次失败后睡 Backoff^(n-1) + 0.1*n 秒。
	Backoff float64
	// Throttle 是相邻两次请求发出的最小间隔（秒）；请求本身耗时计入间隔。
	Throttle float64
}

// Client 按 Options 发送查询。非并发安全：merge 全程单线程，不需要。
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	retries   int
	backoff   float64
	limiter   *rate.Limiter
	log       *zap.SugaredLogger

	// sleep 可注入，用于测试中确定性地观察退避序列。
	sleep func(time.Duration)
}

// New 构造客户端。opts 中的零值会被钳到最小合法值（retries>=1）。
func New(opts Options, log *zap.SugaredLogger) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}

	// Throttle<=0 表示不限速。limiter 的令牌恢复速率 = 1/Throttle，
	// 即两次 Wait 返回的间隔至少 Throttle 秒——请求耗时自然计入。
	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Limit(1.0 / opts.Throttle)
	}

	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		endpoint:  endpoint,
		userAgent: opts.UserAgent,
		retries:   retries,
		backoff:   opts.Backoff,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log,
		sleep:     time.Sleep,
	}
}

// HTTPStatusError 表示非 2xx 响应（可重试与否由状态码决定）。
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// retryable 判定一次失败是否值得重试。
// 约定：429/5xx 网关类 + 传输层错误可重试；其余（如 400）是协议问题，fatal。
func retryable(err error) bool {
	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	// 非状态码错误即传输层失败（连接/超时/DNS）。
	return true
}

// backoffDelay 是第 attempt 次失败后的睡眠时长（attempt 从 1 计）。
// 纯函数，便于测试断言退避序列。
func backoffDelay(base float64, attempt int) time.Duration {
	secs := math.Pow(base, float64(attempt-1)) + 0.1*float64(attempt)
	return time.Duration(secs * float64(time.Second))
}

// Query 发送一条查询并解析结果。
//
// 流程：限速等待 -> 发请求 -> 可重试失败则退避重睡并再试；
// 第 retries 次仍失败，带着最后一个底层错误 fatal。
// 2xx 但响应体不合法：fatal，不重试（协议不匹配不是瞬态故障）。
func (c *Client) Query(ctx context.Context, query string) (*sparql.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		body, err := c.post(ctx, query)
		if err == nil {
			resp, perr := sparql.ParseResponse(body)
			if perr != nil {
				return nil, perr
			}
			return resp, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		if attempt == c.retries {
			break
		}

		d := backoffDelay(c.backoff, attempt)
		if c.log != nil {
			c.log.Warnw("WDQS 查询失败，退避后重试",
				"attempt", attempt, "retries", c.retries,
				"sleep", d.Round(100*time.Millisecond).String(), "err", err)
		}
		c.sleep(d)
	}
	return nil, fmt.Errorf("WDQS 重试 %d 次后仍失败：%w", c.retries, lastErr)
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 读尽 body 以复用连接；错误本身只携带状态码。
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
