package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docflow/model"
)

// HttpWebhookCaller delivers webhook calls through a shared circuit
// breaker and rate limiter. Server errors and 429 classify retryable,
// the remaining 4xx fatal.
type HttpWebhookCaller struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewHttpWebhookCaller() *HttpWebhookCaller {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &HttpWebhookCaller{
		client:  &http.Client{Transport: transport, Timeout: 30 * time.Second},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (c *HttpWebhookCaller) Call(ctx context.Context, url string, method string, headers map[string]string, body map[string]any) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, model.NewRetryableError(err)
	}
	result, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, url, method, headers, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, model.NewRetryableError(fmt.Errorf("webhook circuit open for %s: %w", url, err))
		}
		return nil, err
	}
	return result.(map[string]any), nil
}

func (c *HttpWebhookCaller) do(ctx context.Context, url string, method string, headers map[string]string, body map[string]any) (map[string]any, error) {
	if len(method) == 0 {
		method = http.MethodPost
	}
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, model.NewFatalError(fmt.Errorf("encoding webhook body: %w", err))
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, model.NewFatalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, model.NewRetryableError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, model.NewRetryableError(fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewFatalError(fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode))
	}

	output := map[string]any{"status": resp.StatusCode}
	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err == nil {
		output["response"] = decoded
	} else if len(respBody) > 0 {
		output["response"] = string(respBody)
	}
	return output, nil
}
