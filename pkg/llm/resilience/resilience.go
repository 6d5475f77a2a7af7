// Package resilience 提供 LLM 调用的韧性模式：重试、熔断器、限流。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kart-io/logger"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kart-io/exambot/pkg/llm"
)

// ErrCircuitBreakerOpen 熔断器打开错误。
var ErrCircuitBreakerOpen = gobreaker.ErrOpenState

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子（指数退避）。
	Multiplier float64
	// RetryableErrors 可重试的错误判断函数，为空时使用 IsRetryableError。
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// Name 熔断器名称，出现在状态变更日志中。
	Name string
	// MaxFailures 触发熔断的连续失败次数。
	MaxFailures int
	// Timeout 熔断器打开后转为半开的等待时间。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的最大调用次数。
	HalfOpenMaxCalls int
	// OnStateChange 状态变更回调，open 为 true 表示熔断器已打开。
	OnStateChange func(name string, open bool)
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "llm",
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker 是 gobreaker 的薄封装。
// 不可重试的错误（如 4xx）不计入失败次数，只有上游故障会触发熔断。
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	maxFailures := uint32(max(config.MaxFailures, 1))

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: uint32(max(config.HalfOpenMaxCalls, 1)),
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryableError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if config.OnStateChange != nil {
				config.OnStateChange(name, to == gobreaker.StateOpen)
			}
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute 通过熔断器执行函数。
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State 获取当前状态（closed, open, half-open）。
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// Stats 获取熔断器统计信息。
func (c *CircuitBreaker) Stats() map[string]any {
	counts := c.cb.Counts()
	return map[string]any{
		"state":                 c.cb.State().String(),
		"requests":              counts.Requests,
		"total_failures":        counts.TotalFailures,
		"consecutive_failures":  counts.ConsecutiveFailures,
		"consecutive_successes": counts.ConsecutiveSuccesses,
	}
}

// NewLimiter 按每秒请求数创建限流器，rps <= 0 时返回 nil 表示不限流。
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

// RetryWithBackoff 使用指数退避重试函数。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = IsRetryableError
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.InitialDelay
	policy.MaxInterval = config.MaxDelay
	if config.Multiplier > 0 {
		policy.Multiplier = config.Multiplier
	}
	policy.MaxElapsedTime = 0
	policy.Reset()

	retries := uint64(max(config.MaxAttempts-1, 0))
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if !retryable(err) {
			logger.Debugw("error is not retryable", "error", err.Error())
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, delay time.Duration) {
		logger.Debugw("retrying after delay",
			"attempt", attempt,
			"delay", delay,
			"error", err.Error(),
		)
	})
	if err != nil && attempt >= config.MaxAttempts && retryable(err) {
		logger.Warnw("max retry attempts reached", "attempts", attempt, "error", err.Error())
		return fmt.Errorf("max retry attempts (%d) reached: %w", config.MaxAttempts, err)
	}
	return err
}

// Execute 组合限流、熔断与重试：每次尝试先等待限流令牌，再经过熔断器。
func Execute(ctx context.Context, retry *RetryConfig, cb *CircuitBreaker, limiter *rate.Limiter, fn func() error) error {
	return RetryWithBackoff(ctx, retry, func() error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if cb == nil {
			return fn()
		}
		return cb.Execute(fn)
	})
}

// IsRetryableError 判断错误是否可重试。
// 上下文取消、熔断打开以及除 408/429 外的 4xx 都是永久错误，其余错误默认可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *llm.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests, se.StatusCode == http.StatusRequestTimeout:
			return true
		case se.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}
