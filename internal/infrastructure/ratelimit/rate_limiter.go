package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter QPS限制器
// 在限流响应出现时支持加性降速，作为对远端的背压
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	qps     int
}

// NewRateLimiter 创建新的速率限制器
// qps: 每秒允许的请求数，如果为0或负数则不限制
func NewRateLimiter(qps int) *RateLimiter {
	if qps <= 0 {
		return &RateLimiter{
			limiter: rate.NewLimiter(rate.Inf, 1),
			qps:     0,
		}
	}

	// 令牌桶，允许短时间内的突发请求（桶大小为QPS）
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), qps),
		qps:     qps,
	}
}

// Wait 等待直到获得令牌，上下文取消时返回错误
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow 检查是否允许当前请求，不阻塞
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetQPS 动态设置QPS限制
func (r *RateLimiter) SetQPS(qps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setQPSLocked(qps)
}

func (r *RateLimiter) setQPSLocked(qps int) {
	if qps <= 0 {
		r.limiter.SetLimit(rate.Inf)
		r.limiter.SetBurst(1)
		r.qps = 0
		return
	}
	r.limiter.SetLimit(rate.Limit(qps))
	r.limiter.SetBurst(qps)
	r.qps = qps
}

// GetQPS 获取当前QPS限制，0表示无限制
func (r *RateLimiter) GetQPS() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.qps
}

// Decrease 加性降低QPS，用于远端限流时的背压，不会低于floor
// 无限制状态下降速无意义，直接忽略
func (r *RateLimiter) Decrease(step, floor int) {
	if step <= 0 {
		return
	}
	if floor < 1 {
		floor = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.qps <= 0 {
		return
	}

	next := r.qps - step
	if next < floor {
		next = floor
	}
	r.setQPSLocked(next)
}
