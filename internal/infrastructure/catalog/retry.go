package catalog

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/drive"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/ratelimit"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// Options 重试策略
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// RetryCatalog 目录端口的重试装饰器
// 只重试瞬时错误（网络抖动/限流），认证、配额、不存在直接上抛；
// 收到限流响应时对共享限制器做加性降速，并遵循远端建议的重试延迟
type RetryCatalog struct {
	inner   contracts.CatalogService
	limiter *ratelimit.RateLimiter
	opts    Options
}

// NewRetryCatalog 包装目录实现
// limiter可以为nil（如测试中的内存目录）
func NewRetryCatalog(inner contracts.CatalogService, limiter *ratelimit.RateLimiter, opts Options) *RetryCatalog {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &RetryCatalog{inner: inner, limiter: limiter, opts: opts}
}

func (c *RetryCatalog) ListFiles(ctx context.Context) ([]entities.RemoteFile, error) {
	var files []entities.RemoteFile
	err := c.do(ctx, "list files", func() error {
		var err error
		files, err = c.inner.ListFiles(ctx)
		return err
	})
	return files, err
}

func (c *RetryCatalog) MoveToTrash(ctx context.Context, id string) error {
	return c.do(ctx, "move to trash", func() error {
		return c.inner.MoveToTrash(ctx, id)
	})
}

func (c *RetryCatalog) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := c.do(ctx, "download", func() error {
		var err error
		rc, err = c.inner.Download(ctx, id)
		return err
	})
	return rc, err
}

// Upload 不重试：首次尝试的真实结果未知时盲目重传可能产生重复副本，
// 失败交由下一次运行收敛
func (c *RetryCatalog) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64) (entities.RemoteFile, error) {
	return c.inner.Upload(ctx, name, mimeType, r, size)
}

func (c *RetryCatalog) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !sharederrors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == c.opts.MaxAttempts {
			break
		}

		delay := c.backoff(attempt)
		if sharederrors.IsCode(lastErr, sharederrors.ErrorCodeRateLimit) {
			if c.limiter != nil {
				c.limiter.Decrease(1, 1)
			}
			if ra := drive.RetryAfterOf(lastErr); ra > delay {
				delay = ra
			}
		}

		logger.Warn("remote call failed, retrying",
			"op", op, "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// backoff 指数退避加抖动，封顶BackoffMax
func (c *RetryCatalog) backoff(attempt int) time.Duration {
	d := c.opts.BackoffBase << (attempt - 1)
	if d > c.opts.BackoffMax {
		d = c.opts.BackoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
