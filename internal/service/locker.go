package service

import (
	"context"
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/internal/metrics"
	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/redis"
)

// ErrPeriodBusy 等待周期锁超时
var ErrPeriodBusy = errors.New("该报名周期正在处理其他变更，请稍后重试")

const lockPollInterval = 50 * time.Millisecond

// PeriodLocker 周期级互斥，串行化分配、人工调整与发布
// 返回的 unlock 必须调用且只调用一次
type PeriodLocker interface {
	Lock(ctx context.Context, periodID string) (unlock func(), err error)
}

// DistributedLocker 先取进程内锁，再取 Redis 锁
// Redis 不可用时只保留进程内锁，数据库行锁仍保证跨实例串行
type DistributedLocker struct {
	rdb     *redis.Client
	local   *xsync.Map[string, chan struct{}]
	ttl     time.Duration
	wait    time.Duration
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewPeriodLocker 创建周期锁；rdb 可以为 nil
func NewPeriodLocker(rdb *redis.Client, ttl, wait time.Duration, rec metrics.Recorder, logger *zap.Logger) *DistributedLocker {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &DistributedLocker{
		rdb:     rdb,
		local:   xsync.NewMap[string, chan struct{}](),
		ttl:     ttl,
		wait:    wait,
		metrics: rec,
		logger:  logger,
	}
}

func (l *DistributedLocker) Lock(ctx context.Context, periodID string) (func(), error) {
	start := time.Now()
	waitCtx, cancel := l.waitContext(ctx)
	defer cancel()

	sem, _ := l.local.LoadOrStore(periodID, make(chan struct{}, 1))
	select {
	case sem <- struct{}{}:
	case <-waitCtx.Done():
		return nil, l.waitErr(ctx)
	}
	l.metrics.LockWait("local", time.Since(start))
	releaseLocal := func() { <-sem }

	if l.rdb == nil {
		return releaseLocal, nil
	}

	key := "period:" + periodID
	token, err := l.acquireRemote(waitCtx, key)
	if err != nil {
		if errors.Is(err, ErrPeriodBusy) || ctx.Err() != nil {
			releaseLocal()
			return nil, l.waitErr(ctx)
		}
		l.logger.Warn("Redis 周期锁不可用，降级为进程内锁", zap.String("period_id", periodID), zap.Error(err))
		return releaseLocal, nil
	}
	l.metrics.LockWait("redis", time.Since(start))

	return func() {
		// 使用独立 context，调用方 context 取消后仍能释放
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.rdb.Unlock(unlockCtx, key, token); err != nil {
			l.logger.Warn("释放 Redis 周期锁失败", zap.String("period_id", periodID), zap.Error(err))
		}
		releaseLocal()
	}, nil
}

func (l *DistributedLocker) acquireRemote(ctx context.Context, key string) (string, error) {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		token, ok, err := l.rdb.TryLock(ctx, key, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrPeriodBusy
			}
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ErrPeriodBusy
		}
	}
}

func (l *DistributedLocker) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.wait)
}

func (l *DistributedLocker) waitErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrPeriodBusy
}
