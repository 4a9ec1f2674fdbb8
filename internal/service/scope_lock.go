package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/redis"
)

// ErrScopeBusy 同一范围（或与之互斥的范围）正在执行匹配 / 排行榜 / 归档
var ErrScopeBusy = errors.New("该范围正在处理其他批量操作，请稍后重试")

// Scope 批量操作的作用范围；DepartmentID 为空表示全局
type Scope struct {
	DepartmentID string
}

// IsGlobal 是否为全局范围
func (s Scope) IsGlobal() bool { return s.DepartmentID == "" }

// Key 缓存 / 锁使用的范围标识
func (s Scope) Key() string {
	if s.IsGlobal() {
		return "global"
	}
	return "dept:" + s.DepartmentID
}

// ScopeLocker 范围互斥锁：全局范围与任一院系范围互斥，不同院系之间互不影响
type ScopeLocker interface {
	// TryLock 非阻塞获取；被占用时返回 ErrScopeBusy
	TryLock(ctx context.Context, scope Scope) (unlock func(), err error)
}

// withScopeLock 在范围锁内执行 fn
func withScopeLock(ctx context.Context, locker ScopeLocker, scope Scope, operation string, fn func() error) error {
	unlock, err := locker.TryLock(ctx, scope)
	if err != nil {
		if errors.Is(err, ErrScopeBusy) {
			metrics.ScopeLockBusy.WithLabelValues(operation).Inc()
		}
		return err
	}
	defer unlock()
	return fn()
}

// ── 进程内实现（单实例部署 / 测试） ──

type localScopeLocker struct {
	mu     sync.Mutex
	global bool
	depts  map[string]bool
}

// NewLocalScopeLocker 创建进程内范围锁
func NewLocalScopeLocker() ScopeLocker {
	return &localScopeLocker{depts: make(map[string]bool)}
}

func (l *localScopeLocker) TryLock(_ context.Context, scope Scope) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.global {
		return nil, ErrScopeBusy
	}
	if scope.IsGlobal() {
		if len(l.depts) > 0 {
			return nil, ErrScopeBusy
		}
		l.global = true
		return func() {
			l.mu.Lock()
			l.global = false
			l.mu.Unlock()
		}, nil
	}

	if l.depts[scope.DepartmentID] {
		return nil, ErrScopeBusy
	}
	l.depts[scope.DepartmentID] = true
	return func() {
		l.mu.Lock()
		delete(l.depts, scope.DepartmentID)
		l.mu.Unlock()
	}, nil
}

// ── Redis 实现（多实例部署） ──

// lockClient Redis 锁所需的最小能力
type lockClient interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
	Exists(ctx context.Context, key string) (bool, error)
	HasKeyWithPrefix(ctx context.Context, prefix string) (bool, error)
}

const (
	scopeLockPrefix     = "scope:lock:"
	scopeLockGlobalKey  = scopeLockPrefix + "global"
	scopeLockDeptPrefix = scopeLockPrefix + "dept:"
)

type redisScopeLocker struct {
	client lockClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisScopeLocker 基于 Redis SET NX 的范围锁
// 双方都是"先占自己的 key，再检查对方"，并发时至少一方会看到另一方
func NewRedisScopeLocker(client lockClient, ttl time.Duration, logger *zap.Logger) ScopeLocker {
	return &redisScopeLocker{client: client, ttl: ttl, logger: logger}
}

func (l *redisScopeLocker) TryLock(ctx context.Context, scope Scope) (func(), error) {
	key := scopeLockPrefix + scope.Key()
	token, err := l.client.AcquireLock(ctx, key, l.ttl)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrScopeBusy
		}
		return nil, fmt.Errorf("获取范围锁失败: %w", err)
	}

	release := func() {
		// 请求上下文可能已取消，释放使用独立超时
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.client.ReleaseLock(rctx, key, token); err != nil {
			l.logger.Warn("释放范围锁失败", zap.String("key", key), zap.Error(err))
		}
	}

	var conflict bool
	if scope.IsGlobal() {
		conflict, err = l.client.HasKeyWithPrefix(ctx, scopeLockDeptPrefix)
	} else {
		conflict, err = l.client.Exists(ctx, scopeLockGlobalKey)
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("检查范围锁失败: %w", err)
	}
	if conflict {
		release()
		return nil, ErrScopeBusy
	}
	return release, nil
}
