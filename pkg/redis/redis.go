package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
)

// ErrLockHeld 锁已被其他持有者占用
var ErrLockHeld = errors.New("锁已被占用")

// Client Redis 客户端封装
// 用于：范围锁、接口限流、排行榜缓存
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromClient 包装已有连接（集成测试使用）
func NewFromClient(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 分布式锁 ──

// 仅当 value 与持有者 token 一致时删除，避免误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock 尝试获取锁（SET NX PX），成功返回持有者 token
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// ReleaseLock 释放锁；token 不匹配时静默忽略
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("释放锁失败: %w", err)
	}
	return nil
}

// Exists 判断 key 是否存在
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasKeyWithPrefix 通过 SCAN 判断是否存在指定前缀的 key
func (c *Client) HasKeyWithPrefix(ctx context.Context, prefix string) (bool, error) {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return false, err
		}
		if len(keys) > 0 {
			return true, nil
		}
		if next == 0 {
			return false, nil
		}
		cursor = next
	}
}

// ── 限流 ──

// CheckRateLimit 基于有序集合的滑动窗口限流，返回是否放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10) + ":" + uuid.NewString()[:8]})
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// ── 排行榜缓存 ──

const leaderboardPrefix = "leaderboard:"

// RankedMember 排行榜成员：Score 用于排序，Payload 为序列化后的完整条目
type RankedMember struct {
	ID      string
	Score   float64
	Payload []byte
}

// SaveRanking 整体替换某个范围的排行榜（有序集合 + 条目哈希）
func (c *Client) SaveRanking(ctx context.Context, scope string, members []RankedMember, ttl time.Duration) error {
	zkey := leaderboardPrefix + scope
	hkey := zkey + ":entries"

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, zkey, hkey)
	if len(members) > 0 {
		zs := make([]goredis.Z, 0, len(members))
		fields := make(map[string]interface{}, len(members))
		for _, m := range members {
			zs = append(zs, goredis.Z{Score: m.Score, Member: m.ID})
			fields[m.ID] = m.Payload
		}
		pipe.ZAdd(ctx, zkey, zs...)
		pipe.HSet(ctx, hkey, fields)
		pipe.Expire(ctx, zkey, ttl)
		pipe.Expire(ctx, hkey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// TopRanking 按分数降序读取前 limit 名（limit <= 0 表示全部）；缓存未命中返回 nil
func (c *Client) TopRanking(ctx context.Context, scope string, limit int) ([][]byte, error) {
	zkey := leaderboardPrefix + scope
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := c.rdb.ZRevRange(ctx, zkey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := c.rdb.HMGet(ctx, zkey+":entries", ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// 哈希与有序集合不一致，按未命中处理
			return nil, nil
		}
		out = append(out, []byte(s))
	}
	return out, nil
}

// InvalidateRanking 删除某个范围的排行榜缓存
func (c *Client) InvalidateRanking(ctx context.Context, scope string) error {
	zkey := leaderboardPrefix + scope
	return c.rdb.Del(ctx, zkey, zkey+":entries").Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
