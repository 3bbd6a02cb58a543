package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 基于 INCR 的原子计数器，用于按日发号
type Redis struct {
	RDB    *redis.Client
	Prefix string
	TTL    time.Duration
}

func New(addr, pass string, db int) *Redis {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Redis {
	return &Redis{RDB: rdb, Prefix: "serial:", TTL: 48 * time.Hour}
}

// Next 自增并返回自增后的值。
// key 不存在时先用 seed 的结果（通常是库里当天已有的记录数）SETNX 初始化，seed 为空则从 0 开始（首个调用返回 1）。
func (c *Redis) Next(ctx context.Context, key string, seed func(context.Context) (int64, error)) (int64, error) {
	k := c.Prefix + key
	if seed != nil {
		if err := c.seedIfMissing(ctx, k, seed); err != nil {
			return 0, err
		}
	}
	pipe := c.RDB.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// key 自带日期，过期只为回收
	pipe.Expire(ctx, k, c.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// seedIfMissing 并发初始化时只有一个 SETNX 生效
func (c *Redis) seedIfMissing(ctx context.Context, k string, seed func(context.Context) (int64, error)) error {
	n, err := c.RDB.Exists(ctx, k).Result()
	if err != nil || n > 0 {
		return err
	}
	base, err := seed(ctx)
	if err != nil {
		return fmt.Errorf("seed %s: %w", k, err)
	}
	return c.RDB.SetNX(ctx, k, base, c.TTL).Err()
}

func (c *Redis) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Redis) Close() error { return c.RDB.Close() }
