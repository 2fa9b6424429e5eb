package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 加锁: SET key value NX EX ttl
// 解锁: Lua 脚本比较 value 后再删除，避免删掉已过期后被他人获取的锁

var ErrLockFailed = errors.New("acquire lock failed")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// DistributedLock 基于 Redis 的互斥锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 持有者标识
	expiration time.Duration // 防止持有者崩溃后死锁
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 按间隔重试直到成功、超过次数或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 只释放自己持有的锁，返回是否真正删除
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AccountLocker 按账户维度串行化购票，不同账户之间互不阻塞
type AccountLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewAccountLocker(client *redis.Client, ttl time.Duration) *AccountLocker {
	return &AccountLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

// Acquire 获取账户锁，返回的 release 可安全重复调用
func (a *AccountLocker) Acquire(ctx context.Context, accountID int64, owner string) (func(), error) {
	l := NewDistributedLock(a.client, accountKey(accountID), owner, a.ttl)
	if err := l.Lock(ctx, a.retryInterval, a.maxRetries); err != nil {
		return nil, fmt.Errorf("lock account %d: %w", accountID, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// 请求 ctx 可能已取消，释放锁使用独立 ctx
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = l.Unlock(unlockCtx)
	}, nil
}

func accountKey(accountID int64) string {
	return fmt.Sprintf("wallet:lock:account:%d", accountID)
}
