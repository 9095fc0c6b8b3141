package stock

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReserve: atomic "check every key >= its decrement, then DECRBY all".
// KEYS[i]=stock key, ARGV[i]=quantity. Returns 0 on success, or the
// 1-based index of the first key whose balance is short (nothing is
// decremented in that case).
const luaReserve = `
for i = 1, #KEYS do
  local current = tonumber(redis.call('GET', KEYS[i]) or '0')
  if current < tonumber(ARGV[i]) then
    return i
  end
end
for i = 1, #KEYS do
  redis.call('DECRBY', KEYS[i], ARGV[i])
end
return 0
`

// luaRelease: SETNX lock guarantees a request id is credited back once.
// KEYS[1]=release lock, KEYS[2..]=stock keys, ARGV[1]=lock TTL seconds,
// ARGV[2..]=quantities aligned with KEYS[2..].
const luaRelease = `
if redis.call('SETNX', KEYS[1], '1') == 1 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
  for i = 2, #KEYS do
    redis.call('INCRBY', KEYS[i], ARGV[i])
  end
  return 1
end
return 0
`

const releaseLockTTLSeconds = int64((7 * 24 * time.Hour) / time.Second)

// RedisLedger implements Ledger on Redis. Atomicity of the multi-product
// check-and-decrement comes from the Lua scripts running single-threaded
// inside Redis.
type RedisLedger struct {
	rdb *rd.Client
}

func NewRedisLedger(rdb *rd.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func (l *RedisLedger) Reserve(ctx context.Context, requestID string, adjustments []Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	keys := make([]string, len(adjustments))
	args := make([]interface{}, len(adjustments))
	for i, a := range adjustments {
		keys[i] = Key(a.ProductID)
		args[i] = a.Quantity
	}
	res, err := l.rdb.Eval(ctx, luaReserve, keys, args...).Int()
	if err != nil {
		return err
	}
	if res > 0 {
		return &InsufficientStockError{ProductID: adjustments[res-1].ProductID}
	}
	return nil
}

// Release credits the batch back at most once per request id:
// first call returns true, replays return false without touching stock.
func (l *RedisLedger) Release(ctx context.Context, requestID string, adjustments []Adjustment) (bool, error) {
	if len(adjustments) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(adjustments)+1)
	keys = append(keys, ReleaseLockKey(requestID))
	args := make([]interface{}, 0, len(adjustments)+1)
	args = append(args, releaseLockTTLSeconds)
	for _, a := range adjustments {
		keys = append(keys, Key(a.ProductID))
		args = append(args, a.Quantity)
	}
	n, err := l.rdb.Eval(ctx, luaRelease, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Preload seeds a product's ledger balance from the catalog row.
func (l *RedisLedger) Preload(ctx context.Context, productID uint, stock int64, ttl time.Duration) error {
	return l.rdb.Set(ctx, Key(productID), stock, ttl).Err()
}

// Balance reads the live ledger balance. Missing key reads as zero.
func (l *RedisLedger) Balance(ctx context.Context, productID uint) (int64, error) {
	val, err := l.rdb.Get(ctx, Key(productID)).Int64()
	if err != nil {
		if err == rd.Nil {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}
