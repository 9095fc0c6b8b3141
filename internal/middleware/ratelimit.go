package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit: Redis sliding-window limiter (atomic).
// KEYS[1]=limit key, ARGV[1]=now, ARGV[2]=window start, ARGV[3]=window
// seconds, ARGV[4]=member, ARGV[5]=limit.
// Returns the in-window count, or -1 when over the limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits request bursts per acting user (from the JSON
// body), falling back to the client IP when no user is present. Redis
// failures let the request through rather than blocking the back office.
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := extractUserID(c)
		if err != nil {
			userID = ""
		}

		var key string
		if userID != "" {
			key = fmt.Sprintf("rate_limit:orders:user:%s", userID)
		} else {
			key = fmt.Sprintf("rate_limit:orders:ip:%s", c.ClientIP())
		}

		now := time.Now().Unix()
		windowSec := int64(window.Seconds())
		windowStart := now - windowSec
		member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now, windowStart, windowSec, member, limit).Int()

		if err != nil {
			// Degrade open on Redis trouble.
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":   429,
				"msg":    "too many requests, slow down",
				"req_id": c.GetString(ReqIDKey),
			})
			return
		}
		c.Next()
	}
}

// extractUserID reads user_id from the body without consuming it, so the
// handler can still bind the JSON.
func extractUserID(c *gin.Context) (string, error) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}

	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return "", err
	}
	return req.UserID, nil
}
