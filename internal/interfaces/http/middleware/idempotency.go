package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"stream-donate.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// lockDuration bounds how long the processing marker survives a crash
	lockDuration = 30 * time.Second

	// retentionDuration is how long a completed response stays replayable
	retentionDuration = 24 * time.Hour

	processingMarker = "processing"
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a request carries
// an Idempotency-Key already seen. Requests without the header pass through,
// as does everything when redis is not configured.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || !redis.Available() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storageKey := fmt.Sprintf("idempotency:%s:%s", c.ClientIP(), key)

		if val, err := redis.Get(ctx, storageKey); err == nil {
			if val == processingMarker {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"code":    "IDEMPOTENCY_CONFLICT",
					"message": "request with this idempotency key is still being processed",
				})
				return
			}
			var cached cachedResponse
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				c.Header("X-Idempotent-Replay", "true")
				c.Data(cached.Status, "application/json", []byte(cached.Body))
				c.Abort()
				return
			}
		}

		acquired, err := redis.SetNX(ctx, storageKey, processingMarker, lockDuration)
		if err != nil || !acquired {
			// raced with a concurrent holder or redis hiccup; let the
			// request through rather than fail it
			c.Next()
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			// do not pin a server error; allow a clean retry
			_ = redis.Del(ctx, storageKey)
			return
		}

		payload, err := json.Marshal(cachedResponse{Status: status, Body: writer.body.String()})
		if err != nil {
			_ = redis.Del(ctx, storageKey)
			return
		}
		_ = redis.Set(ctx, storageKey, string(payload), retentionDuration)
	}
}
