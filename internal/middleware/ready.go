package middleware

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"

	appErrors "github.com/classboard/conduct-api/pkg/errors"
	"github.com/classboard/conduct-api/pkg/response"
)

// Readiness gates request handling on store availability. Requests that
// arrive before the schema bootstrap finished are refused instead of
// failing halfway through a handler.
type Readiness struct {
	ready atomic.Bool
}

// MarkReady flips the gate open. It is flipped once, after the schema
// bootstrap succeeded.
func (r *Readiness) MarkReady() {
	r.ready.Store(true)
}

// Ready reports the current gate state.
func (r *Readiness) Ready() bool {
	return r.ready.Load()
}

// RequireStore rejects requests with 503 until MarkReady was called.
func (r *Readiness) RequireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.ready.Load() {
			response.Error(c, appErrors.ErrStoreNotReady)
			c.Abort()
			return
		}
		c.Next()
	}
}
