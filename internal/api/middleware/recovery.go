package middleware

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"catalog/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic inside a handler into a 500 response. Panics caused
// by a client that went away are dropped without a response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && clientGone(err) {
			c.Abort()
			return
		}

		entry := log.WithField("path", c.Request.URL.Path)
		if gin.IsDebugging() {
			dump, _ := httputil.DumpRequest(c.Request, false)
			entry.Error("Panic recovered: %v\n%s\n%s", recovered, dump, debug.Stack())
		} else {
			entry.Error("Panic recovered: %v", recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func clientGone(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
