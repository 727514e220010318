package utils

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"
	// ContextRequestIDKey stores the request id inside the gin context.
	ContextRequestIDKey = "request_id"
)

// Ginzap logs every request through zap, tagging it with a request id
// (taken from X-Request-ID or generated). 5xx responses are logged at error level.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path
		query := ctx.Request.URL.RawQuery

		rid := strings.TrimSpace(ctx.GetHeader(RequestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx.Set(ContextRequestIDKey, rid)
		ctx.Header(RequestIDHeader, rid)

		ctx.Next()

		end := time.Now()
		if utc {
			end = end.UTC()
		}
		fields := []zap.Field{
			zap.String("request_id", rid),
			zap.Int("status", ctx.Writer.Status()),
			zap.String("method", ctx.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", ctx.ClientIP()),
			zap.String("user_agent", ctx.Request.UserAgent()),
			zap.Duration("latency", end.Sub(start)),
		}
		if timeFormat != "" {
			fields = append(fields, zap.String("time", end.Format(timeFormat)))
		}
		if v, ok := ctx.Get("user_id"); ok {
			fields = append(fields, zap.Any("user_id", v))
		}

		if len(ctx.Errors) > 0 {
			for _, e := range ctx.Errors.Errors() {
				logger.Error(e, fields...)
			}
			return
		}
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			logger.Error(path, fields...)
			return
		}
		logger.Info(path, fields...)
	}
}

// RecoveryWithZap recovers from panics, logs them and answers 500 in the usual envelope.
// Broken client connections are logged without writing a response.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			brokenPipe := false
			if err, ok := rec.(error); ok {
				var ne *net.OpError
				if errors.As(err, &ne) {
					var se *os.SyscallError
					if errors.As(ne, &se) {
						msg := strings.ToLower(se.Error())
						brokenPipe = strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
					}
				}
			}

			req, _ := httputil.DumpRequest(ctx.Request, false)
			fields := []zap.Field{
				zap.Any("error", rec),
				zap.String("request", string(req)),
				zap.String("request_id", ctx.GetString(ContextRequestIDKey)),
			}
			if stack && !brokenPipe {
				fields = append(fields, zap.ByteString("stack", debug.Stack()))
			}
			logger.Error("recovery from panic", fields...)

			if brokenPipe {
				_ = ctx.Error(rec.(error))
				ctx.Abort()
				return
			}
			Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
			ctx.Abort()
		}()
		ctx.Next()
	}
}
