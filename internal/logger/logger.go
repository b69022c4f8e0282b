package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pahanaedu/bookstore-billing/internal/logger/config"
)

func NewZapLog(cfg config.Config) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

// RequestLogMdlw logs every request and the response it produced.
// Bodies are not logged: invoices carry client contact details.
func RequestLogMdlw(zaplog *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wl := newResponseWriterLogger(w)

			start := time.Now()
			next.ServeHTTP(wl, r)

			zaplog.Info("handled HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("code", wl.statusCode),
				zap.Int("length", wl.length),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type responseWriterLogger struct {
	http.ResponseWriter
	statusCode int
	length     int
}

func newResponseWriterLogger(w http.ResponseWriter) *responseWriterLogger {
	return &responseWriterLogger{ResponseWriter: w, statusCode: http.StatusOK}
}

func (wl *responseWriterLogger) WriteHeader(code int) {
	wl.statusCode = code
	wl.ResponseWriter.WriteHeader(code)
}

func (wl *responseWriterLogger) Write(b []byte) (n int, err error) {
	n, err = wl.ResponseWriter.Write(b)
	wl.length += n
	return
}
