package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/response"
)

// startedWriter remembers whether the handler already sent headers.
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (w *startedWriter) WriteHeader(code int) {
	w.started = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *startedWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

// Recovery turns a handler panic into a logged 500. When the handler had
// already started its response the connection is left as is; only the log
// line is written.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &startedWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.WithCtx(r.Context()).Error("panic recovered",
				"panic", fmt.Sprint(rec),
				"route", r.Method+" "+r.URL.Path,
				"stack", string(debug.Stack()),
			)
			if !sw.started {
				response.Error(sw, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(sw, r)
	})
}
