package middleware

import (
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

type exceptionReporter interface {
	Exception(err error, tags map[string]string)
}

// Recoverer turns a handler panic into a 500 and reports it. Aborted
// handlers (http.ErrAbortHandler) are re-panicked for net/http.
func Recoverer(logg *logger.Logger, reporter exceptionReporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				if reporter != nil {
					reporter.Exception(err, map[string]string{
						"method":     r.Method,
						"path":       r.URL.Path,
						"request_id": chimw.GetReqID(r.Context()),
					})
				}
				// WriteError logs the 500 with a stack.
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
