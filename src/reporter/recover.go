package reporter

import (
	"context"
	"net/http"
)

// MiddlewareSource is the source tag of panics caught by Middleware.
const MiddlewareSource = "go-http-middleware"

// Middleware recovers panics in HTTP handlers, reports them and answers 500.
func Middleware(r *Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					_ = r.ReportPanic(context.WithoutCancel(req.Context()), recovered, MiddlewareSource)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, req)
		})
	}
}

// RecoverAndReport reports a panic and re-panics. Use with defer:
//
//	defer reporter.RecoverAndReport(r, "main")
func RecoverAndReport(r *Reporter, source string) {
	if recovered := recover(); recovered != nil {
		_ = r.ReportPanic(context.Background(), recovered, source)
		panic(recovered)
	}
}
