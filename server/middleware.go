package server

// Some stuff stolen from 'https://github.com/dreamsofcode-io/nethttp'
import (
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"helpdesk/api/integrations"
)

type Middleware func(http.Handler) http.Handler

func CreateStack(xs ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(xs) - 1; i >= 0; i-- {
			x := xs[i]
			next = x(next)
		}

		return next
	}
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *wrappedWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.statusCode = statusCode
	w.wroteHeader = true
}

func (w *wrappedWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &wrappedWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		log.Println(wrapped.statusCode, r.Method, r.URL.Path, time.Since(start))
	})
}

// Recover turns a handler panic into the standard error envelope. The stack is only logged.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &wrappedWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Panic handling %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				if wrapped.wroteHeader {
					return
				}
				integrations.WriteJSON(w, http.StatusInternalServerError, integrations.ErrorResponse{
					Success: false,
					Message: "Internal server error",
				})
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}
