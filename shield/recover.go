package shield

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Recover turns a handler panic into a 500 JSON error so one bad request
// never takes the process down. http.ErrAbortHandler is re-raised.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			GetLogger(r.Context()).Error("handler panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "internal error",
				"message": fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
