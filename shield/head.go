package shield

import "net/http"

// HeadToGet serves HEAD as GET on the listed paths only. Liveness checkers
// get a 200 on "/" and "/healthz"; HEAD /capture stays a 405 instead of
// launching a browser run. net/http drops the body for HEAD responses.
func HeadToGet(paths ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(paths))
	for _, p := range paths {
		allowed[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead && allowed[r.URL.Path] {
				r.Method = http.MethodGet
			}
			next.ServeHTTP(w, r)
		})
	}
}
