package httpx

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as JSON with status. Encoding errors are dropped, so keep it
// to small probe responses such as /health.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Text writes a plain-text body. It is the last-resort response when an HTML
// error page cannot be rendered. An empty msg falls back to the status text.
func Text(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.Error(w, msg, status)
}

// SafeError returns the client-facing message for err. Production hides the
// detail of 5xx errors; a nil err yields the status text.
func SafeError(err error, status int, isProduction bool) string {
	if err == nil || (isProduction && status >= http.StatusInternalServerError) {
		return http.StatusText(status)
	}
	return err.Error()
}
