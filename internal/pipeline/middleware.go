package pipeline

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Handler wraps next with the tracking pipeline: blocked IPs get a 403 before
// next runs, everyone else the observed status after the response completes.
// Every request is recorded either way; a blocked request produces an event
// with the 403 it was answered with.
func (t *Tracker) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if t.Blocked(ip) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			t.Record(r.Context(), ip, r.URL.Path, http.StatusForbidden)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		t.Record(r.Context(), ip, r.URL.Path, status)
	})
}

// Gin is the same pipeline as Handler for gin routers.
func (t *Tracker) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c.Request)

		if t.Blocked(ip) {
			c.AbortWithStatus(http.StatusForbidden)
			t.Record(c.Request.Context(), ip, c.Request.URL.Path, http.StatusForbidden)
			return
		}

		c.Next()

		t.Record(c.Request.Context(), ip, c.Request.URL.Path, c.Writer.Status())
	}
}
