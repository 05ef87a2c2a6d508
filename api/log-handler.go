package api

import (
	"net/http"

	"github.com/cloudgate/s3gw/internal/helper"
)

// logHandler wraps an http.Handler with the request-start/request-end
// access log line the teacher's SetLogHandler middleware wrote,
// generalized off the teacher-specific ObjectLayer/RequestId context key
// onto a plain structural wrapper.
type logHandler struct {
	handler http.Handler
}

func (l logHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := helper.GenerateRandomID()
	helper.Logln("STARTING", r.Method, r.Host, r.URL, "RequestID:", requestID)
	l.handler.ServeHTTP(w, r)
	helper.Logln("COMPLETED", r.Method, r.Host, r.URL, "RequestID:", requestID)
}

// SetLogHandler wraps handler with the access-log middleware.
func SetLogHandler(handler http.Handler) http.Handler {
	return logHandler{handler: handler}
}
