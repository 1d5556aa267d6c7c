package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const panicResponse = `{"error":"Internal server error"}`

// Recovery returns a middleware that turns a handler panic into a JSON 500
// and logs it with the request details and stack trace. Without a logger it
// falls back to chi's Recoverer.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		return middleware.Recoverer
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response silently
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				logPanic(r, rec, log)

				// A websocket upgrade has already hijacked the connection.
				if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicResponse))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(r *http.Request, rec any, log logger.Logger) {
	fields := []logger.LogField{
		logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
		logger.HTTPMethodField(r.Method),
		logger.HTTPPathField(r.URL.Path),
		logger.ClientIPField(r.RemoteAddr),
		logger.StringField("user_agent", r.UserAgent()),
		logger.StringField("stack_trace", string(debug.Stack())),
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		fields = append(fields, logger.StringField("request_id", id))
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, logger.StringField("query_params", r.URL.RawQuery))
	}
	if r.ContentLength > 0 {
		fields = append(fields, logger.Int64Field("content_length", r.ContentLength))
	}

	logger.GetLoggerFromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)
}
