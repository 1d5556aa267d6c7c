package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Response is the JSON body written by the HTTP handlers.
type Response struct {
	Status  string                 `json:"status"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check's entry in Response.
type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler answers 200 when alive and 503 otherwise.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return c.handler(c.CheckLiveness)
}

// ReadinessHandler answers 200 when ready for traffic and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return c.handler(c.CheckReadiness)
}

// CombinedHandler reports every registered check.
func (c *Checker) CombinedHandler() http.HandlerFunc {
	return c.handler(c.CheckAll)
}

func (c *Checker) handler(probe func(context.Context) (*Status, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := probe(r.Context())

		resp := Response{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
		code := http.StatusOK
		if !status.Healthy {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			if err != nil {
				resp.Message = err.Error()
			}
		}
		for _, res := range status.Checks {
			cs := CheckStatus{Status: "ok", Latency: res.Latency.String()}
			if !res.Healthy {
				cs.Status = "error"
				cs.Error = res.Error
			}
			resp.Checks[res.Name] = cs
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			c.log.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}
