package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/helpgrid/helpgrid/internal/tenant"
)

const companyHeader = "X-Company-ID"

// writeJSON writes a JSON response. Encoding failures after WriteHeader
// can't reach the client anymore, so they are only logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// requestScope builds the tenant scope from the X-Company-ID header the
// fronting auth layer sets and the chatbot id in the path.
func requestScope(r *http.Request, chatbotID string) (tenant.Scope, bool) {
	companyID, err := strconv.ParseInt(r.Header.Get(companyHeader), 10, 64)
	if err != nil {
		return tenant.Scope{}, false
	}
	botID, err := strconv.ParseInt(chatbotID, 10, 64)
	if err != nil {
		return tenant.Scope{}, false
	}
	scope := tenant.Scope{CompanyID: companyID, ChatbotID: botID}
	return scope, scope.Validate() == nil
}
