package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dlstracker-backend/internal/authprovider"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tickets"
)

const report_api_respond = "api.respond"

const maxBodyBytes = 1 << 20

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out, nothing useful can be done with an encode error
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: "error", Message: message})
}

// writeDomainError maps an error from the domain packages onto a status code and message.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tickets.ErrMalformedCode):
		writeError(w, http.StatusBadRequest, "Invalid match code format")
	case errors.Is(err, tickets.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "Match not found")
	case errors.Is(err, tickets.ErrForbidden):
		writeError(w, http.StatusForbidden, "Invalid token")
	case errors.Is(err, tickets.ErrNoMatchData):
		writeError(w, http.StatusBadRequest, "match_data must not be null")
	case errors.Is(err, identity.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, "Invalid team ID format")
	case errors.Is(err, authprovider.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, authprovider.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, authprovider.ErrRejected):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.tel.ReportBroken(report_api_respond, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody reads a json object into out, a failure has already been written to w.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(out)
	if errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %s", err.Error()))
		return false
	}
	return true
}

type field struct {
	name  string
	value any
}

// missingField returns the name of the first field that was absent or null in the request.
func missingField(fields ...field) (string, bool) {
	for _, f := range fields {
		switch v := f.value.(type) {
		case *string:
			if v == nil {
				return f.name, true
			}
		case json.RawMessage:
			if v == nil {
				return f.name, true
			}
		}
	}
	return "", false
}

func writeMissingField(w http.ResponseWriter, name string) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing required field: %s", name))
}
