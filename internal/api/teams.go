package api

import (
	"net/http"
	"time"

	"dlstracker-backend/internal/identity"
)

const (
	report_api_team_info = "api.team-info"
	report_api_status    = "api.status"
)

func (s *Server) teamInfo(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawId := query.Get("team_id")
	name := query.Get("team_name")

	switch {
	case rawId != "":
		id, err := identity.Parse(rawId)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.teams.Get(r.Context(), id))
	case name != "":
		entry, found, err := s.teams.Search(r.Context(), name)
		if err != nil {
			s.tel.ReportBroken(report_api_team_info, err, name)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "No tracked team matches that name")
			return
		}
		writeJSON(w, http.StatusOK, entry.Result)
	default:
		writeError(w, http.StatusBadRequest, "Either team_id or team_name is required")
	}
}

type statusResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	ActiveMatches int    `json:"active_matches"`
	CachedTeams   int    `json:"cached_teams"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	cached, err := s.teams.Count(r.Context())
	if err != nil {
		s.tel.ReportWarning(report_api_status, err)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "online",
		Timestamp:     s.time.Now().Format(time.RFC3339),
		ActiveMatches: s.tickets.Count(),
		CachedTeams:   cached,
	})
}
