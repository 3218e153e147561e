package api

import (
	"encoding/json"
	"net/http"

	"dlstracker-backend/internal/tickets"
)

type createMatchRequest struct {
	Player1 *string `json:"player_1"`
	Player2 *string `json:"player_2"`
	TeamA   *string `json:"team_A"`
	TeamB   *string `json:"team_B"`
}

type createMatchResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MatchCode string `json:"match_code"`
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if name, missing := missingField(
		field{"player_1", req.Player1},
		field{"player_2", req.Player2},
		field{"team_A", req.TeamA},
		field{"team_B", req.TeamB},
	); missing {
		writeMissingField(w, name)
		return
	}

	full, err := s.tickets.Create(tickets.CreateParams{
		Player1: *req.Player1,
		Player2: *req.Player2,
		TeamA:   *req.TeamA,
		TeamB:   *req.TeamB,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createMatchResponse{
		Status:    "success",
		Message:   "Match created successfully",
		MatchCode: full,
	})
}

type matchResultResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	HomeTeam  string          `json:"home_team"`
	AwayTeam  string          `json:"away_team"`
	MatchData json.RawMessage `json:"match_data,omitempty"`
}

func matchCodeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := r.URL.Query().Get("match_code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Match code is required")
		return "", false
	}
	return code, true
}

func (s *Server) matchResult(w http.ResponseWriter, r *http.Request) {
	full, ok := matchCodeParam(w, r)
	if !ok {
		return
	}
	res, err := s.tickets.Result(full)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if res.Pending {
		writeJSON(w, http.StatusOK, matchResultResponse{
			Status:   "pending",
			Message:  "Match results not available yet",
			HomeTeam: res.HomeTeam,
			AwayTeam: res.AwayTeam,
		})
		return
	}
	writeJSON(w, http.StatusOK, matchResultResponse{
		Status:    "success",
		HomeTeam:  res.HomeTeam,
		AwayTeam:  res.AwayTeam,
		MatchData: res.MatchData,
	})
}

type matchStatsResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	HomeTeam string          `json:"home_team"`
	AwayTeam string          `json:"away_team"`
	Stats    json.RawMessage `json:"stats,omitempty"`
	Goals    json.RawMessage `json:"goals,omitempty"`
}

func (s *Server) matchStats(w http.ResponseWriter, r *http.Request) {
	full, ok := matchCodeParam(w, r)
	if !ok {
		return
	}
	stats, err := s.tickets.Stats(full)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if stats.Pending {
		writeJSON(w, http.StatusOK, matchStatsResponse{
			Status:   "pending",
			Message:  "Match statistics not available yet",
			HomeTeam: stats.HomeTeam,
			AwayTeam: stats.AwayTeam,
		})
		return
	}
	writeJSON(w, http.StatusOK, matchStatsResponse{
		Status:   "success",
		HomeTeam: stats.HomeTeam,
		AwayTeam: stats.AwayTeam,
		Stats:    stats.Stats,
		Goals:    stats.Goals,
	})
}

type updateMatchRequest struct {
	MatchCode *string         `json:"match_code"`
	Token     *string         `json:"token"`
	MatchData json.RawMessage `json:"match_data"`
}

func (s *Server) updateMatchResult(w http.ResponseWriter, r *http.Request) {
	var req updateMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if name, missing := missingField(
		field{"match_code", req.MatchCode},
		field{"token", req.Token},
		field{"match_data", req.MatchData},
	); missing {
		writeMissingField(w, name)
		return
	}

	err := s.tickets.Update(*req.MatchCode, *req.Token, req.MatchData)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, errorBody{
		Status:  "success",
		Message: "Match result updated successfully",
	})
}
