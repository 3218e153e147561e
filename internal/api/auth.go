package api

import (
	"context"
	"net/http"
	"strings"

	"dlstracker-backend/internal/authprovider"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tracker"
)

const (
	report_api_logout = "api.logout"

	accessTokenCookie = "access_token"
)

type userCtxKeyType int

var userCtxKey userCtxKeyType

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

func newUserResponse(u authprovider.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		TeamID:   u.TeamID,
	}
}

type userEnvelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	User    userResponse `json:"user"`
}

type registerRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	FullName *string `json:"full_name"`
	TeamID   *string `json:"team_id"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if name, missing := missingField(
		field{"email", req.Email},
		field{"password", req.Password},
		field{"full_name", req.FullName},
		field{"team_id", req.TeamID},
	); missing {
		writeMissingField(w, name)
		return
	}
	teamId, err := identity.Parse(*req.TeamID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	user, err := s.auth.SignUp(r.Context(), authprovider.SignUpParams{
		Email:    strings.TrimSpace(*req.Email),
		Password: *req.Password,
		FullName: *req.FullName,
		TeamID:   teamId.String(),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userEnvelope{
		Status:  "success",
		Message: "User registered successfully",
		User:    newUserResponse(user),
	})
}

type loginRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if name, missing := missingField(
		field{"email", req.Email},
		field{"password", req.Password},
	); missing {
		writeMissingField(w, name)
		return
	}

	session, err := s.auth.SignIn(r.Context(), strings.TrimSpace(*req.Email), *req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   int(session.ExpiresIn.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, userEnvelope{
		Status:  "success",
		Message: "Logged in",
		User:    newUserResponse(session.User),
	})
}

func accessToken(r *http.Request) string {
	cookie, err := r.Cookie(accessTokenCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := accessToken(r)
	if token != "" {
		err := s.auth.SignOut(r.Context(), token)
		if err != nil {
			s.tel.ReportWarning(report_api_logout, err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, errorBody{Status: "success", Message: "Logged out"})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := s.auth.User(r.Context(), token)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) authprovider.User {
	user, _ := ctx.Value(userCtxKey).(authprovider.User)
	return user
}

func (s *Server) protected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userEnvelope{
		Status: "success",
		User:   newUserResponse(userFromContext(r.Context())),
	})
}

type userStatsResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	TotalGames int     `json:"totalGames"`
	GamesWon   int     `json:"gamesWon"`
	GamesLost  int     `json:"gamesLost"`
	WinRate    float64 `json:"winRate"`
}

// userStats summarizes the tracked team linked to the signed in user.
func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	teamId, err := identity.Parse(user.TeamID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No valid team ID linked to this account")
		return
	}

	result := s.teams.Get(r.Context(), teamId)
	switch {
	case result.Status == tracker.StatusPending:
		writeJSON(w, http.StatusOK, userStatsResponse{Status: string(tracker.StatusPending), Message: result.Message})
	case result.Status == tracker.StatusError:
		writeJSON(w, http.StatusOK, userStatsResponse{Status: string(tracker.StatusError), Message: result.Message})
	case result.TeamStats == nil:
		writeJSON(w, http.StatusOK, userStatsResponse{
			Status:  string(tracker.StatusError),
			Message: "Team statistics unavailable",
		})
	default:
		writeJSON(w, http.StatusOK, userStatsResponse{
			Status:     string(tracker.StatusSuccess),
			TotalGames: result.TeamStats.GamesPlayed,
			GamesWon:   result.TeamStats.GamesWon,
			GamesLost:  result.TeamStats.GamesLost,
			WinRate:    result.TeamStats.WinPercentage,
		})
	}
}
