package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hibaMouhoub2/prospection-app/auth"
)

type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         auth.Summary `json:"user"`
}

// loginRequest and registerRequest also accept "password" for the password.
type loginRequest struct {
	auth.LoginRequest
	PasswordAlias string `json:"password"`
}

type registerRequest struct {
	auth.RegisterRequest
	PasswordAlias string `json:"password"`
}

func pickPassword(primary, alias string) string {
	if primary != "" {
		return primary
	}
	return alias
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresIn   int64        `json:"expiresIn"`
	User        auth.Summary `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "pong"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(r, &body, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req := body.LoginRequest
	req.Password = pickPassword(req.Password, body.PasswordAlias)
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	res, err := s.authService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    seconds(res.ExpiresIn),
		User:         res.User,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(r, &body, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req := body.RegisterRequest
	req.Password = pickPassword(req.Password, body.PasswordAlias)

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := s.authService.Summarize(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// handleRefresh takes the refresh token from the body, or else from the
// Authorization header.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = auth.BearerToken(r)
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refreshToken is required")
		return
	}

	res, err := s.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   seconds(res.ExpiresIn),
		User:        res.User,
	})
}

// handleLogout revokes the bearer token and, when given, the refresh token.
// It succeeds whether or not the tokens were still valid.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	access, _ := auth.BearerToken(r)

	if err := s.authService.Logout(r.Context(), access, req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	summary, err := s.authService.Me(r.Context(), principal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
