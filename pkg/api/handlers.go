package api

import (
	"net/http"

	"github.com/platinummonkey/accounts/pkg/accounts"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/httputil"
	"github.com/platinummonkey/accounts/pkg/middleware"
)

// login handles POST /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req accounts.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	creds, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	writeCredentials(w, http.StatusOK, creds)
}

// signup handles POST /signup
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req accounts.SignupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	creds, err := s.accounts.Signup(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	writeCredentials(w, http.StatusCreated, creds)
}

// deleteMe handles DELETE /deleteMe. The id only ever comes from the
// authenticated principal.
func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromRequest(r)
	if p == nil {
		httputil.WriteError(w, r, auth.AuthenticationError(middleware.MsgNotLoggedIn))
		return
	}

	if err := s.accounts.Deactivate(r.Context(), p.ID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listUsers handles GET /
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	_ = httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Status:  statusSuccess,
		Results: len(users),
		Data:    UsersData{Users: users},
	})
}

// getUser handles GET /{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.Get(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	writeUser(w, http.StatusOK, user)
}

// createUser handles POST /
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req accounts.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := s.accounts.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	writeUser(w, http.StatusOK, user)
}

// updateUser handles PATCH /{id}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req accounts.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := s.accounts.Update(r.Context(), httputil.PathVar(r, "id"), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	writeUser(w, http.StatusOK, user)
}

// deleteUser handles DELETE /{id}
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(r.Context(), httputil.PathVar(r, "id")); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

func writeCredentials(w http.ResponseWriter, status int, creds *auth.Credentials) {
	_ = httputil.WriteJSON(w, status, TokenResponse{
		Status: statusSuccess,
		Token:  creds.Token,
		Data:   UserData{User: creds.Principal},
	})
}

func writeUser(w http.ResponseWriter, status int, user *auth.Principal) {
	_ = httputil.WriteJSON(w, status, UserResponse{
		Status: statusSuccess,
		Data:   UserData{User: user},
	})
}
