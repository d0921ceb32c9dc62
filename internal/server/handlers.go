package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/socials/internal/access"
	"github.com/ButyrinIA/socials/internal/apperr"
	"github.com/ButyrinIA/socials/internal/content"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/permit"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errBadRequest = apperr.New(apperr.CodeInvalidArgument, "Invalid request")

type contentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=account-owner analytics-viewer content-manager engagement-specialist"`
}

type managerRequest struct {
	Email       string `json:"email"`
	AccessLevel string `json:"accessLevel" validate:"omitempty,max=64"`
}

type profileRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
}

type tokenRequest struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type dashboardResponse struct {
	Scope       *access.Scope      `json:"scope"`
	Permissions permit.Permissions `json:"permissions"`
	Accounts    []models.Account   `json:"accounts"`
}

type postsResponse struct {
	Scope *access.Scope      `json:"scope"`
	Posts []content.PostView `json:"posts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error: "Sign in to continue",
		Code:  apperr.CodeUnauthenticated,
	})
}

func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("alert")
	if msg == "" {
		msg = "Something went wrong"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"error": msg})
}

// handleToken выдает токен для локальной разработки
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	token, err := generateToken(s.cfg.Auth, models.Identity{ID: req.ID, Email: req.Email})
	if err != nil {
		s.log.Error("generate token failed", zap.Error(err))
		s.writeError(w, err, "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleIndex решает, куда отправить вошедшего пользователя
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if s.gate.Allowed(r.Context(), id.ID, models.ActionView) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/select-role", http.StatusSeeOther)
}

// resolveScope определяет рабочий аккаунт по параметру accountId.
// При отказе пользователь уходит на собственный дашборд.
func (s *Server) resolveScope(w http.ResponseWriter, r *http.Request) (*access.Scope, bool) {
	id, _ := identityFrom(r.Context())
	scope, err := s.resolver.Resolve(r.Context(), id, r.URL.Query().Get("accountId"))
	if err != nil {
		s.log.Warn("account access denied",
			zap.String("user_id", id.ID),
			zap.String("account_id", r.URL.Query().Get("accountId")),
			zap.String("error_code", apperr.CodeOf(err)))
		redirectWithAlert(w, r, "/dashboard", apperr.MessageOf(err))
		return nil, false
	}
	return scope, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, dashboardResponse{
		Scope:       scope,
		Permissions: s.gate.Permissions(r.Context(), scope.Identity.ID),
		Accounts:    s.resolver.ManagedAccounts(r.Context(), scope.Identity),
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]models.Role{"roles": models.Roles()})
}

func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil || s.validate.Struct(req) != nil {
		redirectWithAlert(w, r, "/select-role", "Please choose one of the available roles")
		return
	}
	if err := s.gate.SyncRole(r.Context(), id, models.Role(req.Role)); err != nil {
		redirectWithAlert(w, r, "/error", "Failed to assign role")
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	p, err := s.storage.GetProfile(r.Context(), id.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("profile lookup failed", zap.Error(err), zap.String("user_id", id.ID))
		}
		p = &models.Profile{ID: id.ID, Email: id.Email}
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfile создает или обновляет профиль текущего пользователя
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), req.FullName)
		return
	}

	p := &models.Profile{ID: id.ID, FullName: req.FullName, Email: id.Email, UpdatedAt: time.Now().UTC()}
	if err := s.storage.UpsertProfile(r.Context(), p); err != nil {
		apperr.Log(s.log, err, "upsert profile failed", zap.String("user_id", id.ID))
		s.writeError(w, err, req.FullName)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleManagers(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	managers, err := s.resolver.Managers(r.Context(), id.ID)
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if managers == nil {
		managers = []*models.Delegation{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"managers": managers})
}

// handleAddManager выдает право управлять собственным аккаунтом пользователя
func (s *Server) handleAddManager(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req managerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), req.Email)
		return
	}
	grant, err := s.resolver.GrantManager(r.Context(), id, req.Email, req.AccessLevel)
	if err != nil {
		s.writeError(w, err, req.Email)
		return
	}
	s.writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleAccountPosts(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, postsResponse{
		Scope: scope,
		Posts: s.content.AccountPosts(r.Context(), scope),
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	post, err := s.content.CreatePost(r.Context(), scope, req.Content)
	if err != nil {
		s.writeError(w, err, req.Content)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var cursor *models.PostCursor
	if raw := q.Get("cursor"); raw != "" {
		c, err := models.ParsePostCursor(raw)
		if err != nil {
			s.writeError(w, apperr.Wrap(errBadRequest, err), "")
			return
		}
		cursor = c
	}
	s.writeJSON(w, http.StatusOK, s.content.Feed(r.Context(), limit, cursor))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	detail, err := s.content.PostDetail(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		redirectWithAlert(w, r, postsPath(scope), apperr.MessageOf(err))
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, apperr.Wrap(errBadRequest, err), "")
		return
	}
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	comment, err := s.content.CreateComment(r.Context(), scope, chi.URLParam(r, "id"), req.ParentID, req.Content)
	if err != nil {
		s.writeError(w, err, req.Content)
		return
	}
	s.writeJSON(w, http.StatusCreated, comment)
}

// postsPath - список постов рабочего аккаунта
func postsPath(scope *access.Scope) string {
	if !scope.ManagerMode {
		return "/posts"
	}
	return "/posts?" + url.Values{"accountId": {scope.AccountID}}.Encode()
}
