package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ButyrinIA/socials/internal/apperr"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Draft возвращает введенный текст, чтобы форма его не потеряла
	Draft string `json:"draft,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, draft string) {
	s.writeJSON(w, apperr.HTTPStatus(err), errorResponse{
		Error: apperr.MessageOf(err),
		Code:  apperr.CodeOf(err),
		Draft: draft,
	})
}

// redirectWithAlert уводит пользователя на path с сообщением в параметре alert
func redirectWithAlert(w http.ResponseWriter, r *http.Request, path, alert string) {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	if alert != "" {
		q := u.Query()
		q.Set("alert", alert)
		u.RawQuery = q.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
