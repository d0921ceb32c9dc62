package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/socials/internal/config"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type identityKey struct{}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func generateToken(cfg config.AuthConfig, id models.Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
	})
	return token.SignedString([]byte(cfg.JWTSecret))
}

func validateJWT(cfg config.AuthConfig, tokenString string) (models.Identity, error) {
	if tokenString == "" {
		return models.Identity{}, errors.New("пустой токен")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return models.Identity{}, fmt.Errorf("неверный токен: %w", err)
	}
	if c.Subject == "" {
		return models.Identity{}, errors.New("в токене нет идентификатора пользователя")
	}
	return models.Identity{ID: c.Subject, Email: c.Email}, nil
}

// tokenFromRequest берет токен из заголовка Authorization или, для
// websocket-клиентов, из параметра token
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// authenticate кладет identity в контекст, если токен валиден.
// Невалидный токен равносилен его отсутствию.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := validateJWT(s.cfg.Auth, raw)
		if err != nil {
			s.log.Debug("token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// requireIdentity отправляет неаутентифицированный запрос на страницу входа
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFrom(r.Context()); !ok {
			http.Redirect(w, r, "/login-register", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}
