package permit

import (
	"context"
	"errors"

	"github.com/ButyrinIA/socials/internal/models"
	"go.uber.org/zap"
)

// ErrSyncFailed - роль не зарегистрирована в сервисе политик
var ErrSyncFailed = errors.New("failed to sync user role")

// Permissions - набор прав для дашборда
type Permissions struct {
	CanView    bool `json:"canView"`
	CanCreate  bool `json:"canCreatePosts"`
	CanComment bool `json:"canRespondToComments"`
	CanAnalyse bool `json:"canViewAnalytics"`
}

// Gate закрыт по умолчанию: любая ошибка PolicyClient означает отказ.
type Gate struct {
	client   PolicyClient
	resource string
	log      *zap.Logger
}

func NewGate(client PolicyClient, resource string, log *zap.Logger) *Gate {
	return &Gate{client: client, resource: resource, log: log}
}

// Allowed делает один запрос к сервису политик без кэширования
func (g *Gate) Allowed(ctx context.Context, userID string, action models.Action) bool {
	ok, err := g.client.Check(ctx, userID, action, g.resource)
	if err != nil {
		g.log.Warn("permission check failed, denying",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.String("resource", g.resource))
		return false
	}
	g.log.Debug("permission check",
		zap.String("user_id", userID),
		zap.String("action", string(action)),
		zap.Bool("permitted", ok))
	return ok
}

// Permissions проверяет все четыре действия последовательно
func (g *Gate) Permissions(ctx context.Context, userID string) Permissions {
	return Permissions{
		CanAnalyse: g.Allowed(ctx, userID, models.ActionAnalyse),
		CanCreate:  g.Allowed(ctx, userID, models.ActionCreate),
		CanComment: g.Allowed(ctx, userID, models.ActionComment),
		CanView:    g.Allowed(ctx, userID, models.ActionView),
	}
}

// SyncRole регистрирует пользователя в сервисе политик с одной из фиксированных ролей
func (g *Gate) SyncRole(ctx context.Context, user models.Identity, role models.Role) error {
	if _, err := models.ParseRole(string(role)); err != nil {
		return err
	}
	ok, err := g.client.SyncUser(ctx, user, role)
	if err != nil {
		g.log.Error("role sync failed", zap.Error(err), zap.String("user_id", user.ID), zap.String("role", string(role)))
		return errors.Join(ErrSyncFailed, err)
	}
	if !ok {
		g.log.Error("role sync rejected", zap.String("user_id", user.ID), zap.String("role", string(role)))
		return ErrSyncFailed
	}
	g.log.Info("role synced", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return nil
}
