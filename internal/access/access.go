// Package access определяет, от имени какого аккаунта выполняется запрос,
// и управляет правами менеджеров.
package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ButyrinIA/socials/internal/apperr"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAccessLevel выдаётся, если уровень доступа не указан
const DefaultAccessLevel = "content-manager"

var (
	ErrAccessDenied   = apperr.New(apperr.CodeForbidden, "You do not have permission to manage this account")
	ErrAlreadyGranted = apperr.New(apperr.CodeConflict, "This user already manages the account")
	ErrInvalidEmail   = apperr.New(apperr.CodeInvalidArgument, "Please enter a valid email address")
	ErrSelfDelegation = apperr.New(apperr.CodeInvalidArgument, "You cannot add yourself as a manager")
	ErrGrantFailed    = apperr.New(apperr.CodeInternal, "Failed to add manager")
)

var validate = validator.New()

// Scope - аккаунт, в рамках которого выполняется запрос
type Scope struct {
	Identity    models.Identity `json:"identity"`
	AccountID   string          `json:"accountId"`
	Owner       models.Profile  `json:"owner"`
	ManagerMode bool            `json:"managerMode"`
	AccessLevel string          `json:"accessLevel,omitempty"`
}

type Resolver struct {
	profiles    storage.ProfileStore
	delegations storage.DelegationStore
	log         *zap.Logger
}

func NewResolver(profiles storage.ProfileStore, delegations storage.DelegationStore, log *zap.Logger) *Resolver {
	return &Resolver{profiles: profiles, delegations: delegations, log: log}
}

// Resolve возвращает рабочий аккаунт запроса. Без target или при target,
// равном текущему пользователю, реестр делегирования не читается.
func (r *Resolver) Resolve(ctx context.Context, id models.Identity, target string) (*Scope, error) {
	if target == "" || target == id.ID {
		return &Scope{
			Identity:  id,
			AccountID: id.ID,
			Owner:     r.ownerProfile(ctx, id.ID),
		}, nil
	}

	grant, err := r.findGrant(ctx, target, id)
	if err != nil {
		return nil, err
	}

	return &Scope{
		Identity:    id,
		AccountID:   target,
		Owner:       r.ownerProfile(ctx, target),
		ManagerMode: true,
		AccessLevel: grant.AccessLevel,
	}, nil
}

// findGrant ищет право сначала по id менеджера, затем по email
func (r *Resolver) findGrant(ctx context.Context, ownerID string, id models.Identity) (*models.Delegation, error) {
	grant, err := r.delegations.FindDelegationByManagerID(ctx, ownerID, id.ID)
	if err == nil {
		return grant, nil
	}
	if errors.Is(err, storage.ErrNotFound) && id.Email != "" {
		grant, err = r.delegations.FindDelegationByManagerEmail(ctx, ownerID, id.Email)
		if err == nil {
			return grant, nil
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		r.log.Info("delegation not found",
			zap.String("owner_id", ownerID),
			zap.String("manager_id", id.ID))
		return nil, ErrAccessDenied
	}
	r.log.Error("delegation lookup failed, denying",
		zap.Error(err),
		zap.String("owner_id", ownerID),
		zap.String("manager_id", id.ID))
	return nil, apperr.Wrap(ErrAccessDenied, err)
}

// ownerProfile не возвращает ошибку: при отсутствии профиля подставляется заглушка
func (r *Resolver) ownerProfile(ctx context.Context, accountID string) models.Profile {
	p, err := r.profiles.GetProfile(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.log.Warn("owner profile lookup failed", zap.Error(err), zap.String("account_id", accountID))
		}
		return models.Profile{ID: accountID, FullName: models.PlaceholderName(accountID)}
	}
	if p.FullName == "" {
		p.FullName = models.PlaceholderName(accountID)
	}
	return *p
}

// ManagedAccounts возвращает собственный аккаунт и аккаунты, которыми
// пользователь управляет. Ошибки чтения не фатальны.
func (r *Resolver) ManagedAccounts(ctx context.Context, id models.Identity) []models.Account {
	own := models.Account{ID: id.ID, FullName: "My Account", Email: id.Email, IsOwn: true}
	if p, err := r.profiles.GetProfile(ctx, id.ID); err == nil {
		if p.FullName != "" {
			own.FullName = p.FullName
		}
		if p.Email != "" {
			own.Email = p.Email
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		r.log.Warn("own profile lookup failed", zap.Error(err), zap.String("user_id", id.ID))
	}
	accounts := []models.Account{own}

	grants := r.grantsFor(ctx, id)
	if len(grants) == 0 {
		return accounts
	}

	seen := map[string]bool{id.ID: true}
	var ownerIDs []string
	var unique []*models.Delegation
	for _, g := range grants {
		if seen[g.AccountOwnerID] {
			continue
		}
		seen[g.AccountOwnerID] = true
		ownerIDs = append(ownerIDs, g.AccountOwnerID)
		unique = append(unique, g)
	}

	byID := make(map[string]*models.Profile, len(ownerIDs))
	profiles, err := r.profiles.GetProfiles(ctx, ownerIDs)
	if err != nil {
		r.log.Warn("managed account profiles lookup failed", zap.Error(err))
	}
	for _, p := range profiles {
		byID[p.ID] = p
	}

	for _, g := range unique {
		acc := models.Account{
			ID:          g.AccountOwnerID,
			FullName:    "Unknown",
			Email:       "Unknown",
			AccessLevel: g.AccessLevel,
		}
		if p, ok := byID[g.AccountOwnerID]; ok {
			if p.FullName != "" {
				acc.FullName = p.FullName
			}
			if p.Email != "" {
				acc.Email = p.Email
			}
		}
		accounts = append(accounts, acc)
	}
	return accounts
}

// grantsFor объединяет права, привязанные к id менеджера, и права, выданные
// по email до его регистрации. Сначала идут права по id.
func (r *Resolver) grantsFor(ctx context.Context, id models.Identity) []*models.Delegation {
	grants, err := r.delegations.ListDelegationsByManagerID(ctx, id.ID)
	if err != nil {
		r.log.Warn("managed accounts lookup by id failed", zap.Error(err), zap.String("user_id", id.ID))
	}
	if id.Email == "" {
		return grants
	}
	byEmail, err := r.delegations.ListDelegationsByManagerEmail(ctx, id.Email)
	if err != nil {
		r.log.Warn("managed accounts lookup by email failed", zap.Error(err), zap.String("user_id", id.ID))
	}
	return append(grants, byEmail...)
}

// GrantManager выдаёт менеджеру с указанным email доступ к аккаунту owner.
// Проверка существующего права и вставка не атомарны: параллельные
// запросы могут создать дубликаты.
func (r *Resolver) GrantManager(ctx context.Context, owner models.Identity, email, accessLevel string) (*models.Delegation, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Wrap(ErrInvalidEmail, err)
	}
	if strings.EqualFold(email, owner.Email) {
		return nil, ErrSelfDelegation
	}
	accessLevel = strings.TrimSpace(accessLevel)
	if accessLevel == "" {
		accessLevel = DefaultAccessLevel
	}

	var managerID *string
	manager, err := r.profiles.GetProfileByEmail(ctx, email)
	switch {
	case err == nil:
		if manager.ID == owner.ID {
			return nil, ErrSelfDelegation
		}
		managerID = &manager.ID
	case errors.Is(err, storage.ErrNotFound):
		// менеджер ещё не зарегистрирован, право найдётся по email
	default:
		r.log.Error("manager profile lookup failed", zap.Error(err), zap.String("owner_id", owner.ID))
		return nil, apperr.Wrap(ErrGrantFailed, err)
	}

	if err := r.ensureNoGrant(ctx, owner.ID, managerID, email); err != nil {
		return nil, err
	}

	d := &models.Delegation{
		ID:             uuid.New().String(),
		AccountOwnerID: owner.ID,
		ManagerID:      managerID,
		ManagerEmail:   email,
		AccessLevel:    accessLevel,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.delegations.CreateDelegation(ctx, d); err != nil {
		r.log.Error("create delegation failed", zap.Error(err), zap.String("owner_id", owner.ID))
		return nil, apperr.Wrap(ErrGrantFailed, err)
	}
	r.log.Info("manager added",
		zap.String("owner_id", owner.ID),
		zap.String("manager_email", email),
		zap.Bool("registered", managerID != nil))
	return d, nil
}

func (r *Resolver) ensureNoGrant(ctx context.Context, ownerID string, managerID *string, email string) error {
	if managerID != nil {
		_, err := r.delegations.FindDelegationByManagerID(ctx, ownerID, *managerID)
		if err == nil {
			return ErrAlreadyGranted
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(ErrGrantFailed, err)
		}
	}
	_, err := r.delegations.FindDelegationByManagerEmail(ctx, ownerID, email)
	if err == nil {
		return ErrAlreadyGranted
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(ErrGrantFailed, err)
	}
	return nil
}

// Managers возвращает права, выданные владельцем аккаунта
func (r *Resolver) Managers(ctx context.Context, ownerID string) ([]*models.Delegation, error) {
	grants, err := r.delegations.ListDelegationsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return grants, nil
}
