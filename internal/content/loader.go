package content

import (
	"context"
	"time"

	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
	"go.uber.org/zap"
)

// newProfileLoader собирает запросы профилей в один вызов GetProfiles.
// Лоадер создаётся на одно чтение, поэтому кэш не переживает запрос.
// Отсутствующий профиль - не ошибка, а nil.
func newProfileLoader(store storage.ProfileStore, log *zap.Logger) *dataloader.Loader[string, *models.Profile] {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, ids []string) []*dataloader.Result[*models.Profile] {
			profiles, err := store.GetProfiles(ctx, ids)
			if err != nil {
				log.Warn("profiles lookup failed", zap.Error(err), zap.Int("count", len(ids)))
			}
			byID := make(map[string]*models.Profile, len(profiles))
			for _, p := range profiles {
				byID[p.ID] = p
			}

			results := make([]*dataloader.Result[*models.Profile], len(ids))
			for i, id := range ids {
				results[i] = &dataloader.Result[*models.Profile]{Data: byID[id]}
			}
			return results
		},
		dataloader.WithWait[string, *models.Profile](time.Millisecond),
	)
}

// loadProfiles возвращает найденные профили по уникальным id
func (s *Service) loadProfiles(ctx context.Context, ids []string) map[string]*models.Profile {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	result := make(map[string]*models.Profile, len(unique))
	if len(unique) == 0 {
		return result
	}

	profiles, _ := newProfileLoader(s.store, s.log).LoadMany(ctx, unique)()
	for i, p := range profiles {
		if p != nil {
			result[unique[i]] = p
		}
	}
	return result
}
