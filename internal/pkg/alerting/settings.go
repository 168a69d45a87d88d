package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/app/repository"
)

const (
	settingsCachePrefix = "alert_settings:"
	settingsCacheTTL    = 5 * time.Minute
	// cached marker for tenants without settings
	cachedNone = "null"
)

// SettingsStore reads alert settings through a short lived Redis cache.
type SettingsStore struct {
	repo  repository.AlertSettingsRepository
	cache redis.UniversalClient
	ttl   time.Duration
}

// NewSettingsStore creates a store. cache may be nil to always hit the database.
func NewSettingsStore(repo repository.AlertSettingsRepository, cache redis.UniversalClient) *SettingsStore {
	return &SettingsStore{repo: repo, cache: cache, ttl: settingsCacheTTL}
}

func settingsCacheKey(userID uint) string {
	return fmt.Sprintf("%s%d", settingsCachePrefix, userID)
}

// Get returns the tenant's settings or nil when none are stored.
func (s *SettingsStore) Get(ctx context.Context, userID uint) (*models.AlertSettings, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, settingsCacheKey(userID)).Result()
		switch {
		case err == nil:
			if raw == cachedNone {
				return nil, nil
			}
			var cached models.AlertSettings
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				return &cached, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warnf("[Alerts] Settings cache read for user %d failed: %v", userID, err)
		}
	}

	settings, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, settings)
	return settings, nil
}

// Save validates and upserts settings, then drops the cached copy.
func (s *SettingsStore) Save(ctx context.Context, settings *models.AlertSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return err
	}
	s.invalidate(ctx, settings.UserID)
	return nil
}

func (s *SettingsStore) store(ctx context.Context, userID uint, settings *models.AlertSettings) {
	if s.cache == nil {
		return
	}
	value := cachedNone
	if settings != nil {
		b, err := json.Marshal(settings)
		if err != nil {
			return
		}
		value = string(b)
	}
	if err := s.cache.Set(ctx, settingsCacheKey(userID), value, s.ttl).Err(); err != nil {
		log.Warnf("[Alerts] Settings cache write for user %d failed: %v", userID, err)
	}
}

func (s *SettingsStore) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, settingsCacheKey(userID)).Err(); err != nil {
		log.Warnf("[Alerts] Settings cache invalidation for user %d failed: %v", userID, err)
	}
}
