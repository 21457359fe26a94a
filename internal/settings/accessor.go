package settings

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/sirupsen/logrus"
)

// Source is the read side of the settings table
type Source interface {
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
}

// absent marks a key the store does not have, so misses are cached too
type absent struct{}

// Accessor reads typed values from the settings store, fronted by a short-lived cache
type Accessor struct {
	source Source
	cache  *cache.Cache
	logger logrus.FieldLogger
}

// NewAccessor wraps source. ttl <= 0 disables caching.
func NewAccessor(source Source, ttl time.Duration, logger logrus.FieldLogger) *Accessor {
	a := &Accessor{
		source: source,
		logger: logger.WithField("component", "settings"),
	}
	if ttl > 0 {
		a.cache = cache.New(ttl, 2*ttl)
	}
	return a
}

// Invalidate drops every cached value
func (a *Accessor) Invalidate() {
	if a.cache != nil {
		a.cache.Flush()
	}
}

func (a *Accessor) lookup(ctx context.Context, key string) (*models.Setting, error) {
	if a.cache != nil {
		if cached, found := a.cache.Get(key); found {
			if s, ok := cached.(*models.Setting); ok {
				return s, nil
			}
			return nil, nil
		}
	}

	s, err := a.source.GetSetting(ctx, key)
	if err == storage.ErrNotFound {
		if a.cache != nil {
			a.cache.SetDefault(key, absent{})
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapConfig(err, "failed to read setting %s", key)
	}

	if a.cache != nil {
		a.cache.SetDefault(key, s)
	}
	return s, nil
}

// Value returns the raw value of key and whether it exists
func (a *Accessor) Value(ctx context.Context, key string) (string, bool, error) {
	s, err := a.lookup(ctx, key)
	if err != nil || s == nil {
		return "", false, err
	}
	return s.Value, true, nil
}

// Float returns key parsed as a number, or def when the key is absent
func (a *Accessor) Float(ctx context.Context, key string, def float64) (float64, error) {
	s, err := a.lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	if s == nil {
		a.logger.WithField("key", key).Debug("setting absent, using default")
		return def, nil
	}
	return parseNumber(s)
}

// RequireInt returns key parsed as an integer. A missing key is a configuration error.
func (a *Accessor) RequireInt(ctx context.Context, key string) (int, error) {
	s, err := a.lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, errors.ConfigErrorf("setting %s is not configured", key)
	}

	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	return int(math.Trunc(v)), nil
}

func parseNumber(s *models.Setting) (float64, error) {
	if s.DataType != "" && !s.DataType.IsNumeric() {
		return 0, errors.ConfigErrorf("setting %s is declared %s, not numeric", s.Key, s.DataType)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.ConfigErrorf("invalid %s value: %q", s.Key, s.Value)
	}
	return v, nil
}
