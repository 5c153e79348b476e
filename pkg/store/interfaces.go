package store

import (
	"context"
	"time"

	"nearbybot/pkg/model"
)

// CentreStore handles centre persistence and read-only queries.
type CentreStore interface {
	GetCentre(ctx context.Context, id string) (*model.Centre, error)
	AllCentres(ctx context.Context) ([]*model.Centre, error)
	CentresByCategory(ctx context.Context, category model.Category) ([]*model.Centre, error)
	// CentresByName matches the centre name case-insensitively by substring.
	CentresByName(ctx context.Context, text string) ([]*model.Centre, error)
	SaveCentre(ctx context.Context, c *model.Centre) error
	DeleteAllCentres(ctx context.Context) error
}

// ActivityStore handles activity persistence and read-only queries.
type ActivityStore interface {
	ActivitiesByCentreName(ctx context.Context, name string) ([]*model.Activity, error)
	// ActivitiesByKeyword matches name or description case-insensitively by substring.
	ActivitiesByKeyword(ctx context.Context, term string) ([]*model.Activity, error)
	// HighlightedActivities returns highlighted activities with at least one
	// scheduled date in [start, end], sorted by highlight order ascending
	// (missing order last), ties broken by name.
	HighlightedActivities(ctx context.Context, centreName string, start, end time.Time) ([]*model.Activity, error)
	SaveActivity(ctx context.Context, a *model.Activity) error
	DeleteAllActivities(ctx context.Context) error
}

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CentreStore
	ActivityStore
	CacheStore

	// Close closes the store connection.
	Close() error
}
