// Package cache stores settled layouts so a later run over the same links
// can start from the positions of the previous one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Open returns the cache for backend. dir is used by the file backend and
// redisURL by the redis backend.
func Open(ctx context.Context, backend, dir, redisURL string) (Cache, error) {
	switch backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		return NewFileCache(dir)
	case BackendRedis:
		c, err := NewRedisCache(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", backend)
	}
}

// LayoutKeyOpts lists everything besides the links that changes a layout.
type LayoutKeyOpts struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	LinkDistance float64 `json:"link_distance"`
	Placement    string  `json:"placement"`
	Seed         int64   `json:"seed"`
}

// LayoutKey returns the cache key for a layout of links under opts.
func LayoutKey(links []models.Link, opts LayoutKeyOpts) string {
	return hashKey("layout", links, opts)
}

// SavePositions stores the current position of every node in g under key.
func SavePositions(ctx context.Context, c Cache, key string, g *models.Graph, ttl time.Duration) error {
	return SavePoints(ctx, c, key, g.Positions(), ttl)
}

// SavePoints stores a position snapshot keyed by node name.
func SavePoints(ctx context.Context, c Cache, key string, points map[string]models.Point, ttl time.Duration) error {
	positions := make(map[string][2]float64, len(points))
	for name, p := range points {
		positions[name] = [2]float64{p.X, p.Y}
	}
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store positions: %w", err)
	}
	return nil
}

// LoadPositions applies positions stored under key to the matching nodes
// of g. It reports whether an entry was found. Nodes absent from the entry
// are left unplaced.
func LoadPositions(ctx context.Context, c Cache, key string, g *models.Graph) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read positions: %w", err)
	}
	if !ok {
		return false, nil
	}

	var positions map[string][2]float64
	if err := json.Unmarshal(data, &positions); err != nil {
		// stale or foreign entry, treat as a miss
		_ = c.Delete(ctx, key)
		return false, nil
	}
	for name, p := range positions {
		if n, ok := g.FindNode(name); ok {
			n.SetPosition(p[0], p[1])
		}
	}
	return true, nil
}
