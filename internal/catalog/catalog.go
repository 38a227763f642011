package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
)

// TitleStore is the read side of the title table
type TitleStore interface {
	FindByID(ctx context.Context, id uint) (*model.Title, error)
}

// Catalog answers title lookups from a TTL cache in front of the title store.
// Misses are not cached, so a title added later becomes visible immediately.
type Catalog struct {
	titles TitleStore
	cache  *ttlcache.Cache[uint, model.Title]
}

func New(titles TitleStore, ttl time.Duration) *Catalog {
	cache := ttlcache.New(
		ttlcache.WithTTL[uint, model.Title](ttl),
		ttlcache.WithDisableTouchOnHit[uint, model.Title](),
	)
	return &Catalog{titles: titles, cache: cache}
}

// Start runs expired-entry cleanup until Stop is called
func (c *Catalog) Start() {
	c.cache.Start()
}

func (c *Catalog) Stop() {
	c.cache.Stop()
}

// Title returns the title with the given id, or repository.ErrNotFound
func (c *Catalog) Title(ctx context.Context, id uint) (*model.Title, error) {
	if item := c.cache.Get(id); item != nil {
		title := item.Value()
		return &title, nil
	}

	title, err := c.titles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id, *title, ttlcache.DefaultTTL)
	return title, nil
}

// TitleDuration returns the duration of a title in seconds
func (c *Catalog) TitleDuration(ctx context.Context, id uint) (int, error) {
	title, err := c.Title(ctx, id)
	if err != nil {
		return 0, err
	}
	return title.DurationSeconds, nil
}

// TitleExists reports whether the catalog knows the title
func (c *Catalog) TitleExists(ctx context.Context, id uint) (bool, error) {
	_, err := c.Title(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
