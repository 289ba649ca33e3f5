// Package content serves the read-only article catalog.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pregnancy-guide-go/internal/cache"
	"pregnancy-guide-go/internal/models"
)

const (
	// MinWeek and MaxWeek bound the weeks an article can be listed for.
	MinWeek = 1
	MaxWeek = 42

	cacheKeyPrefix = "content:articles:"
)

// Catalog reads articles from a JSON or YAML file. The parsed catalog is kept
// in a cache for ttl, so edits to the file show up after it expires.
type Catalog struct {
	path   string
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalog creates a Catalog for the file at path.
func NewCatalog(path string, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Catalog {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{path: path, cache: c, ttl: ttl, logger: logger}
}

// ListAll returns every article, newest first.
func (c *Catalog) ListAll(ctx context.Context) []models.Article {
	return c.load(ctx)
}

// GetByID returns the article with id.
func (c *Catalog) GetByID(ctx context.Context, id string) (models.Article, bool) {
	for _, a := range c.load(ctx) {
		if a.ID == id {
			return a, true
		}
	}
	return models.Article{}, false
}

// ListForWeek returns the articles whose week range includes week. Weeks
// outside 1..42 match nothing.
func (c *Catalog) ListForWeek(ctx context.Context, week int) []models.Article {
	if week < MinWeek || week > MaxWeek {
		return []models.Article{}
	}
	return c.filter(ctx, func(a models.Article) bool { return a.CoversWeek(week) })
}

// ListByTag returns the articles carrying tag.
func (c *Catalog) ListByTag(ctx context.Context, tag string) []models.Article {
	return c.filter(ctx, func(a models.Article) bool { return a.HasTag(tag) })
}

// Tags returns every tag in the catalog, sorted.
func (c *Catalog) Tags(ctx context.Context) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, a := range c.load(ctx) {
		for _, t := range a.Tags {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// Invalidate drops the cached catalog.
func (c *Catalog) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, c.cacheKey())
}

func (c *Catalog) filter(ctx context.Context, keep func(models.Article) bool) []models.Article {
	out := []models.Article{}
	for _, a := range c.load(ctx) {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (c *Catalog) cacheKey() string {
	return cacheKeyPrefix + c.path
}

// load returns the cached catalog or reads the file. A missing or malformed
// file yields an empty catalog, which is not cached.
func (c *Catalog) load(ctx context.Context) []models.Article {
	key := c.cacheKey()
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var articles []models.Article
		if err := json.Unmarshal(raw, &articles); err == nil {
			return articles
		}
		c.logger.Warn("Discarding unreadable cached catalog", zap.String("key", key))
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("Catalog cache unavailable, reading file", zap.Error(err))
	}

	articles, err := ReadFile(c.path)
	if err != nil {
		c.logger.Error("Failed to load article catalog", zap.String("path", c.path), zap.Error(err))
		return []models.Article{}
	}

	raw, err := json.Marshal(articles)
	if err == nil {
		err = c.cache.Set(ctx, key, raw, c.ttl)
	}
	if err != nil {
		c.logger.Warn("Failed to cache article catalog", zap.Error(err))
	}
	c.logger.Info("Article catalog loaded", zap.String("path", c.path), zap.Int("articles", len(articles)))
	return articles
}

// ReadFile parses a catalog file and sorts it newest first. Files ending in
// .yaml or .yml are YAML; anything else is JSON.
func ReadFile(path string) ([]models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var articles []models.Article
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &articles)
	default:
		err = json.Unmarshal(data, &articles)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", filepath.Base(path), err)
	}
	if articles == nil {
		articles = []models.Article{}
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return articles, nil
}
