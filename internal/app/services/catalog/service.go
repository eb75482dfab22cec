package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/metrics"
	"github.com/R3E-Network/opxpress/internal/app/storage"
	"github.com/R3E-Network/opxpress/internal/cache"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
)

const (
	cachePrefix = "catalog:"

	// DefaultSearchLimit applies when a search does not ask for a page size.
	DefaultSearchLimit = 20
	// MaxSearchLimit caps the search page size.
	MaxSearchLimit = 100
)

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidProductID reports whether id is well formed.
func ValidProductID(id string) bool {
	return productIDPattern.MatchString(id)
}

// Service serves catalog reads through a read-through cache.
type Service struct {
	store storage.ProductStore
	cache cache.Cache
	ttl   time.Duration
	log   *logging.Logger
}

// New constructs a catalog service. A nil cache disables caching.
func New(store storage.ProductStore, c cache.Cache, ttl time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("catalog")
	}
	return &Service{store: store, cache: c, ttl: ttl, log: log}
}

// List returns up to limit products, optionally restricted to a category.
// A limit of zero returns everything.
func (s *Service) List(ctx context.Context, limit int, category string) ([]product.Product, error) {
	if limit < 0 {
		return nil, errors.Validation("Invalid limit parameter.")
	}
	key := cachePrefix + "list:" + category + ":" + strconv.Itoa(limit)
	var products []product.Product
	err := s.readThrough(ctx, key, &products, func() (interface{}, error) {
		return s.store.ListProducts(ctx, storage.ProductFilter{Category: category, Limit: limit})
	})
	if err != nil {
		return nil, errors.Internal("Failed to fetch products", err)
	}
	return products, nil
}

// ByCategory returns every product in category. Unknown categories yield an
// empty list.
func (s *Service) ByCategory(ctx context.Context, category string) ([]product.Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.Validation("Category parameter is required.")
	}
	return s.List(ctx, 0, category)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (product.Product, error) {
	if !ValidProductID(id) {
		return product.Product{}, errors.Validation("Invalid product ID")
	}
	var p product.Product
	err := s.readThrough(ctx, cachePrefix+"product:"+id, &p, func() (interface{}, error) {
		return s.store.GetProduct(ctx, id)
	})
	if stderrors.Is(err, storage.ErrNotFound) {
		return product.Product{}, errors.NotFound(fmt.Sprintf("Product not found for ID %s", id))
	}
	if err != nil {
		return product.Product{}, errors.Internal("Failed to fetch product", err)
	}
	return p, nil
}

// Search matches query against product names, brands and categories.
// Results are not cached.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]product.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation("Search query is required.")
	}
	if limit < 0 || offset < 0 {
		return nil, errors.Validation("Invalid pagination parameters.")
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	products, err := s.store.SearchProducts(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Internal("Failed to search products", err)
	}
	return products, nil
}

// Seed validates and upserts products, then drops every cached catalog read.
func (s *Service) Seed(ctx context.Context, products []product.Product) (int, error) {
	for i, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			return 0, errors.Validation(fmt.Sprintf("product %d: name is required", i))
		}
		if !product.IsCategory(p.Category) {
			return 0, errors.Validation(fmt.Sprintf("product %d: unknown category %q", i, p.Category))
		}
		if p.ID != "" && !ValidProductID(p.ID) {
			return 0, errors.Validation(fmt.Sprintf("product %d: invalid id %q", i, p.ID))
		}
	}
	n, err := s.store.UpsertProducts(ctx, products)
	if err != nil {
		return 0, errors.Internal("Failed to seed products", err)
	}
	s.Invalidate(ctx)
	s.log.WithContext(ctx).WithField("count", n).Info("catalog seeded")
	return n, nil
}

// Invalidate drops cached catalog reads.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("catalog cache invalidation failed")
	}
}

// readThrough fills dst from the cache or from load. Cache failures are
// logged and fall back to the store.
func (s *Service) readThrough(ctx context.Context, key string, dst interface{}, load func() (interface{}, error)) error {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("catalog cache read failed")
		} else if ok {
			if err := json.Unmarshal(raw, dst); err == nil {
				metrics.RecordCatalogCache(true)
				return nil
			}
		}
		metrics.RecordCatalogCache(false)
	}

	value, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("catalog cache write failed")
		}
	}
	return nil
}
