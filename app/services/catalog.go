package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/app/repositories"
	"github.com/opsipintar/catalog/pkg/auth"
	"github.com/opsipintar/catalog/pkg/cache"
	"github.com/opsipintar/catalog/pkg/logger"
)

const (
	listCacheNS  = "products"
	listCacheTTL = 60 * time.Second
)

// ProductStore is the full record store used by the catalog.
type ProductStore interface {
	ProductWriter
	Find(ctx context.Context, id string) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q repositories.ListQuery) (*repositories.ListResult, error)
	ReferencedImageURLs(ctx context.Context) ([]string, error)
	CountImageRefs(ctx context.Context, url string) (int64, error)
}

// Catalog is the product CRUD service. Listings are cached under a
// versioned key that every mutation bumps.
type Catalog struct {
	store  ProductStore
	ingest *Coordinator
	images *ImageProxy
	cache  *cache.Store
}

func NewCatalog(store ProductStore, ingest *Coordinator, images *ImageProxy, c *cache.Store) *Catalog {
	return &Catalog{store: store, ingest: ingest, images: images, cache: c}
}

// List returns one catalog page, from cache when possible.
func (s *Catalog) List(ctx context.Context, q repositories.ListQuery) (*repositories.ListResult, error) {
	key := s.listKey(ctx, q)

	var cached repositories.ListResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, res, listCacheTTL); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache set failed", "key", key, "error", err)
	}
	return res, nil
}

func (s *Catalog) listKey(ctx context.Context, q repositories.ListQuery) string {
	page := q.Page
	if page < 1 {
		page = 1
	}
	cat := strings.TrimSpace(q.Category)
	if cat == string(models.CategoryAll) {
		cat = ""
	}
	return fmt.Sprintf("opsipintar:products:v%d:p%d:c=%s:q=%s",
		s.cache.Version(ctx, listCacheNS), page, cat, strings.ToLower(strings.TrimSpace(q.Search)))
}

// Find returns one product or repositories.ErrNotFound.
func (s *Catalog) Find(ctx context.Context, id string) (*models.Product, error) {
	return s.store.Find(ctx, id)
}

// Create runs the ingest coordinator.
func (s *Catalog) Create(ctx context.Context, req IngestRequest) (*models.Product, error) {
	p, err := s.ingest.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

// Update rewrites product id. When the image changed the previous blob is
// deleted after the row is saved.
func (s *Catalog) Update(ctx context.Context, id string, draft ProductDraft, image *ImageUpload) (*models.Product, error) {
	existing, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := s.ingest.Replace(ctx, existing, draft, image)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	if existing.ImageURL != nil && (p.ImageURL == nil || *p.ImageURL != *existing.ImageURL) {
		s.release(ctx, id, existing.ImageURL)
	}
	logger.WithCtx(ctx).Info("catalog: product updated", "id", id, "admin", actor(ctx))
	return p, nil
}

// Delete removes the row, then its blob when the blob is ours.
func (s *Catalog) Delete(ctx context.Context, id string) error {
	existing, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	s.release(ctx, id, existing.ImageURL)
	logger.WithCtx(ctx).Info("catalog: product deleted", "id", id, "admin", actor(ctx))
	return nil
}

// release deletes the blob behind url once no row points at it any more.
func (s *Catalog) release(ctx context.Context, id string, url *string) {
	if url == nil {
		return
	}
	n, err := s.store.CountImageRefs(ctx, *url)
	if err != nil {
		logger.WithCtx(ctx).Warn("catalog: image not released", "id", id, "error", err)
		return
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("catalog: image still referenced", "id", id, "image_url", *url, "refs", n)
		return
	}
	if err := s.images.Release(ctx, url); err != nil {
		logger.WithCtx(ctx).Warn("catalog: image not released", "id", id, "error", err)
	}
}

// actor is the admin email carried by the request, if any.
func actor(ctx context.Context) string {
	if c := auth.FromCtx(ctx); c != nil {
		return c.Email
	}
	return ""
}

func (s *Catalog) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx, listCacheNS); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache bump failed", "error", err)
	}
}
