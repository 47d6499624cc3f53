package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opsipintar/catalog/app/models"
	"gorm.io/gorm"
)

// PageSize is the fixed catalog page size.
const PageSize = 20

// ErrNotFound is returned when no product has the requested id.
var ErrNotFound = errors.New("product not found")

// ListQuery filters the catalog listing. Page is 1-based.
type ListQuery struct {
	Page     int
	Search   string
	Category string
}

// ListResult is one page of products plus the unpaged total.
type ListResult struct {
	Items    []models.Product `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

// ProductRepository handles database operations for Product.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts p. The id and timestamps are filled in on success.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Find looks up a product by primary key.
func (r *ProductRepository) Find(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &p, nil
}

// Update rewrites every column of an existing row. Existence is checked
// separately because some drivers report zero affected rows for an update
// that changes nothing.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("update product %s: %w", p.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		err := tx.Model(p).
			Select("*").
			Omit("id", "created_at").
			Updates(p).Error
		if err != nil {
			return fmt.Errorf("update product %s: %w", p.ID, err)
		}
		return nil
	})
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return fmt.Errorf("delete product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of products, newest first. Search matches title or
// description case-insensitively; an empty or "Semua" category is no filter.
func (r *ProductRepository) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	filtered := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&models.Product{})
		if s := strings.TrimSpace(q.Search); s != "" {
			like := "%" + escapeLike(strings.ToLower(s)) + "%"
			tx = tx.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)
		}
		if c := strings.TrimSpace(q.Category); c != "" && c != string(models.CategoryAll) {
			tx = tx.Where("category = ?", c)
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	items := make([]models.Product, 0, PageSize)
	err := filtered().Order("created_at DESC").Order("id").
		Limit(PageSize).
		Offset((page - 1) * PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ListResult{Items: items, Page: page, PageSize: PageSize, Total: total}, nil
}

// ReferencedImageURLs returns every non-null image_url in the table.
func (r *ProductRepository) ReferencedImageURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("image_url IS NOT NULL").
		Pluck("image_url", &urls).Error
	if err != nil {
		return nil, fmt.Errorf("pluck image urls: %w", err)
	}
	return urls, nil
}

// CountImageRefs returns how many rows point at url.
func (r *ProductRepository) CountImageRefs(ctx context.Context, url string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("image_url = ?", url).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count image refs: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
