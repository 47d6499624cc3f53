package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is one entry of the closed catalog taxonomy.
type Category string

const (
	CategoryViral   Category = "Opsi Viral"
	CategoryGadget  Category = "Opsi Gadget"
	CategoryRumah   Category = "Opsi Rumah"
	CategoryFashion Category = "Opsi Fashion"
	CategoryLainnya Category = "Opsi Lainnya"

	// CategoryAll is the "no filter" value of catalog queries. It is never stored.
	CategoryAll Category = "Semua"
)

// Categories returns the stored taxonomy in display order.
func Categories() []Category {
	return []Category{CategoryViral, CategoryGadget, CategoryRumah, CategoryFashion, CategoryLainnya}
}

// Valid reports whether c may be stored on a product.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Product is one catalog entry linking out to marketplaces.
type Product struct {
	ID          string   `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Price       float64  `gorm:"not null;default:0;check:chk_products_price,price >= 0" json:"price"`
	Category    Category `gorm:"size:32;not null;index;check:chk_products_category,category IN ('Opsi Viral','Opsi Gadget','Opsi Rumah','Opsi Fashion','Opsi Lainnya')" json:"category"`

	ImageURL  *string `gorm:"size:1024" json:"image_url"`
	ShopeeURL *string `gorm:"size:1024" json:"shopee_url"`
	TiktokURL *string `gorm:"size:1024" json:"tiktok_url"`
	OthersURL *string `gorm:"size:1024" json:"others_url"`
	ReviewURL *string `gorm:"size:1024" json:"review_url"`

	IsTrending bool `gorm:"not null;default:false;index" json:"is_trending"`
	IsFeatured bool `gorm:"not null;default:false;index" json:"is_featured"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
