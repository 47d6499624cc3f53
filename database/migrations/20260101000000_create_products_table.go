package migrations

import (
	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260101000000_create_products_table", &CreateProductsTable{})
}

// CreateProductsTable creates products with its category and price checks.
type CreateProductsTable struct{}

func (m *CreateProductsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{})
}

func (m *CreateProductsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("products")
}
