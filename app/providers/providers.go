// Package providers binds the catalog services into pkg/container. Bindings
// are lazy: a command that never resolves the catalog never needs a database
// or a storage disk.
package providers

import (
	"github.com/opsipintar/catalog/app/repositories"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/cache"
	"github.com/opsipintar/catalog/pkg/container"
	"github.com/opsipintar/catalog/pkg/database"
	"github.com/opsipintar/catalog/pkg/storage"
	"gorm.io/gorm"
)

// Binding keys.
const (
	DB          = "db"
	Disk        = "storage.disk"
	Cache       = "cache"
	Products    = "repositories.products"
	Scraper     = "services.scraper"
	Images      = "services.images"
	Coordinator = "services.coordinator"
	Catalog     = "services.catalog"
	Orphans     = "services.orphans"
	Auth        = "services.auth"
)

// Register binds the infrastructure from the booted globals (database.DB,
// storage.Default, cache.Default) and the services built on top of it.
func Register() {
	container.Singleton(DB, func() *gorm.DB { return database.DB })
	container.Singleton(Disk, storage.Default)
	container.Singleton(Cache, func() *cache.Store { return cache.Default })
	Services()
}

// Services binds every service. The infrastructure keys must already be
// bound, either by Register or by a test with container.Instance.
func Services() {
	container.Singleton(Products, func() *repositories.ProductRepository {
		return repositories.NewProductRepository(container.Make[*gorm.DB](DB))
	})
	container.Singleton(Scraper, func() *services.Scraper {
		return services.NewScraper(config.ScraperWebhookURL())
	})
	container.Singleton(Images, func() *services.ImageProxy {
		return services.NewImageProxy(container.Make[storage.Disk](Disk))
	})
	container.Singleton(Coordinator, func() *services.Coordinator {
		return services.NewCoordinator(
			container.Make[*services.Scraper](Scraper),
			container.Make[*services.ImageProxy](Images),
			container.Make[*repositories.ProductRepository](Products),
		)
	})
	container.Singleton(Catalog, func() *services.Catalog {
		return services.NewCatalog(
			container.Make[*repositories.ProductRepository](Products),
			container.Make[*services.Coordinator](Coordinator),
			container.Make[*services.ImageProxy](Images),
			container.Make[*cache.Store](Cache),
		)
	})
	container.Singleton(Orphans, func() *services.OrphanSweeper {
		return services.NewOrphanSweeper(
			container.Make[storage.Disk](Disk),
			container.Make[*repositories.ProductRepository](Products),
		)
	})
	container.Singleton(Auth, services.NewAuthService)
}
