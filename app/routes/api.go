package routes

import (
	"github.com/opsipintar/catalog/app/controllers"
	"github.com/opsipintar/catalog/pkg/middleware"
	"github.com/opsipintar/catalog/pkg/router"
)

// RegisterAPI mounts the catalog API and the admin ingest helpers.
func RegisterAPI(r *router.Router) {
	authController := controllers.NewAuthController()
	productController := controllers.NewProductController()
	ingestController := controllers.NewIngestController()

	api := r.Group("/api")
	api.Post("/admin/login", "auth.login", authController.Login)
	api.Get("/products", "products.index", productController.Index)
	api.Get("/products/{id}", "products.show", productController.Show)

	admin := api.Group("/products", middleware.Admin)
	admin.Post("", "products.store", productController.Store)
	admin.Put("/{id}", "products.update", productController.Update)
	admin.Delete("/{id}", "products.destroy", productController.Destroy)

	ingest := r.Group("/ingest", middleware.Admin)
	ingest.Post("/autofill", "ingest.autofill", ingestController.Autofill)
	ingest.Post("/image-proxy", "ingest.image_proxy", ingestController.ImageProxy)
}
