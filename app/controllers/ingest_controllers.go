package controllers

import (
	"net/http"
	"strings"

	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/app/providers"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/pkg/bind"
	"github.com/opsipintar/catalog/pkg/container"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/opsipintar/catalog/pkg/response"
)

// IngestController serves the two admin helpers the product form calls
// before saving: scraper autofill and image proxying.
type IngestController struct{}

func NewIngestController() *IngestController {
	return &IngestController{}
}

type autofillInput struct {
	URL string `json:"url" validate:"required,url"`
}

// AutofillResult is the scraped product plus the category it maps to.
type AutofillResult struct {
	*services.ScrapedProduct
	MappedCategory models.Category `json:"mappedCategory"`
}

// Autofill handles POST /ingest/autofill.
func (c *IngestController) Autofill(w http.ResponseWriter, r *http.Request) {
	var in autofillInput
	if err := bind.JSON(w, r, &in); err != nil {
		bad(w, err)
		return
	}

	scraped, err := container.Make[*services.Scraper](providers.Scraper).Scrape(r.Context(), strings.TrimSpace(in.URL))
	metrics.RecordIngest("autofill", services.Outcome(err))
	if err != nil {
		fail(w, r, err)
		return
	}

	response.Success(w, AutofillResult{
		ScrapedProduct: scraped,
		MappedCategory: services.MapCategory(deref(scraped.Category)),
	})
}

type imageProxyInput struct {
	ImageURL string `json:"imageUrl"`
}

// ImageProxy handles POST /ingest/image-proxy. URL checks are left to the
// proxy so every bad input reads "invalid image URL".
func (c *IngestController) ImageProxy(w http.ResponseWriter, r *http.Request) {
	var in imageProxyInput
	if err := bind.JSON(w, r, &in); err != nil {
		bad(w, err)
		return
	}

	ref, err := container.Make[*services.ImageProxy](providers.Images).ProxyAndUpload(r.Context(), in.ImageURL)
	metrics.RecordIngest("image_proxy", services.Outcome(err))
	if err != nil {
		fail(w, r, err)
		return
	}

	response.Success(w, map[string]string{"publicUrl": ref.PublicURL})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
