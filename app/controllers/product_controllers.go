package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/opsipintar/catalog/app/providers"
	"github.com/opsipintar/catalog/app/repositories"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/pkg/bind"
	"github.com/opsipintar/catalog/pkg/container"
	"github.com/opsipintar/catalog/pkg/response"
	"github.com/opsipintar/catalog/pkg/router"
)

// listCacheControl lets the CDN keep a listing for a minute and serve it
// stale while revalidating.
const listCacheControl = "public, s-maxage=60, stale-while-revalidate=300"

type ProductController struct{}

func NewProductController() *ProductController {
	return &ProductController{}
}

func (c *ProductController) catalog() *services.Catalog {
	return container.Make[*services.Catalog](providers.Catalog)
}

// Index handles GET /api/products?page=&q=&category=.
func (c *ProductController) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.FieldError(w, http.StatusBadRequest, "page", "must be a positive integer")
			return
		}
		page = n
	}

	res, err := c.catalog().List(r.Context(), repositories.ListQuery{
		Page:     page,
		Search:   q.Get("q"),
		Category: q.Get("category"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", listCacheControl)
	response.Paginated(w, response.Page{
		Items:    res.Items,
		Page:     res.Page,
		PageSize: res.PageSize,
		Total:    res.Total,
		HasMore:  int64(res.Page*res.PageSize) < res.Total,
	})
}

// Show handles GET /api/products/{id}.
func (c *ProductController) Show(w http.ResponseWriter, r *http.Request) {
	p, err := c.catalog().Find(r.Context(), router.Param(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, p)
}

// Store handles POST /api/products. A non-empty autofill_source_url runs
// the scraper path.
func (c *ProductController) Store(w http.ResponseWriter, r *http.Request) {
	req, err := readProductForm(w, r)
	if err != nil {
		bad(w, err)
		return
	}

	p, err := c.catalog().Create(r.Context(), *req)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, p)
}

// Update handles PUT /api/products/{id}. The body replaces every editable
// field.
func (c *ProductController) Update(w http.ResponseWriter, r *http.Request) {
	req, err := readProductForm(w, r)
	if err != nil {
		bad(w, err)
		return
	}

	p, err := c.catalog().Update(r.Context(), router.Param(r, "id"), req.Draft, req.Image)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, p)
}

// Destroy handles DELETE /api/products/{id}.
func (c *ProductController) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := c.catalog().Delete(r.Context(), router.Param(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	response.NoContent(w)
}

type productInput struct {
	services.ProductDraft
	AutofillSourceURL string `json:"autofill_source_url"`
}

// readProductForm accepts either a JSON body or multipart/form-data with an
// optional "image" file part.
func readProductForm(w http.ResponseWriter, r *http.Request) (*services.IngestRequest, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var in productInput
		if err := bind.JSON(w, r, &in); err != nil {
			return nil, err
		}
		return &services.IngestRequest{AutofillSourceURL: in.AutofillSourceURL, Draft: in.ProductDraft}, nil
	}

	data, header, err := bind.Multipart(w, r, "image")
	if err != nil {
		return nil, err
	}

	f := r.PostFormValue
	req := &services.IngestRequest{
		AutofillSourceURL: f("autofill_source_url"),
		Draft: services.ProductDraft{
			Title:       f("title"),
			Description: f("description"),
			Price:       services.PriceText(strings.TrimSpace(f("price"))),
			Category:    f("category"),
			ImageURL:    f("image_url"),
			ShopeeURL:   f("shopee_url"),
			TiktokURL:   f("tiktok_url"),
			OthersURL:   f("others_url"),
			ReviewURL:   f("review_url"),
			IsTrending:  formBool(f("is_trending")),
			IsFeatured:  formBool(f("is_featured")),
		},
	}
	if header != nil {
		req.Image = &services.ImageUpload{Data: data, Filename: header.Filename}
	}
	return req, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
