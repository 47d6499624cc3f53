package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/pkg/bind"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/opsipintar/catalog/pkg/validate"
	"github.com/shopspring/decimal"
)

// Stage is a state of one ingest run. Runs only move forward.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageScraping   Stage = "scraping"
	StageProxying   Stage = "proxying"
	StageUploading  Stage = "uploading"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

// Ingest path labels.
const (
	PathScraper = "scraper"
	PathManual  = "manual"
)

// ProductWriter is the record store the coordinator persists into.
type ProductWriter interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
}

// PriceText is a price as the client sent it. JSON numbers and strings are
// both accepted and kept verbatim for validation.
type PriceText string

func (p *PriceText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceText(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a number or a numeric string")
	}
	*p = PriceText(n.String())
	return nil
}

// ProductDraft is the user-editable product form. Empty strings mean "not
// supplied".
type ProductDraft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       PriceText `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	ShopeeURL   string    `json:"shopee_url"`
	TiktokURL   string    `json:"tiktok_url"`
	OthersURL   string    `json:"others_url"`
	ReviewURL   string    `json:"review_url"`
	IsTrending  bool      `json:"is_trending"`
	IsFeatured  bool      `json:"is_featured"`
}

// ImageUpload is a file uploaded with the form.
type ImageUpload struct {
	Data     []byte
	Filename string
}

// IngestRequest selects the scraper path when AutofillSourceURL is set and the
// manual path otherwise.
type IngestRequest struct {
	AutofillSourceURL string
	Draft             ProductDraft
	Image             *ImageUpload
}

// Coordinator runs scrape, category mapping, image proxy and persist in order.
type Coordinator struct {
	scraper *Scraper
	images  *ImageProxy
	store   ProductWriter
}

func NewCoordinator(scraper *Scraper, images *ImageProxy, store ProductWriter) *Coordinator {
	return &Coordinator{scraper: scraper, images: images, store: store}
}

// run tracks the stage of one ingest.
type run struct {
	ctx   context.Context
	path  string
	stage Stage
	start time.Time
}

func (c *Coordinator) begin(ctx context.Context, path string) *run {
	return &run{ctx: ctx, path: path, stage: StageIdle, start: time.Now()}
}

func (r *run) enter(s Stage) {
	r.observe()
	logger.WithCtx(r.ctx).Debug("ingest: stage", "path", r.path, "from", r.stage, "to", s)
	r.stage, r.start = s, time.Now()
}

// observe records the time spent in the current stage. Idle is not a stage
// of work and is never recorded.
func (r *run) observe() {
	if r.stage != StageIdle {
		metrics.ObserveStage(string(r.stage), r.start)
	}
}

// fail stamps err with the current stage. Validation errors stay idle: they
// are decided before any side effect.
func (r *run) fail(err error) error {
	var ie *IngestError
	if !errors.As(err, &ie) {
		ie = &IngestError{Err: err}
	}
	if ie.Field == "" {
		ie.Stage = r.stage
	}
	return ie
}

func (r *run) finish(err error) {
	metrics.RecordIngest(r.path, Outcome(err))
	if err == nil {
		r.enter(StageDone)
		return
	}
	r.observe()
	logger.WithCtx(r.ctx).Warn("ingest: failed", "path", r.path, "stage", r.stage, "outcome", Outcome(err), "error", err)
}

// Ingest creates one product. At most one blob is written and exactly one
// row is inserted on success. Validation runs before any side effect.
func (c *Coordinator) Ingest(ctx context.Context, req IngestRequest) (product *models.Product, err error) {
	path := PathManual
	if strings.TrimSpace(req.AutofillSourceURL) != "" {
		path = PathScraper
	}
	r := c.begin(ctx, path)
	defer func() { r.finish(err) }()

	var cand *candidate
	if path == PathScraper {
		cand, err = c.scrapeAndMerge(r, req)
	} else {
		cand, err = c.manual(ctx, req.Draft, req.Image != nil)
	}
	if err != nil {
		return nil, r.fail(err)
	}

	product = cand.product()
	if product.ImageURL, err = c.resolveImage(r, cand, req.Image); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StagePersisting)
	if err := c.store.Create(ctx, product); err != nil {
		if product.ImageURL != nil {
			logger.WithCtx(ctx).Warn("ingest: blob orphaned", "image_url", *product.ImageURL)
		}
		return nil, r.fail(&IngestError{Kind: ErrPersistFailed, Err: err})
	}

	logger.WithCtx(ctx).Info("ingest: product created", "id", product.ID, "path", path, "category", product.Category, "admin", actor(ctx))
	return product, nil
}

// Replace rewrites existing from draft on the manual path, keeping its id
// and created_at. It does not release the previous image; the caller does
// once the row is saved.
func (c *Coordinator) Replace(ctx context.Context, existing *models.Product, draft ProductDraft, image *ImageUpload) (product *models.Product, err error) {
	r := c.begin(ctx, PathManual)
	defer func() { r.finish(err) }()

	cand, err := c.manual(ctx, draft, image != nil)
	if err != nil {
		return nil, r.fail(err)
	}

	product = cand.product()
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	if product.ImageURL, err = c.resolveImage(r, cand, image); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StagePersisting)
	if err := c.store.Update(ctx, product); err != nil {
		return nil, r.fail(&IngestError{Kind: ErrPersistFailed, Err: err})
	}
	return product, nil
}

func (c *Coordinator) scrapeAndMerge(r *run, req IngestRequest) (*candidate, error) {
	source := strings.TrimSpace(req.AutofillSourceURL)
	if !validate.IsHTTPURL(source) {
		return nil, invalid("autofill_source_url", "The autofill_source_url must be a valid URL.")
	}

	r.enter(StageScraping)
	scraped, err := c.scraper.Scrape(r.ctx, source)
	if err != nil {
		return nil, err
	}

	d := req.Draft
	cand := &candidate{
		Title:       firstNonEmpty(d.Title, scraped.Name),
		Description: firstNonEmpty(d.Description, scraped.Description),
		Price:       strings.TrimSpace(string(d.Price)),
		ImageURL:    firstNonEmpty(d.ImageURL, deref(scraped.ImageURL)),
		ShopeeURL:   source,
		TiktokURL:   strings.TrimSpace(d.TiktokURL),
		OthersURL:   strings.TrimSpace(d.OthersURL),
		ReviewURL:   strings.TrimSpace(d.ReviewURL),
		IsTrending:  d.IsTrending,
		IsFeatured:  d.IsFeatured,
	}
	if cand.Price == "" && scraped.Price != nil {
		cand.Price = decimal.NewFromFloat(*scraped.Price).String()
	}

	switch userCat := models.Category(strings.TrimSpace(d.Category)); {
	case userCat.Valid():
		cand.Category = string(userCat)
	case userCat != "":
		cand.Category = string(MapCategory(string(userCat)))
	default:
		cand.Category = string(MapCategory(deref(scraped.Category)))
	}

	if err := c.check(r.ctx, cand, req.Image != nil); err != nil {
		return nil, err
	}
	return cand, nil
}

func (c *Coordinator) manual(ctx context.Context, d ProductDraft, hasBlob bool) (*candidate, error) {
	cand := &candidate{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Price:       strings.TrimSpace(string(d.Price)),
		Category:    strings.TrimSpace(d.Category),
		ImageURL:    strings.TrimSpace(d.ImageURL),
		ShopeeURL:   strings.TrimSpace(d.ShopeeURL),
		TiktokURL:   strings.TrimSpace(d.TiktokURL),
		OthersURL:   strings.TrimSpace(d.OthersURL),
		ReviewURL:   strings.TrimSpace(d.ReviewURL),
		IsTrending:  d.IsTrending,
		IsFeatured:  d.IsFeatured,
	}
	if err := c.check(ctx, cand, hasBlob); err != nil {
		return nil, err
	}
	if cand.ImageURL != "" && !c.images.Owns(cand.ImageURL) {
		return nil, invalid("image_url", "The image_url must reference product storage.")
	}
	return cand, nil
}

// check validates cand against the product rules. An uploaded file
// supersedes any image_url; a kept image_url of ours must still be stored.
func (c *Coordinator) check(ctx context.Context, cand *candidate, hasBlob bool) error {
	if hasBlob {
		cand.ImageURL = ""
	}
	if err := bind.Validate(cand); err != nil {
		var fe *bind.FieldError
		if errors.As(err, &fe) {
			return invalid(fe.Field, fe.Message)
		}
		return err
	}

	d, err := decimal.NewFromString(cand.Price)
	if err != nil {
		return invalid("price", "The price field must be a number.")
	}
	cand.price = d.InexactFloat64()
	if math.IsInf(cand.price, 0) {
		return invalid("price", "The price must be a finite number.")
	}

	if cand.ImageURL != "" && c.images.Owns(cand.ImageURL) {
		stored, err := c.images.Stored(ctx, cand.ImageURL)
		if err != nil {
			return err
		}
		if !stored {
			return invalid("image_url", "The image_url is not in product storage.")
		}
	}
	return nil
}

// resolveImage returns the image_url to store. An uploaded file wins over a
// URL; a URL already in our storage is kept; a foreign URL is proxied.
func (c *Coordinator) resolveImage(r *run, cand *candidate, upload *ImageUpload) (*string, error) {
	if upload != nil {
		img, err := UploadedImage(upload.Data, upload.Filename)
		if err != nil {
			var pe *ProxyError
			if errors.As(err, &pe) && pe.Err != nil {
				return nil, invalid("image", fmt.Sprintf("The image is invalid: %v.", pe.Err))
			}
			return nil, invalid("image", "The image must be a JPEG, PNG or WebP file.")
		}
		r.enter(StageUploading)
		ref, err := c.images.Store(r.ctx, img, "")
		if err != nil {
			return nil, err
		}
		return &ref.PublicURL, nil
	}

	if cand.ImageURL == "" {
		return nil, nil
	}
	if c.images.Owns(cand.ImageURL) {
		u := cand.ImageURL
		return &u, nil
	}

	r.enter(StageProxying)
	img, err := c.images.Fetch(r.ctx, cand.ImageURL)
	if err != nil {
		return nil, err
	}
	r.enter(StageUploading)
	ref, err := c.images.Store(r.ctx, img, proxiedPrefix)
	if err != nil {
		return nil, err
	}
	return &ref.PublicURL, nil
}

// candidate is a merged, not yet validated product. Its rules mirror the
// products table.
type candidate struct {
	Title       string `json:"title"       validate:"required,max=255"`
	Description string `json:"description"`
	Price       string `json:"price"       validate:"required,decimal,gte=0"`
	Category    string `json:"category"    validate:"required,in=Opsi Viral,Opsi Gadget,Opsi Rumah,Opsi Fashion,Opsi Lainnya"`
	ShopeeURL   string `json:"shopee_url"  validate:"nullable,url,max=1024"`
	TiktokURL   string `json:"tiktok_url"  validate:"nullable,url,max=1024"`
	OthersURL   string `json:"others_url"  validate:"nullable,url,max=1024"`
	ReviewURL   string `json:"review_url"  validate:"nullable,url,max=1024"`
	ImageURL    string `json:"image_url"   validate:"nullable,url,max=1024"`
	IsTrending  bool   `json:"is_trending"`
	IsFeatured  bool   `json:"is_featured"`

	price float64
}

func (c *candidate) product() *models.Product {
	return &models.Product{
		Title:       c.Title,
		Description: c.Description,
		Price:       c.price,
		Category:    models.Category(c.Category),
		ShopeeURL:   optional(c.ShopeeURL),
		TiktokURL:   optional(c.TiktokURL),
		OthersURL:   optional(c.OthersURL),
		ReviewURL:   optional(c.ReviewURL),
		IsTrending:  c.IsTrending,
		IsFeatured:  c.IsFeatured,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
