package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/app/repositories"
	"github.com/opsipintar/catalog/pkg/database"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/opsipintar/catalog/pkg/storage"
	"github.com/opsipintar/catalog/pkg/testkit"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockWriter) Update(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func newTestRepository(t *testing.T) *repositories.ProductRepository {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return repositories.NewProductRepository(db)
}

const wrappedScrape = `{"response":"{\"name\":\"Smart Lamp\",\"price\":\"299000\",\"category\":\"Gadget Elektronik\",\"imageUrl\":\"https://cf.shopee.co.id/file/abc\"}"}`

func scraperStep(body string) testkit.MockStep {
	return testkit.MockStep{
		Method:     http.MethodPost,
		MatchURL:   testWebhook,
		ReturnData: testkit.MockReturnData{Headers: map[string]string{"Content-Type": "application/json"}, Text: body},
	}
}

func cdnStep(status int, contentType string, body []byte, calls int) testkit.MockStep {
	return testkit.MockStep{
		Method:      http.MethodGet,
		MatchURL:    cdnURL,
		ExpectCalls: calls,
		ReturnData: testkit.MockReturnData{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": contentType},
			Body:       base64.StdEncoding.EncodeToString(body),
		},
	}
}

func assertIngestError(t *testing.T, err error, stage Stage) *IngestError {
	t.Helper()
	var ie *IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, stage, ie.Stage)
	return ie
}

func TestIngestScraperPathEndToEnd(t *testing.T) {
	disk := newTestDisk(t)
	repo := newTestRepository(t)
	mt := mockOutbound(t, scraperStep(wrappedScrape), cdnStep(http.StatusOK, "image/webp", webpBytes, 1))

	images := NewImageProxy(disk)
	c := NewCoordinator(NewScraper(testWebhook), images, repo)

	p, err := c.Ingest(context.Background(), IngestRequest{AutofillSourceURL: "https://shope.ee/XYZ"})
	require.NoError(t, err)
	assert.Empty(t, mt.AssertAllCalled())

	got, err := repo.Find(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smart Lamp", got.Title)
	assert.Equal(t, 299000.0, got.Price)
	assert.Equal(t, models.CategoryGadget, got.Category)
	assert.Equal(t, strPtr("https://shope.ee/XYZ"), got.ShopeeURL)
	assert.False(t, got.IsTrending)
	assert.False(t, got.IsFeatured)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	require.NotNil(t, got.ImageURL)
	assert.True(t, strings.HasPrefix(*got.ImageURL, testStorageBase+"/products/n8n-"))
	assert.True(t, strings.HasSuffix(*got.ImageURL, ".webp"))
	assert.Len(t, storedKeys(t, disk), 1)

	page, err := repo.List(context.Background(), repositories.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "exactly one row")
}

func TestIngestUserOverridesWin(t *testing.T) {
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockOutbound(t, scraperStep(wrappedScrape), cdnStep(http.StatusOK, "image/png", pngBytes, 1))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	p, err := c.Ingest(context.Background(), IngestRequest{
		AutofillSourceURL: "https://shope.ee/XYZ",
		Draft: ProductDraft{
			Title:      "Lampu Pintar",
			Price:      "250000",
			Category:   string(models.CategoryViral),
			ShopeeURL:  "https://shopee.co.id/other",
			IsTrending: true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Lampu Pintar", p.Title)
	assert.Equal(t, 250000.0, p.Price)
	assert.Equal(t, models.CategoryViral, p.Category, "a canonical category is trusted")
	assert.Equal(t, "https://shope.ee/XYZ", *p.ShopeeURL, "the autofill source is the affiliate link")
	assert.True(t, p.IsTrending)
	store.AssertNumberOfCalls(t, "Create", 1)
}

func TestIngestFreeTextCategoryOverrideIsMapped(t *testing.T) {
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockOutbound(t, scraperStep(`{"name":"Kaos","price":50000,"category":"Gadget"}`))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	p, err := c.Ingest(context.Background(), IngestRequest{
		AutofillSourceURL: "https://shope.ee/KAOS",
		Draft:             ProductDraft{Category: "pakaian pria"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryFashion, p.Category)
	assert.Nil(t, p.ImageURL)
}

func TestIngestValidationRejectsBeforeSideEffects(t *testing.T) {
	disk := newTestDisk(t)
	store := &mockWriter{}
	mockOutbound(t)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(disk), store)
	_, err := c.Ingest(context.Background(), IngestRequest{
		Draft: ProductDraft{Title: "Smart Lamp", Price: "-5", Category: string(models.CategoryGadget)},
		Image: &ImageUpload{Data: pngBytes, Filename: "lamp.png"},
	})

	require.ErrorIs(t, err, ErrInvalid)
	ie := assertIngestError(t, err, StageIdle)
	assert.Equal(t, "price", ie.Field)
	assert.Equal(t, "The price must be greater than or equal to 0.", ie.Reason)
	assert.Equal(t, ie.Reason, ie.Error())

	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, storedKeys(t, disk))
}

func TestIngestScraperPathValidationSkipsProxy(t *testing.T) {
	disk := newTestDisk(t)
	store := &mockWriter{}
	mt := mockOutbound(t, scraperStep(wrappedScrape), cdnStep(http.StatusOK, "image/png", pngBytes, -1))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(disk), store)
	_, err := c.Ingest(context.Background(), IngestRequest{
		AutofillSourceURL: "https://shope.ee/XYZ",
		Draft:             ProductDraft{Price: "-5"},
	})

	require.ErrorIs(t, err, ErrInvalid)
	assertIngestError(t, err, StageIdle)
	assert.Empty(t, mt.AssertAllCalled())
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, storedKeys(t, disk))
}

func TestIngestValidationRules(t *testing.T) {
	valid := ProductDraft{Title: "Lamp", Price: "10", Category: string(models.CategoryRumah)}

	cases := []struct {
		name  string
		edit  func(*ProductDraft)
		field string
	}{
		{"blank title", func(d *ProductDraft) { d.Title = "   " }, "title"},
		{"missing price", func(d *ProductDraft) { d.Price = "" }, "price"},
		{"non-numeric price", func(d *ProductDraft) { d.Price = "abc" }, "price"},
		{"infinite price", func(d *ProductDraft) { d.Price = "Inf" }, "price"},
		{"overflowing price", func(d *ProductDraft) { d.Price = "1e400" }, "price"},
		{"overlong title", func(d *ProductDraft) { d.Title = strings.Repeat("x", 256) }, "title"},
		{"sentinel category", func(d *ProductDraft) { d.Category = string(models.CategoryAll) }, "category"},
		{"free-text category", func(d *ProductDraft) { d.Category = "Gadget" }, "category"},
		{"relative shopee url", func(d *ProductDraft) { d.ShopeeURL = "/product/1" }, "shopee_url"},
		{"script tiktok url", func(d *ProductDraft) { d.TiktokURL = "javascript:alert(1)" }, "tiktok_url"},
		{"ftp others url", func(d *ProductDraft) { d.OthersURL = "ftp://files.test/x" }, "others_url"},
		{"bare review url", func(d *ProductDraft) { d.ReviewURL = "youtube.com/watch" }, "review_url"},
		{"foreign image", func(d *ProductDraft) { d.ImageURL = cdnURL }, "image_url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockWriter{}
			mockOutbound(t)
			c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)

			d := valid
			tc.edit(&d)
			_, err := c.Ingest(context.Background(), IngestRequest{Draft: d})

			require.ErrorIs(t, err, ErrInvalid)
			var ie *IngestError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tc.field, ie.Field)
			store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestIngestManualKeepsOwnedImage(t *testing.T) {
	disk := newTestDisk(t)
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	mt := mockOutbound(t)

	key := "products/1700000000000-abcdefghij.png"
	require.NoError(t, disk.Put(context.Background(), key, pngBytes, storage.PutOptions{ContentType: "image/png"}))
	owned := disk.URL(key)
	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(disk), store)
	p, err := c.Ingest(context.Background(), IngestRequest{Draft: ProductDraft{
		Title: "Lamp", Price: "0", Category: string(models.CategoryLainnya), ImageURL: owned,
	}})
	require.NoError(t, err)
	assert.Equal(t, owned, *p.ImageURL)
	assert.Empty(t, mt.Requests())
	assert.Equal(t, []string{key}, storedKeys(t, disk))
}

func TestIngestManualRejectsMissingOwnedImage(t *testing.T) {
	store := &mockWriter{}
	mockOutbound(t)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{Draft: ProductDraft{
		Title: "Lamp", Price: "0", Category: string(models.CategoryLainnya),
		ImageURL: testStorageBase + "/products/1700000000000-gonegonego.png",
	}})

	require.ErrorIs(t, err, ErrInvalid)
	ie := assertIngestError(t, err, StageIdle)
	assert.Equal(t, "image_url", ie.Field)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestOverflowingPriceNeverPersists(t *testing.T) {
	store := &mockWriter{}
	mockOutbound(t)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{Draft: ProductDraft{
		Title: "Lamp", Price: "1e400", Category: string(models.CategoryRumah),
	}})

	require.ErrorIs(t, err, ErrInvalid)
	var ie *IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "price", ie.Field)
	assert.Equal(t, "The price must be a finite number.", ie.Reason)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func stageSamples(t *testing.T, stage Stage) uint64 {
	t.Helper()
	var m dto.Metric
	h := metrics.IngestStageDuration.WithLabelValues(string(stage)).(prometheus.Metric)
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestIngestStageMetricsSkipIdle(t *testing.T) {
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockOutbound(t)

	idle := stageSamples(t, StageIdle)
	uploading := stageSamples(t, StageUploading)
	persisting := stageSamples(t, StagePersisting)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{
		Draft: ProductDraft{Title: "Lamp", Price: "10", Category: string(models.CategoryRumah)},
		Image: &ImageUpload{Data: pngBytes, Filename: "lamp.png"},
	})
	require.NoError(t, err)

	_, err = c.Ingest(context.Background(), IngestRequest{
		Draft: ProductDraft{Title: "", Price: "10", Category: string(models.CategoryRumah)},
	})
	require.ErrorIs(t, err, ErrInvalid)

	assert.Equal(t, idle, stageSamples(t, StageIdle))
	assert.Equal(t, uploading+1, stageSamples(t, StageUploading))
	assert.Equal(t, persisting+1, stageSamples(t, StagePersisting))
}

func TestIngestManualUploadsBlob(t *testing.T) {
	disk := newTestDisk(t)
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ImageURL != nil && strings.HasSuffix(*p.ImageURL, ".jpg")
	})).Return(nil)
	mockOutbound(t)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(disk), store)
	_, err := c.Ingest(context.Background(), IngestRequest{
		Draft: ProductDraft{Title: "Lamp", Price: "15000", Category: string(models.CategoryRumah)},
		Image: &ImageUpload{Data: jpegBytes, Filename: "lamp.jpg"},
	})
	require.NoError(t, err)

	keys := storedKeys(t, disk)
	require.Len(t, keys, 1)
	assert.Regexp(t, `^products/\d+-[0-9a-z]{10}\.jpg$`, keys[0])
	store.AssertExpectations(t)
}

func TestIngestRejectsNonImageUpload(t *testing.T) {
	store := &mockWriter{}
	mockOutbound(t)

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{
		Draft: ProductDraft{Title: "Lamp", Price: "1", Category: string(models.CategoryRumah)},
		Image: &ImageUpload{Data: []byte("%PDF-1.4"), Filename: "lamp.jpg"},
	})
	require.ErrorIs(t, err, ErrInvalid)
	var ie *IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "image", ie.Field)
}

func TestIngestScrapeFailureStopsEarly(t *testing.T) {
	store := &mockWriter{}
	mockOutbound(t, scraperStep(`"not-json"`))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{AutofillSourceURL: "https://shope.ee/XYZ"})

	require.ErrorIs(t, err, ErrScrapeMalformed)
	assertIngestError(t, err, StageScraping)
	var se *ScrapeError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "scrape_malformed", Outcome(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestProxyFailureStopsBeforePersist(t *testing.T) {
	store := &mockWriter{}
	mockOutbound(t, scraperStep(wrappedScrape), cdnStep(http.StatusForbidden, "text/html", []byte("no"), 1))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(newTestDisk(t)), store)
	_, err := c.Ingest(context.Background(), IngestRequest{AutofillSourceURL: "https://shope.ee/XYZ"})

	require.ErrorIs(t, err, ErrImageFetchFailed)
	assertIngestError(t, err, StageProxying)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestPersistFailureLeavesOrphan(t *testing.T) {
	disk := newTestDisk(t)
	store := &mockWriter{}
	store.On("Create", mock.Anything, mock.Anything).Return(errors.New("database is locked"))
	mockOutbound(t, scraperStep(wrappedScrape), cdnStep(http.StatusOK, "image/webp", webpBytes, 1))

	c := NewCoordinator(NewScraper(testWebhook), NewImageProxy(disk), store)
	_, err := c.Ingest(context.Background(), IngestRequest{AutofillSourceURL: "https://shope.ee/XYZ"})

	require.ErrorIs(t, err, ErrPersistFailed)
	assertIngestError(t, err, StagePersisting)
	assert.Len(t, storedKeys(t, disk), 1, "blob is not rolled back")
}

func TestPriceTextAcceptsNumbersAndStrings(t *testing.T) {
	var d ProductDraft
	require.NoError(t, json.Unmarshal([]byte(`{"price":150000}`), &d))
	assert.Equal(t, PriceText("150000"), d.Price)

	require.NoError(t, json.Unmarshal([]byte(`{"price":" 12.5 "}`), &d))
	assert.Equal(t, PriceText("12.5"), d.Price)

	require.NoError(t, json.Unmarshal([]byte(`{"price":null}`), &d))
	assert.Equal(t, PriceText(""), d.Price)

	assert.Error(t, json.Unmarshal([]byte(`{"price":true}`), &d))
}
