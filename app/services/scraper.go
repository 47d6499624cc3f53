package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	apphttp "github.com/opsipintar/catalog/pkg/http"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/shopspring/decimal"
)

// maxEnvelopeDepth bounds how many string/response wrappers are peeled.
const maxEnvelopeDepth = 4

// scraperMaxBytes caps the webhook response body.
const scraperMaxBytes = 1 << 20

// ScrapedProduct is the normalized scraper payload.
type ScrapedProduct struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	ImageURL    *string  `json:"imageUrl"`
}

// Scraper calls the product scraper webhook.
type Scraper struct {
	webhook string
	timeout time.Duration
}

// NewScraper returns a Scraper posting to webhook.
func NewScraper(webhook string) *Scraper {
	return &Scraper{webhook: strings.TrimSpace(webhook), timeout: 60 * time.Second}
}

// Scrape posts {url: sourceURL} to the webhook and normalizes the reply.
// It makes exactly one attempt.
func (s *Scraper) Scrape(ctx context.Context, sourceURL string) (*ScrapedProduct, error) {
	log := logger.WithCtx(ctx)

	if s.webhook == "" {
		return nil, &ScrapeError{Kind: ErrScrapeUnreachable, Err: errors.New("SCRAPER_WEBHOOK_URL is not set")}
	}

	resp, err := apphttp.Post(s.webhook).
		WithContext(ctx).
		Header("Accept", "application/json").
		Body(map[string]string{"url": sourceURL}).
		Timeout(s.timeout).
		MaxBytes(scraperMaxBytes).
		Send()
	if errors.Is(err, apphttp.ErrBodyTooLarge) {
		return nil, &ScrapeError{Kind: ErrScrapeMalformed, Err: err}
	}
	if err != nil {
		log.Warn("scraper: request failed", "source_url", sourceURL, "error", err)
		return nil, &ScrapeError{Kind: ErrScrapeUnreachable, Err: err}
	}
	if !resp.OK() {
		log.Warn("scraper: upstream status", "source_url", sourceURL, "status", resp.StatusCode)
		return nil, &ScrapeError{Kind: ErrScrapeStatus, Status: resp.StatusCode}
	}

	product, err := decodeEnvelope(resp.Raw)
	if err != nil {
		log.Warn("scraper: malformed response", "source_url", sourceURL, "error", err, "body_bytes", len(resp.Raw))
		return nil, &ScrapeError{Kind: ErrScrapeMalformed, Err: err}
	}

	log.Debug("scraper: product decoded", "source_url", sourceURL, "name", product.Name)
	return product, nil
}

// productFields are the keys that identify a scraper product object.
var productFields = []string{"name", "description", "price", "category", "imageUrl"}

// decodeEnvelope unwraps the webhook reply. It accepts a product object, an
// object whose "response" holds the product (as an object or a JSON string),
// or a JSON string holding either of those.
func decodeEnvelope(body []byte) (*ScrapedProduct, error) {
	v, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}

	for depth := 0; depth < maxEnvelopeDepth; depth++ {
		switch t := v.(type) {
		case string:
			if v, err = decodeJSON([]byte(t)); err != nil {
				return nil, fmt.Errorf("inner string: %w", err)
			}
		case map[string]any:
			if hasProductField(t) {
				return project(t), nil
			}
			inner, ok := t["response"]
			if !ok || inner == nil {
				return nil, errors.New("object has no product fields")
			}
			v = inner
		default:
			return nil, fmt.Errorf("unexpected JSON %T", v)
		}
	}
	return nil, errors.New("response is nested too deeply")
}

func decodeJSON(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func hasProductField(m map[string]any) bool {
	for _, k := range productFields {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func project(m map[string]any) *ScrapedProduct {
	p := &ScrapedProduct{
		Name:        strings.TrimSpace(asString(m["name"])),
		Description: strings.TrimSpace(asString(m["description"])),
		Price:       asPrice(m["price"]),
	}
	if c := strings.TrimSpace(asString(m["category"])); c != "" {
		p.Category = &c
	}
	if u := strings.TrimSpace(asString(m["imageUrl"])); u != "" {
		p.ImageURL = &u
	}
	return p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asPrice accepts a JSON number or a decimal string. Anything else, including
// a value too large for a float64, is absent.
func asPrice(v any) *float64 {
	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = strings.TrimSpace(t)
	default:
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return nil
	}
	return &f
}
