package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	apphttp "github.com/opsipintar/catalog/pkg/http"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/opsipintar/catalog/pkg/storage"
	"github.com/opsipintar/catalog/pkg/validate"
)

const (
	// marketplaceReferer is required by the marketplace CDN's hot-link policy.
	marketplaceReferer = "https://shopee.co.id/"

	imageCacheControl = "max-age=3600"
	imageMaxBytes     = 10 << 20
	suffixLen         = 10

	// proxiedPrefix marks blobs that came through the proxy.
	proxiedPrefix = "n8n-"

	// productsPrefix is the only namespace product rows may own.
	productsPrefix = "products/"
)

// PersistedImageRef describes a stored product image.
type PersistedImageRef struct {
	PublicURL   string `json:"publicUrl"`
	ContentType string `json:"contentType"`
	StorageKey  string `json:"storageKey"`
}

// Image is a buffered image ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string // with leading dot
}

// ImageProxy fetches remote images server-side and stores them in the
// product-images bucket.
type ImageProxy struct {
	disk storage.Disk
	now  func() time.Time
}

func NewImageProxy(disk storage.Disk) *ImageProxy {
	return &ImageProxy{disk: disk, now: time.Now}
}

// ProxyAndUpload fetches imageURL with browser headers and stores it under
// products/n8n-<ms>-<rand>.<ext>.
func (p *ImageProxy) ProxyAndUpload(ctx context.Context, imageURL string) (*PersistedImageRef, error) {
	img, err := p.Fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return p.Store(ctx, img, proxiedPrefix)
}

// Fetch downloads imageURL. It does not touch storage.
func (p *ImageProxy) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	imageURL = strings.TrimSpace(imageURL)
	if !validate.IsHTTPURL(imageURL) {
		return nil, &ProxyError{Kind: ErrImageBadInput}
	}

	resp, err := apphttp.Get(imageURL).
		WithContext(ctx).
		Browser().
		Header("Referer", marketplaceReferer).
		MaxBytes(imageMaxBytes).
		Send()
	if errors.Is(err, apphttp.ErrBodyTooLarge) {
		return nil, &ProxyError{Kind: ErrImageFetchFailed, Err: fmt.Errorf("image exceeds %d bytes", imageMaxBytes)}
	}
	if err != nil {
		return nil, &ProxyError{Kind: ErrImageUnreachable, Err: err}
	}
	if !resp.OK() {
		logger.WithCtx(ctx).Warn("imageproxy: fetch denied", "image_url", imageURL, "status", resp.StatusCode)
		return nil, &ProxyError{Kind: ErrImageFetchFailed, Status: resp.StatusCode}
	}

	ct, ext := sniffContentType(resp.Header("Content-Type"))
	return &Image{Data: resp.Raw, ContentType: ct, Ext: ext}, nil
}

// Store writes img under products/<prefix><ms>-<rand><ext>. The write is
// conditional; a key collision is ErrStorageConflict.
func (p *ImageProxy) Store(ctx context.Context, img *Image, prefix string) (*PersistedImageRef, error) {
	suffix, err := randomSuffix(suffixLen)
	if err != nil {
		return nil, &ProxyError{Kind: ErrStorageUpload, Err: err}
	}
	key := fmt.Sprintf("%s%s%d-%s%s", productsPrefix, prefix, p.now().UnixMilli(), suffix, img.Ext)

	err = p.disk.Put(ctx, key, img.Data, storage.PutOptions{
		ContentType:  img.ContentType,
		CacheControl: imageCacheControl,
	})
	if errors.Is(err, storage.ErrExists) {
		return nil, &ProxyError{Kind: ErrStorageConflict, Err: err}
	}
	if err != nil {
		return nil, &ProxyError{Kind: ErrStorageUpload, Err: err}
	}

	metrics.ImageBytes.Observe(float64(len(img.Data)))
	logger.WithCtx(ctx).Info("imageproxy: stored", "key", key, "content_type", img.ContentType, "bytes", len(img.Data))

	return &PersistedImageRef{
		PublicURL:   p.disk.URL(key),
		ContentType: img.ContentType,
		StorageKey:  key,
	}, nil
}

// UploadedImage validates a user-supplied file. The type is sniffed from the
// bytes; the extension of filename is kept when it agrees with that type.
func UploadedImage(data []byte, filename string) (*Image, error) {
	if len(data) == 0 {
		return nil, &ProxyError{Kind: ErrImageBadInput, Err: errors.New("uploaded image is empty")}
	}

	ct := http.DetectContentType(data)
	canonical, ok := imageExts[ct]
	if !ok {
		return nil, &ProxyError{Kind: ErrImageBadInput, Err: fmt.Errorf("unsupported image type %s", ct)}
	}

	ext := strings.ToLower(path.Ext(filename))
	if storage.ContentTypeFor("x"+ext) != ct {
		ext = canonical
	}
	return &Image{Data: data, ContentType: ct, Ext: ext}, nil
}

// productKey returns the storage key behind url when it lies under
// products/ on our disk.
func (p *ImageProxy) productKey(url string) (string, bool) {
	key, ok := p.disk.KeyFor(url)
	if !ok || !strings.HasPrefix(key, productsPrefix) {
		return "", false
	}
	return key, true
}

// Owns reports whether url points into our product storage.
func (p *ImageProxy) Owns(url string) bool {
	_, ok := p.productKey(url)
	return ok
}

// Stored reports whether the owned url still has a blob behind it.
func (p *ImageProxy) Stored(ctx context.Context, url string) (bool, error) {
	key, ok := p.productKey(url)
	if !ok {
		return false, nil
	}
	exists, err := p.disk.Exists(ctx, key)
	if err != nil {
		return false, &ProxyError{Kind: ErrStorageUpload, Err: err}
	}
	return exists, nil
}

// Release deletes the blob behind url when it lies in our namespace.
// A nil or foreign url is a no-op.
func (p *ImageProxy) Release(ctx context.Context, url *string) error {
	if url == nil {
		return nil
	}
	key, ok := p.productKey(*url)
	if !ok {
		return nil
	}
	if err := p.disk.Delete(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	logger.WithCtx(ctx).Info("imageproxy: released", "key", key)
	return nil
}

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// sniffContentType picks the stored type from the CDN's Content-Type header.
func sniffContentType(header string) (contentType, ext string) {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "png"):
		return "image/png", ".png"
	case strings.Contains(h, "webp"):
		return "image/webp", ".webp"
	default:
		return "image/jpeg", ".jpg"
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = base36[int(b)%len(base36)]
	}
	return string(buf), nil
}
