package services

import (
	"bytes"
	"context"
	"testing"

	apphttp "github.com/opsipintar/catalog/pkg/http"
	"github.com/opsipintar/catalog/pkg/storage"
	"github.com/opsipintar/catalog/pkg/testkit"
	"github.com/stretchr/testify/require"
)

const (
	testStorageBase = "https://media.test/storage/product-images"
	testWebhook     = "https://scraper.test/webhook/product"
)

// Smallest valid image headers, enough for content sniffing.
var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), bytes.Repeat([]byte{0}, 32)...)
	webpBytes = append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), bytes.Repeat([]byte{0}, 32)...)
)

func newTestDisk(t *testing.T) *storage.LocalDisk {
	t.Helper()
	d, err := storage.NewLocalDisk(t.TempDir(), "product-images", testStorageBase)
	require.NoError(t, err)
	return d
}

// mockOutbound routes pkg/http through steps for the rest of the test.
func mockOutbound(t *testing.T, steps ...testkit.MockStep) *testkit.MockTransport {
	t.Helper()
	mt := testkit.NewMockTransportSteps(true, steps...)
	apphttp.DefaultClient.Transport = mt
	t.Cleanup(apphttp.ResetTransport)
	return mt
}

func storedKeys(t *testing.T, d storage.Disk) []string {
	t.Helper()
	objs, err := d.List(context.Background(), "products/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func strPtr(s string) *string { return &s }

// conflictDisk reports every key as taken.
type conflictDisk struct {
	storage.Disk
}

func (conflictDisk) Put(context.Context, string, []byte, storage.PutOptions) error {
	return storage.ErrExists
}
