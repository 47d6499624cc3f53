package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsipintar/catalog/app/models"
	"github.com/opsipintar/catalog/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphanSweeper(t *testing.T) {
	ctx := context.Background()
	disk := newTestDisk(t)
	repo := newTestRepository(t)

	put := func(key string) {
		require.NoError(t, disk.Put(ctx, key, pngBytes, storage.PutOptions{ContentType: "image/png"}))
	}
	put("products/n8n-1-referenced.png")
	put("products/n8n-2-orphan.png")
	put("products/3-orphan.png")
	put("banners/not-ours.png")

	ref := disk.URL("products/n8n-1-referenced.png")
	require.NoError(t, repo.Create(ctx, &models.Product{Title: "a", Category: models.CategoryViral, ImageURL: &ref}))
	require.NoError(t, repo.Create(ctx, &models.Product{Title: "b", Category: models.CategoryViral, ImageURL: strPtr("https://cf.shopee.co.id/file/x")}))

	sweeper := NewOrphanSweeper(disk, repo)

	recent, err := sweeper.Find(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, recent, "fresh blobs are never reported")

	sweeper.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	orphans, err := sweeper.Find(ctx, 24*time.Hour)
	require.NoError(t, err)

	var keys []string
	for _, o := range orphans {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"products/n8n-2-orphan.png", "products/3-orphan.png"}, keys)

	n, err := sweeper.Delete(ctx, orphans)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"products/n8n-1-referenced.png"}, storedKeys(t, disk))
}

// failingDisk refuses to delete one key.
type failingDisk struct {
	storage.Disk
	bad string
}

func (d failingDisk) Delete(ctx context.Context, key string) error {
	if key == d.bad {
		return errors.New("access denied")
	}
	return d.Disk.Delete(ctx, key)
}

func TestOrphanSweeperDeleteReportsFailures(t *testing.T) {
	ctx := context.Background()
	disk := newTestDisk(t)
	var objs []storage.Object
	for _, key := range []string{"products/a.png", "products/b.png", "products/c.png"} {
		require.NoError(t, disk.Put(ctx, key, pngBytes, storage.PutOptions{ContentType: "image/png"}))
		objs = append(objs, storage.Object{Key: key})
	}

	sweeper := NewOrphanSweeper(failingDisk{Disk: disk, bad: "products/b.png"}, newTestRepository(t))
	n, err := sweeper.Delete(ctx, objs)

	assert.Equal(t, 2, n)
	assert.ErrorContains(t, err, "delete products/b.png: access denied")
	assert.Equal(t, []string{"products/b.png"}, storedKeys(t, disk))
}
