package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/storage"
	"github.com/opsipintar/catalog/pkg/workerpool"
)

const deleteWorkers = 8

// ImageReferences lists the image URLs still referenced by product rows.
type ImageReferences interface {
	ReferencedImageURLs(ctx context.Context) ([]string, error)
}

// OrphanSweeper finds stored product images that no row references.
type OrphanSweeper struct {
	disk storage.Disk
	refs ImageReferences
	now  func() time.Time
}

func NewOrphanSweeper(disk storage.Disk, refs ImageReferences) *OrphanSweeper {
	return &OrphanSweeper{disk: disk, refs: refs, now: time.Now}
}

// Find returns unreferenced objects under products/ last modified more than
// olderThan ago. Recent blobs are skipped so an in-flight ingest is never
// reported.
func (s *OrphanSweeper) Find(ctx context.Context, olderThan time.Duration) ([]storage.Object, error) {
	urls, err := s.refs.ReferencedImageURLs(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := s.disk.KeyFor(u); ok {
			referenced[key] = struct{}{}
		}
	}

	objects, err := s.disk.List(ctx, productsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", productsPrefix, err)
	}

	cutoff := s.now().Add(-olderThan)
	var orphans []storage.Object
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		orphans = append(orphans, obj)
	}
	return orphans, nil
}

// Delete removes objs using deleteWorkers concurrent deletes. It returns how
// many were deleted along with every failure.
func (s *OrphanSweeper) Delete(ctx context.Context, objs []storage.Object) (int, error) {
	var deleted atomic.Int64
	pool := workerpool.New(deleteWorkers)

	for _, obj := range objs {
		err := pool.Submit(ctx, func(ctx context.Context) error {
			if err := s.disk.Delete(ctx, obj.Key); err != nil {
				return fmt.Errorf("delete %s: %w", obj.Key, err)
			}
			deleted.Add(1)
			logger.WithCtx(ctx).Info("orphans: deleted", "key", obj.Key, "bytes", obj.Size)
			return nil
		})
		if err != nil {
			break
		}
	}

	err := pool.Wait()
	if ctx.Err() != nil {
		err = errors.Join(err, ctx.Err())
	}
	return int(deleted.Load()), err
}
