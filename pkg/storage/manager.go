package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/logger"
)

var (
	managerMu   sync.RWMutex
	disks       = map[string]Disk{}
	defaultDisk string
)

// Connect boots the disk named by STORAGE_DISK and makes it the default.
func Connect(ctx context.Context) error {
	name := config.StorageDisk()

	var (
		d   Disk
		err error
	)
	switch name {
	case "s3":
		d, err = NewS3Disk(ctx, S3Config{
			Bucket:    config.StorageBucket(),
			Region:    config.StorageS3Region(),
			Key:       config.StorageS3Key(),
			Secret:    config.StorageS3Secret(),
			Endpoint:  config.StorageS3Endpoint(),
			PublicURL: config.StoragePublicURLBase(),
		})
	case "local":
		base := config.StoragePublicURLBase()
		if base == "" {
			base = fmt.Sprintf("http://localhost:%s/storage/%s", config.AppPort(), config.StorageBucket())
		}
		d, err = NewLocalDisk(config.StorageLocalRoot(), config.StorageBucket(), base)
	default:
		return fmt.Errorf("storage: unknown disk %q", name)
	}
	if err != nil {
		return err
	}

	RegisterDisk(name, d)
	managerMu.Lock()
	defaultDisk = name
	managerMu.Unlock()

	logger.Info("storage: connected", "disk", name, "bucket", config.StorageBucket(), "public_base", d.URL(""))
	return nil
}

// RegisterDisk plugs in a Disk under name. The first registered disk becomes
// the default until Connect picks one.
func RegisterDisk(name string, d Disk) {
	managerMu.Lock()
	defer managerMu.Unlock()
	disks[name] = d
	if defaultDisk == "" {
		defaultDisk = name
	}
}

// Use returns the named disk, or an error when it was never registered.
func Use(name string) (Disk, error) {
	managerMu.RLock()
	defer managerMu.RUnlock()
	d, ok := disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}

// Default returns the default disk. It panics when storage was never booted.
func Default() Disk {
	managerMu.RLock()
	name := defaultDisk
	managerMu.RUnlock()

	d, err := Use(name)
	if err != nil {
		panic(err)
	}
	return d
}
