package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/turtacn/aptrec/internal/infrastructure/storage/minio"
	"github.com/turtacn/aptrec/pkg/errors"
)

// ObjectPutter writes whole objects by key.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Publish validates snap and uploads its documents under prefix. The index
// is written last so a reader polling for it never sees a partial set.
func Publish(ctx context.Context, store ObjectPutter, prefix string, snap *Snapshot) error {
	if _, err := snap.Compile(); err != nil {
		return err
	}
	docs, err := Encode(snap)
	if err != nil {
		return err
	}
	for _, name := range publishOrder(docs) {
		if err := store.Put(ctx, minio.JoinKey(prefix, name), docs[name], "application/json"); err != nil {
			return errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to upload snapshot document").WithDetail(name)
		}
	}
	return nil
}

func publishOrder(docs map[string][]byte) []string {
	names := make([]string, 0, len(docs))
	for name := range docs {
		if name != IndexFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append(names, IndexFile)
}

// WriteDir writes snap's documents into dir, creating it if needed.
func WriteDir(dir string, snap *Snapshot) error {
	docs, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to create snapshot directory").WithDetail(dir)
	}
	for _, name := range publishOrder(docs) {
		if err := os.WriteFile(filepath.Join(dir, name), docs[name], 0o644); err != nil {
			return errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to write snapshot document").WithDetail(name)
		}
	}
	return nil
}

//Personal.AI order the ending
