package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/storage/minio"
	"github.com/turtacn/aptrec/pkg/errors"
)

// Source produces snapshots on demand.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
	Name() string
}

// DirSource reads snapshot documents from a local directory.
type DirSource struct {
	dir    string
	logger logging.Logger
}

func NewDirSource(dir string, logger logging.Logger) *DirSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DirSource{dir: dir, logger: logger.Named("snapshot.dir")}
}

func (d *DirSource) Name() string { return "file:" + d.dir }

func (d *DirSource) Dir() string { return d.dir }

func (d *DirSource) Load(ctx context.Context) (*Snapshot, error) {
	docs := make(map[string][]byte, len(RequiredFiles)+1)
	for _, name := range append(append([]string(nil), RequiredFiles...), LandmarksFile) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(d.dir, name))
		switch {
		case err == nil:
			docs[name] = b
		case os.IsNotExist(err) && name == LandmarksFile:
		case os.IsNotExist(err):
			return nil, errors.Wrap(err, errors.ErrCodeSnapshotNotFound, "snapshot document missing").
				WithDetail(filepath.Join(d.dir, name))
		default:
			return nil, errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to read snapshot document").
				WithDetail(filepath.Join(d.dir, name))
		}
	}
	d.logger.Debug("snapshot documents read", logging.String("dir", d.dir), logging.Int("documents", len(docs)))
	return Decode(docs, d.Name())
}

// ObjectGetter fetches whole objects by key.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ObjectSource reads snapshot documents under a prefix of an object store.
// Documents are fetched concurrently.
type ObjectSource struct {
	store  ObjectGetter
	prefix string
	logger logging.Logger
}

func NewObjectSource(store ObjectGetter, prefix string, logger logging.Logger) *ObjectSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ObjectSource{store: store, prefix: prefix, logger: logger.Named("snapshot.object")}
}

func (o *ObjectSource) Name() string { return "minio:" + o.prefix }

// WithPrefix returns a source reading a different prefix of the same store.
func (o *ObjectSource) WithPrefix(prefix string) *ObjectSource {
	return &ObjectSource{store: o.store, prefix: prefix, logger: o.logger}
}

func (o *ObjectSource) Load(ctx context.Context) (*Snapshot, error) {
	var (
		mu   sync.Mutex
		docs = make(map[string][]byte, len(RequiredFiles)+1)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range append(append([]string(nil), RequiredFiles...), LandmarksFile) {
		name := name
		g.Go(func() error {
			key := minio.JoinKey(o.prefix, name)
			b, err := o.store.Get(gctx, key)
			if err != nil {
				if errors.IsNotFound(err) {
					if name == LandmarksFile {
						return nil
					}
					return errors.Wrap(err, errors.ErrCodeSnapshotNotFound, "snapshot document missing").WithDetail(key)
				}
				return errors.Wrap(err, errors.ErrCodeSnapshotSourceError, "failed to fetch snapshot document").WithDetail(key)
			}
			mu.Lock()
			docs[name] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.logger.Debug("snapshot documents fetched", logging.String("prefix", o.prefix), logging.Int("documents", len(docs)))
	return Decode(docs, o.Name())
}

//Personal.AI order the ending
