package snapshot

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

// ErrNotReady is returned while no snapshot has been installed.
var ErrNotReady = errors.New(errors.ErrCodeStoreNotReady, "no similarity snapshot installed")

// Holder owns the serving snapshot. Readers never block; installs are
// serialized and replace the whole snapshot in one pointer swap.
type Holder struct {
	current atomic.Pointer[Serving]
	mu      sync.Mutex
	logger  logging.Logger
}

func NewHolder(logger logging.Logger) *Holder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Holder{logger: logger.Named("snapshot")}
}

// Current returns the serving snapshot or ErrNotReady.
func (h *Holder) Current() (*Serving, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}

// Ready reports whether a snapshot is installed.
func (h *Holder) Ready() bool { return h.current.Load() != nil }

// Install compiles snap and swaps it in. On error the previous snapshot
// stays in place.
func (h *Holder) Install(snap *Snapshot) (*Serving, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	serving, err := snap.Compile()
	if err != nil {
		h.logger.Error("snapshot rejected", logging.String("source", snap.Source), logging.Err(err))
		return nil, err
	}
	prev := h.current.Swap(serving)

	fields := []logging.Field{
		logging.String("source", serving.Source),
		logging.Int("properties", serving.Store.Size()),
		logging.Bool("landmarks", serving.Landmarks != nil),
	}
	if prev != nil {
		fields = append(fields, logging.Int("previous_properties", prev.Store.Size()))
	}
	h.logger.Info("snapshot installed", fields...)
	return serving, nil
}

// Reload loads from src and installs the result.
func (h *Holder) Reload(ctx context.Context, src Source) (*Serving, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		h.logger.Error("snapshot load failed", logging.String("source", src.Name()), logging.Err(err))
		return nil, err
	}
	return h.Install(snap)
}

//Personal.AI order the ending
