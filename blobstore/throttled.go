package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledStore wraps a Store and limits its byte throughput. It is
// meant for background work (bulk loads, large reads) that must not
// starve foreground I/O.
type ThrottledStore struct {
	inner   Store
	limiter *rate.Limiter
}

// NewThrottledStore wraps inner with a bytes-per-second ceiling.
// bytesPerSec <= 0 disables throttling.
func NewThrottledStore(inner Store, bytesPerSec int64) *ThrottledStore {
	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
	}
	return &ThrottledStore{inner: inner, limiter: limiter}
}

// wait reserves n bytes of budget, blocking until available or ctx ends.
// Requests larger than the burst are split.
func (s *ThrottledStore) wait(ctx context.Context, n int) error {
	if s.limiter == nil || n <= 0 {
		return nil
	}
	burst := s.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Open opens a blob for reading; reads through the handle are throttled.
func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{inner: b, store: s}, nil
}

// Put writes a blob atomically after reserving byte budget.
func (s *ThrottledStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.wait(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Create creates a new writable blob; writes are throttled against a
// background context since WritableBlob.Write carries none.
func (s *ThrottledStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledWritableBlob{inner: w, store: s, ctx: ctx}, nil
}

// Delete removes a blob.
func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns blob names with the given prefix.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledBlob struct {
	inner Blob
	store *ThrottledStore
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.store.wait(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.inner.ReadAt(ctx, p, off)
}

func (b *throttledBlob) Close() error {
	return b.inner.Close()
}

func (b *throttledBlob) Size() int64 {
	return b.inner.Size()
}

type throttledWritableBlob struct {
	inner WritableBlob
	store *ThrottledStore
	ctx   context.Context
}

func (w *throttledWritableBlob) Write(p []byte) (int, error) {
	if err := w.store.wait(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.inner.Write(p)
}

func (w *throttledWritableBlob) Sync() error {
	return w.inner.Sync()
}

func (w *throttledWritableBlob) Close() error {
	return w.inner.Close()
}
