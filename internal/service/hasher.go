package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"todolist/internal/metrics"
)

// Hasher hashes and verifies passwords with bcrypt. The number of concurrent
// bcrypt computations is capped so CPU-heavy logins cannot starve the server.
type Hasher struct {
	cost    int
	slots   chan struct{}
	metrics metrics.Recorder

	dummyOnce sync.Once
	dummyHash []byte
	dummyErr  error
}

func NewHasher(cost, workers int, rec metrics.Recorder) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Hasher{
		cost:    cost,
		slots:   make(chan struct{}, workers),
		metrics: rec,
	}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	h.metrics.RecordHashDuration(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether password matches hash. A mismatch is not an error.
func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	h.metrics.RecordHashDuration(time.Since(start))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare password: %w", err)
}

// CompareDummy burns the same CPU as a real comparison. Login calls it for
// unknown aliases so response time does not reveal which aliases exist.
// The dummy hash is generated lazily inside a slot like any other bcrypt work.
func (h *Hasher) CompareDummy(ctx context.Context, password string) error {
	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer h.release()

	h.dummyOnce.Do(func() {
		h.dummyHash, h.dummyErr = bcrypt.GenerateFromPassword([]byte("todolist-dummy-password"), h.cost)
	})
	if h.dummyErr != nil {
		return fmt.Errorf("dummy hash: %w", h.dummyErr)
	}

	start := time.Now()
	err := bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	h.metrics.RecordHashDuration(time.Since(start))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() {
	<-h.slots
}
