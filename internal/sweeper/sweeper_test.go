package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu                sync.Mutex
	verificationCalls int
	codeCalls         int
	retention         time.Duration
	verificationErr   error
	codeErr           error
}

func (f *fakeStore) CleanupVerifications(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verificationCalls++
	f.retention = retention
	if f.verificationErr != nil {
		return 0, f.verificationErr
	}
	return 2, nil
}

func (f *fakeStore) CleanupSessionCodes(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeCalls++
	if f.codeErr != nil {
		return 0, f.codeErr
	}
	return 1, nil
}

func (f *fakeStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verificationCalls, f.codeCalls
}

func TestSweeper_RunsImmediately(t *testing.T) {
	store := &fakeStore{}
	s := New(store, time.Hour, 15*time.Minute, nil)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		v, c := store.calls()
		return v >= 1 && c >= 1
	}, time.Second, 10*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 15*time.Minute, store.retention)
}

func TestSweeper_RunsOnInterval(t *testing.T) {
	store := &fakeStore{}
	s := New(store, 20*time.Millisecond, 15*time.Minute, nil)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		v, _ := store.calls()
		return v >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestSweeper_StopHaltsLoop(t *testing.T) {
	store := &fakeStore{}
	s := New(store, 10*time.Millisecond, 15*time.Minute, nil)

	s.Start()
	require.Eventually(t, func() bool {
		v, _ := store.calls()
		return v >= 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	v, c := store.calls()
	time.Sleep(50 * time.Millisecond)
	v2, c2 := store.calls()
	assert.Equal(t, v, v2)
	assert.Equal(t, c, c2)
}

func TestSweeper_ContinuesAfterError(t *testing.T) {
	store := &fakeStore{verificationErr: errors.New("locked")}
	s := New(store, 10*time.Millisecond, 15*time.Minute, nil)

	s.Start()
	defer s.Stop()

	// A failed verification pass must not skip session code cleanup.
	require.Eventually(t, func() bool {
		_, c := store.calls()
		return c >= 2
	}, time.Second, 5*time.Millisecond)
}
