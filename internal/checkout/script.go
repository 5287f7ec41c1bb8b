package checkout

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/clinicore/clinic-portal/internal/wompi"
)

// ScriptState is the lifecycle of the vendor integration bootstrap.
type ScriptState string

const (
	ScriptNotLoaded ScriptState = "not_loaded"
	ScriptLoaded    ScriptState = "loaded"
	ScriptFailed    ScriptState = "failed"
)

// MerchantFetcher loads the vendor's public merchant descriptor.
type MerchantFetcher interface {
	FetchMerchant(ctx context.Context, publicKey string) (*wompi.MerchantInfo, error)
}

// ScriptLoader performs the one-time vendor integration bootstrap for the
// whole process. A successful load is cached forever; a failed load is
// observable as Failed but the next Load re-attempts, so an explicit retry
// can recover from a transient fetch failure. Concurrent loads collapse
// into a single fetch.
type ScriptLoader struct {
	fetcher   MerchantFetcher
	publicKey string
	group     singleflight.Group

	mu       sync.Mutex
	state    ScriptState
	merchant *wompi.MerchantInfo
	lastErr  error
}

// NewScriptLoader creates a loader for one vendor public key.
func NewScriptLoader(fetcher MerchantFetcher, publicKey string) *ScriptLoader {
	return &ScriptLoader{
		fetcher:   fetcher,
		publicKey: publicKey,
		state:     ScriptNotLoaded,
	}
}

// Load ensures the vendor bootstrap has completed, fetching at most once
// per process across all checkout attempts and retries.
func (l *ScriptLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.state == ScriptLoaded {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	_, err, _ := l.group.Do("load", func() (any, error) {
		l.mu.Lock()
		if l.state == ScriptLoaded {
			merchant := l.merchant
			l.mu.Unlock()
			return merchant, nil
		}
		l.mu.Unlock()

		merchant, err := l.fetcher.FetchMerchant(ctx, l.publicKey)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = ScriptFailed
			l.lastErr = err
			return nil, err
		}
		l.state = ScriptLoaded
		l.merchant = merchant
		l.lastErr = nil
		return merchant, nil
	})
	return err
}

// State reports the current bootstrap state.
func (l *ScriptLoader) State() ScriptState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Loaded reports whether the bootstrap has completed successfully.
func (l *ScriptLoader) Loaded() bool {
	return l.State() == ScriptLoaded
}

// Merchant returns the cached descriptor, nil until loaded.
func (l *ScriptLoader) Merchant() *wompi.MerchantInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.merchant
}
