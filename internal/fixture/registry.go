package fixture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultProvisioningTimeout bounds one provisioning attempt. Pulling a
// multi-gigabyte model on a cold cache is slow.
const DefaultProvisioningTimeout = 30 * time.Minute

// Options configures a Registry.
type Options struct {
	// ExternalURL, when non-empty, disables provisioning entirely: every key
	// resolves to a handle pointing at this URL.
	ExternalURL string

	// ProvisioningTimeout bounds each attempt. Zero means
	// DefaultProvisioningTimeout; negative means no limit.
	ProvisioningTimeout time.Duration

	Logger zerolog.Logger
}

// Registry de-duplicates fixture provisioning per key. Construct one per
// run, call Start to pre-provision defaults and Close to tear down.
type Registry struct {
	prov    Provisioner
	opts    Options
	log     zerolog.Logger
	runCtx  context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	// mu guards entries and closed only. It is never held while provisioning.
	mu      sync.Mutex
	entries map[Key]*entry
	closed  bool
}

// entry is the single provisioning attempt for one key. handle and err are
// written once, before done is closed.
type entry struct {
	done   chan struct{}
	handle Handle
	err    error
}

// NewRegistry returns a registry that provisions through p.
func NewRegistry(p Provisioner, opts Options) *Registry {
	if opts.ProvisioningTimeout == 0 {
		opts.ProvisioningTimeout = DefaultProvisioningTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		prov:    p,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "fixtures").Logger(),
		runCtx:  ctx,
		cancel:  cancel,
		entries: make(map[Key]*entry),
	}
}

// External reports whether provisioning is disabled by an external endpoint.
func (r *Registry) External() bool {
	return r.opts.ExternalURL != ""
}

// Start pre-provisions keys in parallel and returns the first failure, so a
// broken default fixture stops the run before any scenario executes.
func (r *Registry) Start(ctx context.Context, keys ...Key) error {
	if r.External() {
		r.log.Info().Str("endpoint", r.opts.ExternalURL).Msg("using external endpoint, provisioning disabled")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			_, err := r.GetOrCreate(gctx, key)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to pre-provision fixtures: %w", err)
	}
	return nil
}

// GetOrCreate returns the handle for key, provisioning it if no attempt has
// been made yet. Concurrent callers for the same key share one attempt and
// receive identical results. A failed attempt is recorded and returned to
// every later caller; use Retry to provision again.
//
// ctx bounds only this caller's wait. The attempt itself runs until it
// finishes, times out, or the registry is closed.
func (r *Registry) GetOrCreate(ctx context.Context, key Key) (Handle, error) {
	if err := key.Validate(); err != nil {
		return Handle{}, err
	}
	if r.External() {
		return Handle{Key: key, Endpoint: r.opts.ExternalURL, Ready: true, Source: SourceExternal}, nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Handle{}, ErrClosed
	}
	e, ok := r.entries[key]
	if !ok {
		e = &entry{done: make(chan struct{})}
		r.entries[key] = e
		r.pending.Add(1)
		go r.provision(key, e)
	}
	r.mu.Unlock()

	select {
	case <-e.done:
		return e.handle, e.err
	case <-ctx.Done():
		return Handle{}, fmt.Errorf("waiting for fixture %s: %w", key, ctx.Err())
	}
}

// Retry discards a recorded failure for key and provisions it again. A ready
// or in-flight key is left alone and its result returned.
func (r *Registry) Retry(ctx context.Context, key Key) (Handle, error) {
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		select {
		case <-e.done:
			if e.err != nil {
				delete(r.entries, key)
				r.log.Info().Str("key", key.String()).Msg("retrying failed fixture")
			}
		default:
		}
	}
	r.mu.Unlock()

	return r.GetOrCreate(ctx, key)
}

// Err returns the recorded failure for key, or nil if the key is ready,
// in flight, or unknown.
func (r *Registry) Err(key Key) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// Handles returns the ready handles, ordered by key.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var handles []Handle
	for _, e := range r.entries {
		select {
		case <-e.done:
			if e.err == nil {
				handles = append(handles, e.handle)
			}
		default:
		}
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].Key.String() < handles[j].Key.String()
	})
	return handles
}

// Close aborts in-flight attempts, waits for them, and stops every ready
// fixture. Later calls to GetOrCreate return ErrClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.pending.Wait()

	var errs []error
	for _, h := range r.Handles() {
		if err := r.prov.Stop(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop fixture %s: %w", h.Key, err))
			continue
		}
		r.log.Debug().Str("key", h.Key.String()).Msg("fixture stopped")
	}
	return errors.Join(errs...)
}

// provision runs the single attempt for key and publishes its result on e.
func (r *Registry) provision(key Key, e *entry) {
	defer r.pending.Done()
	defer close(e.done)

	ctx := r.runCtx
	if limit := r.opts.ProvisioningTimeout; limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	log := r.log.With().Str("key", key.String()).Logger()
	log.Info().Msg("provisioning fixture")

	start := time.Now()
	h, err := r.prov.Start(ctx, key)
	elapsed := time.Since(start)

	if err == nil && !h.Ready {
		err = errors.New("provisioner returned a handle that is not ready")
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", &TimeoutError{
				Op:      "provisioning",
				Key:     key,
				Limit:   r.opts.ProvisioningTimeout,
				Elapsed: elapsed,
			}, err)
		}
		var pe *ProvisioningError
		if !errors.As(err, &pe) {
			err = &ProvisioningError{Key: key, Elapsed: elapsed, Err: err}
		}
		e.err = err
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("fixture provisioning failed")
		return
	}

	h.Key = key
	e.handle = h
	log.Info().Str("endpoint", h.Endpoint).Str("source", string(h.Source)).Dur("elapsed", elapsed).Msg("fixture ready")
}
