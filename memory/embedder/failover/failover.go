// Package failover combines a remote primary embedder with a local
// fallback behind a one-way latch: once the primary fails for any call,
// every later call in the provider's lifetime uses the fallback. The
// trade is a transient capability loss for call stability.
//
// Primary calls run on a dedicated worker goroutine so a caller that is
// itself inside a cooperative scheduler can never deadlock the call; a
// caller-supplied timeout on the context bounds a hung primary and is
// treated identically to a primary failure.
package failover

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
	"github.com/lethanhdat/membank/memory"
)

const (
	defaultTimeout = 15 * time.Second

	// Cache sizing: entries are a few KB each; the budget is generous
	// enough that entries are effectively never evicted within a process.
	cacheNumCounters = 1 << 20
	cacheMaxCost     = 1 << 28
	cacheBufferItems = 64
)

// Provider implements memory.Embedder over a primary and a fallback
// backend with a content-hash cache shared across calls.
type Provider struct {
	primary  memory.Embedder
	fallback memory.Embedder
	timeout  time.Duration

	cache   *ristretto.Cache
	latched atomic.Bool

	startWorker sync.Once
	requests    chan request
	done        chan struct{}
}

type request struct {
	ctx   context.Context
	texts []string
	out   chan result
}

type result struct {
	vectors [][]float32
	err     error
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds each primary backend call. Expiry latches fallback.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// New creates a Provider. Both backends are required; the fallback's
// dimensionality is used for zero vectors when the fallback itself fails.
func New(primary, fallback memory.Embedder, opts ...Option) (*Provider, error) {
	if primary == nil || fallback == nil {
		return nil, goerr.New("both primary and fallback embedders are required")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	p := &Provider{
		primary:  primary,
		fallback: fallback,
		timeout:  defaultTimeout,
		cache:    cache,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Latched reports whether the provider has permanently switched to the
// fallback backend.
func (p *Provider) Latched() bool {
	return p.latched.Load()
}

// Dimensions returns the active backend's vector size.
func (p *Provider) Dimensions() int {
	if p.latched.Load() {
		return p.fallback.Dimensions()
	}
	return p.primary.Dimensions()
}

// Embed converts a single text to a vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts texts to vectors, serving cache hits without
// touching any backend. The returned slice always has one vector per
// input and never carries an error a caller must abort on: a total
// embedding failure degrades to zero vectors.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if cached, ok := p.cache.Get(cacheKey(text)); ok {
			if vec, ok := cached.([]float32); ok {
				vectors[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	computed, ok := p.compute(ctx, missTexts)
	for j, idx := range missIdx {
		vectors[idx] = computed[j]
	}
	// Degraded zero vectors stay out of the cache so the same text gets a
	// real embedding once the fallback recovers.
	if !ok {
		return vectors, nil
	}
	for j := range missTexts {
		p.cache.Set(cacheKey(missTexts[j]), computed[j], int64(4*len(computed[j])))
	}
	// ristretto applies Sets asynchronously; flush so an immediate repeat
	// of the same text is served from cache.
	p.cache.Wait()
	return vectors, nil
}

// compute produces vectors for cache misses, handling the latch. The
// second return is false when the batch degraded to zero vectors; those
// must not be cached.
func (p *Provider) compute(ctx context.Context, texts []string) ([][]float32, bool) {
	if !p.latched.Load() {
		vectors, err := p.callPrimary(ctx, texts)
		if err == nil {
			return vectors, true
		}
		p.latched.Store(true)
		logging.From(ctx).Warn("primary embedder failed, latching to fallback", "error", err)
	}

	vectors, err := p.fallback.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) == len(texts) {
		return vectors, true
	}
	if err != nil {
		logging.From(ctx).Warn("fallback embedder failed, degrading to zero vectors", "error", err)
	}

	dims := p.fallback.Dimensions()
	vectors = make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, dims)
	}
	return vectors, false
}

// callPrimary submits work to the dedicated worker and waits for the
// result, bounded by the configured timeout. Any failure to hand the work
// off, or to get it back, counts as a primary failure.
func (p *Provider) callPrimary(ctx context.Context, texts []string) ([][]float32, error) {
	p.startWorker.Do(func() {
		go p.workerLoop()
	})

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := request{ctx: ctx, texts: texts, out: make(chan result, 1)}

	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "embedding worker unavailable")
	case <-p.done:
		return nil, goerr.New("embedding worker stopped")
	}

	select {
	case res := <-req.out:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.vectors) != len(texts) {
			return nil, goerr.New("primary embedder returned wrong vector count",
				goerr.V("want", len(texts)), goerr.V("got", len(res.vectors)))
		}
		return res.vectors, nil
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "primary embedding timed out")
	case <-p.done:
		return nil, goerr.New("embedding worker stopped")
	}
}

// workerLoop owns the primary backend calls. It runs on its own goroutine
// with its own scheduling context, independent of the caller's.
func (p *Provider) workerLoop() {
	for {
		select {
		case req := <-p.requests:
			vectors, err := p.primary.EmbedBatch(req.ctx, req.texts)
			req.out <- result{vectors: vectors, err: err}
		case <-p.done:
			return
		}
	}
}

// Close stops the worker. Pending and later calls fail over to fallback.
func (p *Provider) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// cacheKey hashes the normalized text. SHA-256 keeps distinct inputs from
// colliding in the shared cache.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
