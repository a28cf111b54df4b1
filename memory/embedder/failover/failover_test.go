package failover_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/lethanhdat/membank/memory/embedder/failover"
	"github.com/lethanhdat/membank/memory/embedder/mock"
)

func TestRequiresBothBackends(t *testing.T) {
	_, err := failover.New(nil, mock.New())
	gt.Error(t, err)

	_, err = failover.New(mock.New(), nil)
	gt.Error(t, err)
}

func TestPrimaryPreferred(t *testing.T) {
	primary := mock.New()
	fallback := mock.New()
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	vec, err := p.Embed(context.Background(), "xin chào")
	gt.NoError(t, err)
	gt.A(t, vec).Length(primary.Dimensions())

	gt.Equal(t, primary.Calls(), 1)
	gt.Equal(t, fallback.Calls(), 0)
	gt.False(t, p.Latched())
}

func TestLatchIsPermanent(t *testing.T) {
	primary := mock.New()
	fallback := mock.New()
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	primary.SetError(errors.New("quota exceeded"))

	_, err := p.Embed(context.Background(), "first")
	gt.NoError(t, err)
	gt.True(t, p.Latched())
	gt.Equal(t, fallback.Calls(), 1)

	// Primary recovery must not unlatch.
	primary.SetError(nil)
	callsBefore := primary.Calls()

	_, err = p.Embed(context.Background(), "second")
	gt.NoError(t, err)
	gt.True(t, p.Latched())
	gt.Equal(t, primary.Calls(), callsBefore)
	gt.Equal(t, fallback.Calls(), 2)
}

func TestCacheHitSkipsBackends(t *testing.T) {
	primary := mock.New()
	fallback := mock.New()
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	first := gt.R1(p.Embed(context.Background(), "tôi thích cà phê")).NoError(t)
	gt.Equal(t, primary.Calls(), 1)

	second := gt.R1(p.Embed(context.Background(), "tôi thích cà phê")).NoError(t)
	gt.Equal(t, primary.Calls(), 1)
	gt.Equal(t, fallback.Calls(), 0)
	gt.Equal(t, first, second)
}

func TestBatchMixesCacheAndBackend(t *testing.T) {
	primary := mock.New()
	fallback := mock.New()
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	_, err := p.Embed(context.Background(), "cached")
	gt.NoError(t, err)

	vectors, err := p.EmbedBatch(context.Background(), []string{"cached", "fresh"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(2)
	gt.A(t, vectors[0]).Length(primary.Dimensions())
	gt.A(t, vectors[1]).Length(primary.Dimensions())
	// "cached" was served from cache: only two backend calls total.
	gt.Equal(t, primary.Calls(), 2)
}

func TestZeroVectorsWhenEverythingFails(t *testing.T) {
	primary := mock.New()
	fallback := mock.NewWithDimensions(16)
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	primary.SetError(errors.New("down"))
	fallback.SetError(errors.New("also down"))

	vec, err := p.Embed(context.Background(), "không ai trả lời")
	gt.NoError(t, err)
	gt.A(t, vec).Length(16)
	for _, v := range vec {
		gt.Equal(t, v, float32(0))
	}
	gt.True(t, p.Latched())
}

func TestDegradedVectorsAreNotCached(t *testing.T) {
	primary := mock.New()
	fallback := mock.NewWithDimensions(8)
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	primary.SetError(errors.New("down"))
	fallback.SetError(errors.New("also down"))

	degraded, err := p.Embed(context.Background(), "tôi thích cà phê")
	gt.NoError(t, err)
	for _, v := range degraded {
		gt.Equal(t, v, float32(0))
	}

	// Once the fallback recovers, the same text gets a real embedding
	// instead of the earlier zero vector.
	fallback.SetError(nil)

	vec, err := p.Embed(context.Background(), "tôi thích cà phê")
	gt.NoError(t, err)
	gt.NotEqual(t, vec, degraded)

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	gt.Number(t, norm).Greater(0.5)

	// And the real embedding is cached as usual.
	calls := fallback.Calls()
	_, err = p.Embed(context.Background(), "tôi thích cà phê")
	gt.NoError(t, err)
	gt.Equal(t, fallback.Calls(), calls)
}

func TestDimensionsFollowActiveBackend(t *testing.T) {
	primary := mock.NewWithDimensions(768)
	fallback := mock.NewWithDimensions(384)
	p := gt.R1(failover.New(primary, fallback)).NoError(t)
	defer p.Close()

	gt.Equal(t, p.Dimensions(), 768)

	primary.SetError(errors.New("down"))
	_, err := p.Embed(context.Background(), "switch")
	gt.NoError(t, err)

	gt.Equal(t, p.Dimensions(), 384)
}

func TestPrimaryTimeoutLatches(t *testing.T) {
	primary := &slowEmbedder{delay: time.Second, dims: 8}
	fallback := mock.NewWithDimensions(8)
	p := gt.R1(failover.New(primary, fallback, failover.WithTimeout(10*time.Millisecond))).NoError(t)
	defer p.Close()

	vec, err := p.Embed(context.Background(), "chậm quá")
	gt.NoError(t, err)
	gt.A(t, vec).Length(8)
	gt.True(t, p.Latched())
	gt.Equal(t, fallback.Calls(), 1)
}

// slowEmbedder hangs long enough to trip the provider timeout.
type slowEmbedder struct {
	delay time.Duration
	dims  int
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, s.dims)
	}
	return vectors, nil
}

func (s *slowEmbedder) Dimensions() int { return s.dims }
