package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulwark/internal/circuit"
	dErrors "bulwark/pkg/domain-errors"
)

type fakeAdapter struct {
	calls      []string
	failing    map[string]error
	completion Completion
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		failing: map[string]error{},
		completion: Completion{
			Content:      "hello",
			InputTokens:  1000,
			OutputTokens: 2000,
		},
	}
}

func (f *fakeAdapter) Complete(_ context.Context, target string, _ Request) (Completion, error) {
	f.calls = append(f.calls, target)
	if err, ok := f.failing[target]; ok {
		return Completion{}, err
	}
	return f.completion, nil
}

func newService(t *testing.T, adapter Adapter) *Service {
	t.Helper()
	svc, err := New(adapter, circuit.NewRegistry(), "claude-3-sonnet", "gpt-3.5-turbo")
	require.NoError(t, err)
	return svc
}

func TestDispatchDefaultTarget(t *testing.T) {
	adapter := newFakeAdapter()
	svc := newService(t, adapter)

	result, err := svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-3-sonnet", result.ServedBy)
	assert.False(t, result.FellBack)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, []string{"claude-3-sonnet"}, adapter.calls)
}

func TestDispatchCostFromRateCard(t *testing.T) {
	adapter := newFakeAdapter()
	svc := newService(t, adapter)

	// claude-3-sonnet prices at 3 / 15 USD per million tokens.
	result, err := svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), result.InputTokens)
	assert.Equal(t, int64(2000), result.OutputTokens)
	assert.InDelta(t, 0.033, result.CostUSD, 1e-9)
}

func TestDispatchUnknownTarget(t *testing.T) {
	svc := newService(t, newFakeAdapter())

	_, err := svc.Dispatch(context.Background(), Request{Target: "gpt-99"})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestDispatchFallsBackOnce(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")
	svc := newService(t, adapter)

	result, err := svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", result.ServedBy)
	assert.True(t, result.FellBack)
	assert.Equal(t, []string{"claude-3-sonnet", "gpt-3.5-turbo"}, adapter.calls)
}

func TestDispatchCostPricedByServingTarget(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")
	svc := newService(t, adapter)

	// gpt-3.5-turbo prices at 0.5 / 1.5 USD per million tokens.
	result, err := svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.0035, result.CostUSD, 1e-9)
}

func TestDispatchFallbackNeverCascades(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")
	adapter.failing["gpt-3.5-turbo"] = errors.New("upstream 502")
	svc := newService(t, adapter)

	_, err := svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstream, dErrors.CodeOf(err))
	assert.Equal(t, []string{"claude-3-sonnet", "gpt-3.5-turbo"}, adapter.calls)
}

func TestDispatchFallbackTargetDoesNotRetryItself(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["gpt-3.5-turbo"] = errors.New("upstream 503")
	svc := newService(t, adapter)

	_, err := svc.Dispatch(context.Background(), Request{
		Target:   "gpt-3.5-turbo",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo"}, adapter.calls)
}

func TestDispatchNoFallbackConfigured(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")

	svc, err := New(adapter, circuit.NewRegistry(), "claude-3-sonnet", "")
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"claude-3-sonnet"}, adapter.calls)
}

func TestDispatchOpenBreakerRoutesToFallbackWithoutCallingPrimary(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")
	svc := newService(t, adapter)

	// Trip the primary's breaker.
	for range 5 {
		_, err := svc.Dispatch(context.Background(), Request{})
		require.NoError(t, err) // fallback keeps serving
	}
	require.Len(t, adapter.calls, 10)

	result, err := svc.Dispatch(context.Background(), Request{})
	require.NoError(t, err)

	assert.True(t, result.FellBack)
	// Sixth request never reaches the primary adapter.
	assert.Equal(t, "gpt-3.5-turbo", adapter.calls[len(adapter.calls)-1])
	require.Len(t, adapter.calls, 11)
}

func TestDispatchOpenBreakerErrorCode(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failing["claude-3-sonnet"] = errors.New("upstream 503")

	svc, err := New(adapter, circuit.NewRegistry(), "claude-3-sonnet", "")
	require.NoError(t, err)

	for range 5 {
		_, err := svc.Dispatch(context.Background(), Request{})
		require.Error(t, err)
	}

	_, err = svc.Dispatch(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeCircuitOpen, dErrors.CodeOf(err))
	assert.Len(t, adapter.calls, 5)
}

type ctxCapturingAdapter struct {
	fakeAdapter
	gotCtx context.Context
}

func (c *ctxCapturingAdapter) Complete(ctx context.Context, target string, req Request) (Completion, error) {
	c.gotCtx = ctx
	return c.fakeAdapter.Complete(ctx, target, req)
}

func TestDispatchCallerContextReachesAdapter(t *testing.T) {
	adapter := &ctxCapturingAdapter{fakeAdapter: *newFakeAdapter()}
	svc := newService(t, adapter)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	_, err := svc.Dispatch(ctx, Request{})
	require.NoError(t, err)
	require.NotNil(t, adapter.gotCtx)
	assert.Equal(t, "v", adapter.gotCtx.Value(key{}), "breaker must pass the caller's context through to the upstream call")
}

func TestDispatchLatencyMeasured(t *testing.T) {
	adapter := newFakeAdapter()
	svc := newService(t, adapter)

	result, err := svc.Dispatch(context.Background(), Request{})
	require.NoError(t, err)
	assert.Less(t, result.Latency, time.Second)
}

func TestNewRejectsUnknownDefaultTarget(t *testing.T) {
	_, err := New(newFakeAdapter(), circuit.NewRegistry(), "mystery-model", "")
	assert.Error(t, err)
}

func TestNewRejectsUnknownFallbackTarget(t *testing.T) {
	_, err := New(newFakeAdapter(), circuit.NewRegistry(), "claude-3-sonnet", "mystery-model")
	assert.Error(t, err)
}

func TestNewRejectsNilAdapter(t *testing.T) {
	_, err := New(nil, circuit.NewRegistry(), "claude-3-sonnet", "")
	assert.Error(t, err)
}
