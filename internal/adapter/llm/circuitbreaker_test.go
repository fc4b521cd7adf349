package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
)

// mockProvider is a scriptable StreamingLLMProvider for breaker tests.
type mockProvider struct {
	name         string
	chatFunc     func(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	streamFunc   func(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error)
	classifyFunc func(ctx context.Context, system, message string) (string, error)
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return &domain.ChatResponse{}, nil
}

func (m *mockProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if m.streamFunc != nil {
		return m.streamFunc(ctx, req)
	}
	ch := make(chan domain.StreamDelta)
	close(ch)
	return ch, nil
}

func (m *mockProvider) Classify(ctx context.Context, system, message string) (string, error) {
	if m.classifyFunc != nil {
		return m.classifyFunc(ctx, system, message)
	}
	return "4", nil
}

func (m *mockProvider) Name() string { return m.name }

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &mockProvider{
		name: "test",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{Message: domain.Message{Content: "ok"}}, nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())
	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
}

func TestCircuitBreakerName(t *testing.T) {
	inner := &mockProvider{name: "bedrock"}
	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())
	assert.Equal(t, "bedrock", cb.Name())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	callCount := 0
	inner := &mockProvider{
		name: "flaky",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			callCount++
			return nil, errors.New("provider error")
		},
	}

	cfg := config.BreakerConfig{
		MaxFailures: 3,
		Timeout:     5 * time.Second,
		Interval:    60 * time.Second,
	}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	// First 3 calls go through and fail.
	for i := 0; i < 3; i++ {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider error")
	}
	assert.Equal(t, 3, callCount)

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Next call should fail fast without reaching the provider.
	_, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 3, callCount, "provider should not be called when circuit is open")
}

func TestCircuitBreakerClosesAfterSuccess(t *testing.T) {
	shouldFail := true
	inner := &mockProvider{
		name: "recovering",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			if shouldFail {
				return nil, errors.New("provider error")
			}
			return &domain.ChatResponse{Message: domain.Message{Content: "recovered"}}, nil
		},
	}

	cfg := config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     50 * time.Millisecond,
		Interval:    60 * time.Second,
	}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	// After the timeout the breaker half-opens and a successful probe
	// closes it again.
	shouldFail = false
	time.Sleep(80 * time.Millisecond)

	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Message.Content)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerPropagatesInnerErrors(t *testing.T) {
	sentinel := errors.New("bedrock exploded")
	inner := &mockProvider{
		name: "test",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, sentinel
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())
	_, err := cb.Chat(context.Background(), domain.ChatRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestCircuitBreakerStreamSuccess(t *testing.T) {
	inner := &mockProvider{
		name: "test",
		streamFunc: func(_ context.Context, _ domain.ChatRequest) (<-chan domain.StreamDelta, error) {
			ch := make(chan domain.StreamDelta, 2)
			ch <- domain.StreamDelta{Text: "hello"}
			ch <- domain.StreamDelta{Done: true}
			close(ch)
			return ch, nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())
	ch, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)

	var deltas []domain.StreamDelta
	for d := range ch {
		deltas = append(deltas, d)
	}
	require.Len(t, deltas, 2)
	assert.Equal(t, "hello", deltas[0].Text)
	assert.True(t, deltas[1].Done)
}

func TestCircuitBreakerStreamTripsOnFailure(t *testing.T) {
	callCount := 0
	inner := &mockProvider{
		name: "flaky",
		streamFunc: func(_ context.Context, _ domain.ChatRequest) (<-chan domain.StreamDelta, error) {
			callCount++
			return nil, errors.New("connect failed")
		},
	}

	cfg := config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     5 * time.Second,
		Interval:    60 * time.Second,
	}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 2, callCount)
}

func TestCircuitBreakerClassifyPassesThrough(t *testing.T) {
	var gotSystem, gotMessage string
	inner := &mockProvider{
		name: "test",
		classifyFunc: func(_ context.Context, system, message string) (string, error) {
			gotSystem, gotMessage = system, message
			return "2", nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())
	code, err := cb.Classify(context.Background(), "route", "where is my order?")

	require.NoError(t, err)
	assert.Equal(t, "2", code)
	assert.Equal(t, "route", gotSystem)
	assert.Equal(t, "where is my order?", gotMessage)
}

func TestCircuitBreakerClassifySharesBreakerState(t *testing.T) {
	inner := &mockProvider{
		name: "flaky",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			return nil, errors.New("provider error")
		},
	}

	cfg := config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     5 * time.Second,
		Interval:    60 * time.Second,
	}
	cb := NewCircuitBreakerProvider(inner, cfg, newTestLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}

	// Chat failures open the breaker for classification too.
	_, err := cb.Classify(context.Background(), "route", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestCircuitBreakerCounts(t *testing.T) {
	inner := &mockProvider{
		name: "test",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{}, nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Chat(context.Background(), domain.ChatRequest{})
		require.NoError(t, err)
	}

	counts := cb.Counts()
	assert.Equal(t, uint32(3), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}
