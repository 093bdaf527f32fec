package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoEngine answers every turn with "echo: <user text>".
func echoEngine() *Engine {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			return &llm.CompletionResponse{Text: "echo: " + last.Text}, nil
		},
	}
	return newTestEngine(mock, calculatorRegistry(), EngineConfig{})
}

func newTestCoordinator(engine *Engine, store SessionStore) *Coordinator {
	log := silentLog()
	return NewCoordinator(engine, store, hooks.NewManager(log), log)
}

func TestCoordinatorSubmit(t *testing.T) {
	store := newTestStore()
	defer store.Close()
	c := newTestCoordinator(echoEngine(), store)

	result, err := c.Submit(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", result.FinalText)

	history := store.Get("alice")
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, "echo: hello", history[1].Text)
}

func TestCoordinatorIsolatesClients(t *testing.T) {
	store := newTestStore()
	defer store.Close()
	c := newTestCoordinator(echoEngine(), store)

	_, err := c.Submit(context.Background(), "alice", "from alice")
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "bob", "from bob")
	require.NoError(t, err)

	alice := store.Get("alice")
	bob := store.Get("bob")
	require.Len(t, alice, 2)
	require.Len(t, bob, 2)
	assert.Equal(t, "from alice", alice[0].Text)
	assert.Equal(t, "from bob", bob[0].Text)
}

func TestCoordinatorReasoningFailurePreservesHistory(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "down", Code: 400}
		},
	}
	engine := newTestEngine(mock, calculatorRegistry(), EngineConfig{})

	store := newTestStore()
	defer store.Close()
	store.Replace("alice", []domain.Message{
		domain.NewUserMessage("before"),
		{Role: domain.RoleAssistant, Text: "answer"},
	})

	c := newTestCoordinator(engine, store)
	result, err := c.Submit(context.Background(), "alice", "break please")
	require.NoError(t, err, "a failed turn still yields a usable result")
	assert.Contains(t, result.FinalText, "Sorry, I encountered an error:")

	history := store.Get("alice")
	require.Len(t, history, 2, "stored history untouched by the failed turn")
	assert.Equal(t, "before", history[0].Text)
}

func TestCoordinatorClear(t *testing.T) {
	store := newTestStore()
	defer store.Close()
	c := newTestCoordinator(echoEngine(), store)

	_, err := c.Submit(context.Background(), "alice", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, store.Get("alice"))

	c.Clear(context.Background(), "alice")
	assert.Empty(t, store.Get("alice"))

	// Idempotent.
	c.Clear(context.Background(), "alice")
}

func TestCoordinatorFIFOGrantOrder(t *testing.T) {
	c := newTestCoordinator(nil, nil)
	require.NoError(t, c.acquire(context.Background(), "alice"))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.acquire(context.Background(), "alice"))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			c.release("alice")
		}(i)
		time.Sleep(25 * time.Millisecond) // fix arrival order
	}

	c.release("alice")
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order, "waiters granted in arrival order")
	assert.Equal(t, 0, c.pending(), "idle lock entries are dropped")
}

func TestCoordinatorDistinctClientsDoNotBlock(t *testing.T) {
	c := newTestCoordinator(nil, nil)
	require.NoError(t, c.acquire(context.Background(), "alice"))
	defer c.release("alice")

	done := make(chan struct{})
	go func() {
		if err := c.acquire(context.Background(), "bob"); err == nil {
			c.release("bob")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob blocked behind alice's section")
	}
}

func TestCoordinatorCancelledWaiter(t *testing.T) {
	c := newTestCoordinator(nil, nil)
	require.NoError(t, c.acquire(context.Background(), "alice"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.acquire(ctx, "alice")
	}()

	time.Sleep(20 * time.Millisecond) // let the waiter queue up
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	// The holder can still release, and the entry is cleaned up.
	c.release("alice")
	assert.Equal(t, 0, c.pending())
}

func TestCoordinatorSerializesSameClient(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return &llm.CompletionResponse{Text: "ok"}, nil
		},
	}
	engine := newTestEngine(mock, calculatorRegistry(), EngineConfig{})

	store := newTestStore()
	defer store.Close()
	c := newTestCoordinator(engine, store)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), "alice", "turn")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight, "same-client turns never overlap")
}
