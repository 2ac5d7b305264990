package hooks

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestBus_Trigger_PriorityOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for _, p := range []int{5, 0, 9} {
		p := p
		bus.On("saved", func(ctx context.Context, args ...any) error {
			order = append(order, p)
			return nil
		}, Options{Priority: p})
	}

	ok, err := bus.Trigger(context.Background(), "saved")
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if !ok {
		t.Fatal("Trigger reported no subscribers")
	}

	if !reflect.DeepEqual(order, []int{0, 5, 9}) {
		t.Errorf("subscribers ran in wrong order: %v", order)
	}
}

func TestBus_Trigger_TiesKeepRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		bus.On("saved", func(ctx context.Context, args ...any) error {
			order = append(order, name)
			return nil
		}, Options{})
	}

	if _, err := bus.Trigger(context.Background(), "saved"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	if !reflect.DeepEqual(order, []string{"first", "second", "third"}) {
		t.Errorf("subscribers ran in wrong order: %v", order)
	}
}

func TestBus_Trigger_NoSubscribers(t *testing.T) {
	bus := NewBus()

	ok, err := bus.Trigger(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if ok {
		t.Error("Trigger should report false without subscribers")
	}
}

func TestBus_Trigger_PassesArguments(t *testing.T) {
	bus := NewBus()

	var got []any
	bus.On("insertedContent", func(ctx context.Context, args ...any) error {
		got = args
		return nil
	}, Options{})

	if _, err := bus.Trigger(context.Background(), "insertedContent", int64(3), int64(7)); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	if !reflect.DeepEqual(got, []any{int64(3), int64(7)}) {
		t.Errorf("unexpected arguments: %v", got)
	}
}

func TestBus_Trigger_ErrorStopsChain(t *testing.T) {
	bus := NewBus()

	executed := map[string]bool{}
	expectedErr := errors.New("boom")

	bus.On("saved", func(ctx context.Context, args ...any) error {
		executed["first"] = true
		return nil
	}, Options{Priority: 1})
	bus.On("saved", func(ctx context.Context, args ...any) error {
		executed["second"] = true
		return expectedErr
	}, Options{Priority: 2})
	bus.On("saved", func(ctx context.Context, args ...any) error {
		executed["third"] = true
		return nil
	}, Options{Priority: 3})

	_, err := bus.Trigger(context.Background(), "saved")
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped subscriber error, got: %v", err)
	}

	if !executed["first"] || !executed["second"] {
		t.Error("subscribers before the failure should have run")
	}
	if executed["third"] {
		t.Error("subscriber after the failure should not have run")
	}
}

func TestBus_Once(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.On("saved", func(ctx context.Context, args ...any) error {
		calls++
		return nil
	}, Options{Once: true})

	ctx := context.Background()
	bus.Trigger(ctx, "saved")
	ok, _ := bus.Trigger(ctx, "saved")

	if calls != 1 {
		t.Errorf("once subscriber ran %d times", calls)
	}
	if ok {
		t.Error("second trigger should find no subscribers")
	}
}

func TestBus_Once_SurvivesAbortedChain(t *testing.T) {
	bus := NewBus()

	fail := true
	bus.On("saved", func(ctx context.Context, args ...any) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}, Options{Priority: -1})

	calls := 0
	bus.On("saved", func(ctx context.Context, args ...any) error {
		calls++
		return nil
	}, Options{Once: true})

	ctx := context.Background()
	if _, err := bus.Trigger(ctx, "saved"); err == nil {
		t.Fatal("expected the first subscriber to abort the chain")
	}
	if calls != 0 || bus.Count("saved") != 2 {
		t.Fatalf("once subscriber should stay registered until it runs, calls=%d count=%d", calls, bus.Count("saved"))
	}

	fail = false
	bus.Trigger(ctx, "saved")
	bus.Trigger(ctx, "saved")
	if calls != 1 {
		t.Errorf("once subscriber ran %d times", calls)
	}
	if bus.Count("saved") != 1 {
		t.Errorf("once subscriber should be gone after running, count=%d", bus.Count("saved"))
	}
}

func TestBus_Once_CancelledContext(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.On("saved", func(ctx context.Context, args ...any) error {
		calls++
		return nil
	}, Options{Once: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bus.Trigger(ctx, "saved"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !bus.HasAction("saved") {
		t.Fatal("once subscriber was dropped without running")
	}

	bus.Trigger(context.Background(), "saved")
	if calls != 1 || bus.HasAction("saved") {
		t.Errorf("once subscriber should run exactly once, calls=%d", calls)
	}
}

func TestBus_Once_ConcurrentTriggers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.On("saved", func(ctx context.Context, args ...any) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, Options{Once: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Trigger(context.Background(), "saved")
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("once subscriber ran %d times", calls)
	}
}

func TestBus_OnSameIDOverwrites(t *testing.T) {
	bus := NewBus()

	var got string
	bus.On("saved", func(ctx context.Context, args ...any) error {
		got = "old"
		return nil
	}, Options{ID: "endpoint"})
	bus.On("saved", func(ctx context.Context, args ...any) error {
		got = "new"
		return nil
	}, Options{ID: "endpoint"})

	if n := bus.Count("saved"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	bus.Trigger(context.Background(), "saved")
	if got != "new" {
		t.Errorf("expected overwritten subscriber to run, got %q", got)
	}
}

func TestBus_Off(t *testing.T) {
	bus := NewBus()

	id := bus.On("saved", func(ctx context.Context, args ...any) error {
		t.Error("removed subscriber should not run")
		return nil
	}, Options{})
	if id == "" {
		t.Fatal("On should return a generated ID")
	}

	bus.Off("saved", id)
	bus.Off("saved", "unknown")
	bus.Off("unknown", id)

	if bus.HasAction("saved") {
		t.Error("subscriber should have been removed")
	}
}

func TestBus_Apply_Passthrough(t *testing.T) {
	bus := NewBus()

	got, err := bus.Apply(context.Background(), "unregisteredFilterName", 42)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestBus_Apply_ThreadsValue(t *testing.T) {
	bus := NewBus()

	bus.AddFilter("title", func(ctx context.Context, value any, args ...any) (any, error) {
		return value.(string) + "-b", nil
	}, Options{Priority: 10})
	bus.AddFilter("title", func(ctx context.Context, value any, args ...any) (any, error) {
		return value.(string) + "-a", nil
	}, Options{Priority: 1})

	got, err := bus.Apply(context.Background(), "title", "x")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got != "x-a-b" {
		t.Errorf("expected x-a-b, got %v", got)
	}
}

func TestBus_Apply_ErrorKeepsLastValue(t *testing.T) {
	bus := NewBus()

	bus.AddFilter("n", func(ctx context.Context, value any, args ...any) (any, error) {
		return value.(int) + 1, nil
	}, Options{Priority: 1})
	bus.AddFilter("n", func(ctx context.Context, value any, args ...any) (any, error) {
		return nil, errors.New("bad filter")
	}, Options{Priority: 2})

	got, err := bus.Apply(context.Background(), "n", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != 2 {
		t.Errorf("expected the value before the failing filter, got %v", got)
	}
}

func TestBus_Apply_OnceFilter(t *testing.T) {
	bus := NewBus()

	bus.AddFilter("n", func(ctx context.Context, value any, args ...any) (any, error) {
		return value.(int) * 2, nil
	}, Options{Once: true})

	ctx := context.Background()
	first, _ := bus.Apply(ctx, "n", 2)
	second, _ := bus.Apply(ctx, "n", 2)

	if first != 4 || second != 2 {
		t.Errorf("once filter should apply exactly once, got %v then %v", first, second)
	}
	if bus.HasFilter("n") {
		t.Error("once filter should be gone")
	}
}

func TestBus_TriggerAsync(t *testing.T) {
	queue := NewAsyncQueue(2, nil)
	queue.Start()

	bus := NewBus(WithAsyncQueue(queue))

	var mu sync.Mutex
	var got []any
	bus.On("deletedContent", func(ctx context.Context, args ...any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args...)
		return nil
	}, Options{})
	bus.On("deletedContent", func(ctx context.Context, args ...any) error {
		return errors.New("ignored")
	}, Options{Priority: 1})

	bus.TriggerAsync("deletedContent", "a")
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(got, []any{"a"}) {
		t.Errorf("async chain did not run: %v", got)
	}
}

func TestBus_TriggerAsync_WithoutQueueRunsInline(t *testing.T) {
	bus := NewBus()

	ran := false
	bus.On("saved", func(ctx context.Context, args ...any) error {
		ran = true
		return nil
	}, Options{})

	bus.TriggerAsync("saved")
	if !ran {
		t.Error("chain should run inline without a queue")
	}
}

func TestAsyncQueue_EnqueueBeforeStart(t *testing.T) {
	queue := NewAsyncQueue(1, nil)

	err := queue.Enqueue(AsyncTask{Name: "x", Fn: func(ctx context.Context) error { return nil }})
	if !errors.Is(err, ErrQueueNotStarted) {
		t.Errorf("expected ErrQueueNotStarted, got %v", err)
	}
}

func TestAsyncQueue_EnqueueAfterShutdown(t *testing.T) {
	queue := NewAsyncQueue(1, nil)
	queue.Start()
	queue.Shutdown()

	err := queue.Enqueue(AsyncTask{Name: "x", Fn: func(ctx context.Context) error { return nil }})
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestAsyncQueue_RecoversPanics(t *testing.T) {
	queue := NewAsyncQueue(1, nil)
	queue.Start()

	done := make(chan struct{})
	queue.Enqueue(AsyncTask{Name: "panics", Fn: func(ctx context.Context) error {
		panic("boom")
	}})
	queue.Enqueue(AsyncTask{Name: "after", Fn: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	queue.Shutdown()
}

func TestAsyncQueue_ShutdownReleasesBlockedProducers(t *testing.T) {
	queue := NewAsyncQueue(1, nil)
	queue.Start()

	noop := AsyncTask{Name: "noop", Fn: func(ctx context.Context) error { return nil }}
	started := make(chan struct{})
	release := make(chan struct{})
	queue.Enqueue(AsyncTask{Name: "hold", Fn: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	for i := 0; i < cap(queue.tasks); i++ {
		if err := queue.Enqueue(noop); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	blocked := make(chan error, 1)
	go func() { blocked <- queue.Enqueue(noop) }()

	stopped := make(chan struct{})
	go func() {
		queue.Shutdown()
		close(stopped)
	}()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer stayed blocked after Shutdown")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not drain the queue")
	}
}
