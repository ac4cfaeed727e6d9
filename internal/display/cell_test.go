package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCellCurrent(t *testing.T) {
	cell := NewCell(NewState())

	got := cell.Current()
	if got.ID != "" || len(got.Content) != 0 || got.SlideType != nil {
		t.Errorf("Current() = %+v, want initial state", got)
	}

	cell.Replace(State{ID: "s1", Content: map[string]string{"a": "b"}})
	got = cell.Current()
	if got.ID != "s1" || got.Content["a"] != "b" {
		t.Errorf("Current() = %+v after Replace", got)
	}
}

func TestSubscriptionSeesReplacement(t *testing.T) {
	cell := NewCell(NewState())
	sub := cell.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan State, 1)
	go func() {
		s, err := sub.Next(ctx)
		if err != nil {
			t.Errorf("Next() error = %v", err)
		}
		done <- s
	}()

	// Give the subscriber a moment to block.
	time.Sleep(10 * time.Millisecond)
	cell.Replace(State{ID: "new"})

	select {
	case s := <-done:
		if s.ID != "new" {
			t.Errorf("Next() = %+v, want ID new", s)
		}
	case <-ctx.Done():
		t.Fatal("Next() did not observe the replacement")
	}
}

func TestSubscriptionDoesNotReplayCurrent(t *testing.T) {
	cell := NewCell(State{ID: "existing"})
	sub := cell.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := sub.Next(ctx); err == nil {
		t.Error("Next() returned without a new replacement, want block until cancel")
	}
}

func TestSubscriptionCoalesces(t *testing.T) {
	cell := NewCell(NewState())
	sub := cell.Subscribe()

	for i := 0; i < 10; i++ {
		cell.Replace(State{ID: fmt.Sprintf("s%d", i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got.ID != "s9" {
		t.Errorf("Next() = %q, want latest s9 (intermediates skipped)", got.ID)
	}

	// No further value pending.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := sub.Next(ctx2); err == nil {
		t.Error("Next() returned a second value, want block")
	}
}

func TestNextHonoursContextCancellation(t *testing.T) {
	cell := NewCell(NewState())
	sub := cell.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := sub.Next(ctx); err != context.Canceled {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestConcurrentReplacersConverge(t *testing.T) {
	cell := NewCell(NewState())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cell.Replace(State{
					ID:        fmt.Sprintf("w%d-%d", w, i),
					Content:   map[string]string{"writer": fmt.Sprintf("%d", w)},
					SlideType: json.RawMessage(`"song"`),
				})
			}
		}(w)
	}
	wg.Wait()

	// Whatever landed last, every observer agrees on it.
	first := cell.Current()
	second := cell.Current()
	if first.ID != second.ID {
		t.Errorf("Current() unstable after writers stopped: %q vs %q", first.ID, second.ID)
	}

	sub := cell.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); err == nil {
		t.Error("Next() fired with no replacement after subscription")
	}
}

func TestManySubscribersAllWoken(t *testing.T) {
	cell := NewCell(NewState())

	const n = 8
	var wg sync.WaitGroup
	results := make(chan string, n)

	for i := 0; i < n; i++ {
		sub := cell.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s, err := sub.Next(ctx)
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			results <- s.ID
		}()
	}

	time.Sleep(10 * time.Millisecond)
	cell.Replace(State{ID: "broadcast"})
	wg.Wait()
	close(results)

	count := 0
	for id := range results {
		if id != "broadcast" {
			t.Errorf("subscriber saw %q, want broadcast", id)
		}
		count++
	}
	if count != n {
		t.Errorf("woken subscribers = %d, want %d", count, n)
	}
}
