package keyedmutex

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLock_MutualExclusion(t *testing.T) {
	m := New()
	ctx := context.Background()

	var inCritical, conflicts int
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "k")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			mu.Lock()
			inCritical++
			if inCritical > 1 {
				conflicts++
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if conflicts != 0 {
		t.Errorf("Expected exclusive critical section, got %d conflicts", conflicts)
	}
	if m.Len() != 0 {
		t.Errorf("Expected idle keys to be dropped, %d entries remain", m.Len())
	}
}

func TestLock_DisjointKeysRunInParallel(t *testing.T) {
	m := New()
	unlockA, err := m.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock a failed: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Expected key b to be free while a is held: %v", err)
	}
	unlockB()
}

func TestLock_FIFOOrder(t *testing.T) {
	m := New()
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			u, err := m.Lock(ctx, "k")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			u()
		}(i)
		// Give each waiter time to enqueue before starting the next.
		time.Sleep(30 * time.Millisecond)
	}

	unlock()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected FIFO order [1 2 3], got %v", order)
	}
}

func TestLock_CancelWhileWaiting(t *testing.T) {
	m := New()
	unlock, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Lock(ctx, "k")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Canceled waiter did not return")
	}

	unlock()
	if m.Len() != 0 {
		t.Errorf("Expected idle keys to be dropped, %d entries remain", m.Len())
	}

	// The key must be usable again.
	u, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Relock failed: %v", err)
	}
	u()
}

func TestWithLock(t *testing.T) {
	m := New()
	ran := false
	err := m.WithLock(context.Background(), "k", func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock failed: %v", err)
	}
	if !ran {
		t.Error("Expected fn to run")
	}
	if m.Len() != 0 {
		t.Error("Expected the key to be released")
	}
}
