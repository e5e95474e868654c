package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestChange_Key(t *testing.T) {
	tests := []struct {
		change Change
		want   string
	}{
		{Change{Kind: KindOutput, Target: "axisX"}, "output/axisX"},
		{Change{Kind: KindStylesheets}, "stylesheets/"},
		{Change{Kind: KindControl, Target: "jogButton"}, "control/jogButton"},
	}

	for _, tt := range tests {
		if got := tt.change.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Change{Kind: KindOutput, Target: "tension", Value: "5.25"})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Target != "tension" {
		t.Errorf("GetAll()[0].Target = %v, want %v", all[0].Target, "tension")
	}
	if all[0].Value != "5.25" {
		t.Errorf("GetAll()[0].Value = %v, want %v", all[0].Value, "5.25")
	}
	if all[0].At.IsZero() {
		t.Error("Update() should stamp a zero At")
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Change{Kind: KindControl, Target: "start", Value: true})
	store.Update(Change{Kind: KindControl, Target: "start", Value: false})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Value != false {
		t.Errorf("GetAll()[0].Value = %v, want %v", all[0].Value, false)
	}
}

func TestMemoryStore_SameTargetDifferentKinds(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Change{Kind: KindControl, Target: "speed", Value: true})
	store.Update(Change{Kind: KindInvalid, Target: "speed", Value: true})
	store.Update(Change{Kind: KindOutput, Target: "speed", Value: "10"})

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() = %v items, want 3", len(all))
	}
	// ordered by key
	wantKinds := []Kind{KindControl, KindInvalid, KindOutput}
	for i, k := range wantKinds {
		if all[i].Kind != k {
			t.Errorf("GetAll()[%d].Kind = %v, want %v", i, all[i].Kind, k)
		}
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(Change{Kind: KindOutput, Target: "Test", Value: "1"})
	}()

	select {
	case change := <-ch:
		if change.Target != "Test" {
			t.Errorf("received Target = %v, want %v", change.Target, "Test")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// update should fanout to all subscribers
	go func() {
		store.Update(Change{Kind: KindOutput, Target: "Test"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	// channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// create a subscriber but don't read from it
	_ = store.Subscribe()

	done := make(chan bool)
	go func() {
		for i := 0; i < 200; i++ {
			store.Update(Change{Kind: KindOutput, Target: "Test", Value: i})
		}
		done <- true
	}()

	select {
	case <-done:
		// expected - updates completed without blocking
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_OverflowClosesSubscriber(t *testing.T) {
	store := NewMemoryStore()
	slow := store.Subscribe()

	const burst = SubscriberBuffer + 50
	for i := 0; i < burst; i++ {
		store.Update(Change{Kind: KindOutput, Target: fmt.Sprintf("cell%03d", i), Value: i})
	}

	received := 0
	for range slow {
		received++
	}
	if received != SubscriberBuffer {
		t.Errorf("received %d changes before close, want %d", received, SubscriberBuffer)
	}

	// the snapshot still holds every change
	if got := len(store.GetAll()); got != burst {
		t.Errorf("GetAll() = %d items, want %d", got, burst)
	}

	// later updates reach new subscribers, and unsubscribing the cut-off
	// channel is a no-op
	store.Unsubscribe(slow)
	fresh := store.Subscribe()
	defer store.Unsubscribe(fresh)
	store.Update(Change{Kind: KindOutput, Target: "after", Value: 1})
	select {
	case c := <-fresh:
		if c.Target != "after" {
			t.Errorf("fresh subscriber got %q, want after", c.Target)
		}
	case <-time.After(time.Second):
		t.Error("fresh subscriber got nothing")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(Change{Kind: KindOutput, Target: "axis", Value: j})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
