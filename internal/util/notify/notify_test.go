package notify

import "testing"

func TestGetSet(t *testing.T) {
	v := New(1)
	val, ch := v.Get()
	if val != 1 {
		t.Fatalf("got %d, want 1", val)
	}
	v.Set(2)
	select {
	case <-ch:
	default:
		t.Fatal("expected changed channel to be closed after Set")
	}
	val, _ = v.Get()
	if val != 2 {
		t.Fatalf("got %d, want 2", val)
	}
}

func TestUpdate(t *testing.T) {
	v := New(10)
	v.Update(func(cur int) int { return cur + 5 })
	val, _ := v.Get()
	if val != 15 {
		t.Fatalf("got %d, want 15", val)
	}
}
