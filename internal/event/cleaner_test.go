package event

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestCleanRunsHooksInReverseOrder(t *testing.T) {
	c := NewCleaner()
	var order []string
	record := func(name string, err error) Callable {
		return CallableFunc(func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("hook %s invoked without deadline", name)
			}
			order = append(order, name)
			return err
		})
	}
	c.Add(record("database", nil))
	c.Add(record("connections", errors.New("close failed")))
	c.Add(CallableFunc(func(context.Context) error { panic("boom") }))
	c.Init(record("logger", nil))

	if failed := c.Clean(); failed != 2 {
		t.Errorf("expected 2 failures, got %d", failed)
	}
	want := []string{"connections", "database", "logger"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("got order %v, want %v", order, want)
	}

	c.Add(record("late", nil))
	if failed := c.Clean(); failed != 0 {
		t.Errorf("second clean should be a no-op")
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("hooks ran twice: %v", order)
	}
}

func TestCleanWithoutLogger(t *testing.T) {
	c := NewCleaner()
	called := false
	c.Add(CallableFunc(func(context.Context) error {
		called = true
		return nil
	}))
	c.Clean()
	if !called {
		t.Error("hook not invoked")
	}
}
