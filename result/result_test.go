package result

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSafe_Success(t *testing.T) {
	r := Safe(func() (int, error) { return 42, nil })
	if !r.IsOk() {
		t.Fatalf("IsOk: got false, err %v", r.Err())
	}
	if r.Value() != 42 {
		t.Fatalf("Value: got %d, want 42", r.Value())
	}
	if r.Err() != nil {
		t.Fatalf("Err: got %v, want nil", r.Err())
	}
}

func TestSafe_Error(t *testing.T) {
	errBoom := errors.New("boom")
	r := Safe(func() (string, error) { return "ignored", errBoom })
	if r.IsOk() {
		t.Fatal("IsOk: got true for failing call")
	}
	if !errors.Is(r.Err(), errBoom) {
		t.Fatalf("Err: got %v, want %v", r.Err(), errBoom)
	}
	if r.Value() != "" {
		t.Fatalf("Value on failure: got %q, want zero", r.Value())
	}
}

func TestSafe_PanicWithError(t *testing.T) {
	errBoom := errors.New("boom")
	r := Safe(func() (int, error) { panic(errBoom) })
	if !errors.Is(r.Err(), errBoom) {
		t.Fatalf("Err: got %v, want %v", r.Err(), errBoom)
	}
}

func TestSafe_PanicWithNonError(t *testing.T) {
	r := Safe(func() (int, error) { panic(17) })
	if r.IsOk() {
		t.Fatal("IsOk: got true after panic")
	}
	if r.Err().Error() != "17" {
		t.Fatalf("message: got %q, want %q", r.Err().Error(), "17")
	}
}

func TestDo(t *testing.T) {
	if r := Do(func() error { return nil }); !r.IsOk() {
		t.Fatalf("Do nil: got %v", r.Err())
	}
	if r := Do(func() error { return errors.New("x") }); r.IsOk() {
		t.Fatal("Do error: got ok")
	}
}

func TestFail_NilError(t *testing.T) {
	r := Fail[int](nil)
	if !errors.Is(r.Err(), ErrUnknown) {
		t.Fatalf("Err: got %v, want ErrUnknown", r.Err())
	}
}

func TestWithTimeout_Completes(t *testing.T) {
	r := WithTimeout(context.Background(), time.Second, "slow", func(context.Context) (string, error) {
		return "done", nil
	})
	v, err := r.Unwrap()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if v != "done" {
		t.Fatalf("value: got %q, want %q", v, "done")
	}
}

func TestWithTimeout_OperationError(t *testing.T) {
	errOp := errors.New("op failed")
	r := WithTimeout(context.Background(), time.Second, "slow", func(context.Context) (int, error) {
		return 0, errOp
	})
	if !errors.Is(r.Err(), errOp) {
		t.Fatalf("err: got %v, want %v", r.Err(), errOp)
	}
	if errors.Is(r.Err(), ErrTimeout) {
		t.Fatal("operation error must not look like a timeout")
	}
}

func TestWithTimeout_NeverResolves(t *testing.T) {
	const wait = 50 * time.Millisecond
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	r := WithTimeout(context.Background(), wait, "wait for load timeout", func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	elapsed := time.Since(start)

	if !errors.Is(r.Err(), ErrTimeout) {
		t.Fatalf("err: got %v, want ErrTimeout", r.Err())
	}
	var te *TimeoutError
	if !errors.As(r.Err(), &te) {
		t.Fatalf("err type: got %T", r.Err())
	}
	if te.Message != "wait for load timeout" {
		t.Fatalf("message: got %q", te.Message)
	}
	if elapsed < wait {
		t.Fatalf("returned after %s, before the %s timeout", elapsed, wait)
	}
	if elapsed > 20*wait {
		t.Fatalf("returned after %s, far beyond the %s timeout", elapsed, wait)
	}
}

func TestWithTimeout_CancelsOperationContext(t *testing.T) {
	cancelled := make(chan struct{})
	WithTimeout(context.Background(), 10*time.Millisecond, "t", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled after the timeout")
	}
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := WithTimeout(ctx, time.Second, "t", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(r.Err(), context.Canceled) {
		t.Fatalf("err: got %v, want context.Canceled", r.Err())
	}
}
