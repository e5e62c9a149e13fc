package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair("a", nil); !r.IsOk() {
		t.Fatal("expected ok")
	}
	if r := FromPair("", errors.New("bad")); !r.IsErr() {
		t.Fatal("expected err")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	v, err := all.Unwrap()
	if err != nil || len(v) != 3 || v[2] != 3 {
		t.Fatalf("unexpected collect result: %v %v", v, err)
	}

	first := errors.New("first")
	mixed := Collect([]Result[int]{Ok(1), Err[int](first), Err[int](errors.New("second"))})
	v, err = mixed.Unwrap()
	if !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if v != nil {
		t.Fatalf("expected no partial values, got %v", v)
	}
}

// --- Slices ---

func TestMapFilter(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(got) != 3 || got[1] != "2" {
		t.Fatalf("Map = %v", got)
	}
	even := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	if len(even) != 2 || even[0] != 2 {
		t.Fatalf("Filter = %v", even)
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Fatalf("Chunk = %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk with n<=0 should be nil")
	}
}

// --- Parallel ---

func TestParMapResult(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	res := ParMapResult(context.Background(), items, 2, func(_ context.Context, i int) Result[int] {
		return Ok(i * i)
	})
	v, err := Collect(res).Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []int{1, 4, 9, 16, 25} {
		if v[i] != want {
			t.Fatalf("order not preserved: %v", v)
		}
	}
}

func TestParMapResultEmpty(t *testing.T) {
	res := ParMapResult(context.Background(), []int{}, 4, func(_ context.Context, i int) Result[int] { return Ok(i) })
	if len(res) != 0 {
		t.Fatalf("expected empty, got %d", len(res))
	}
}

func TestParMapResultCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	res := ParMapResult(ctx, []int{1, 2, 3}, 1, func(_ context.Context, i int) Result[int] {
		calls.Add(1)
		return Ok(i)
	})
	if calls.Load() != 0 {
		t.Fatalf("expected no calls after cancel, got %d", calls.Load())
	}
	if _, err := Collect(res).Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// --- Stages ---

func TestTracedStage(t *testing.T) {
	ok := TracedStage("ok", Stage[int, int](func(_ context.Context, i int) Result[int] { return Ok(i + 1) }))
	if v, err := ok.Run(context.Background(), 1); err != nil || v != 2 {
		t.Fatalf("got %d, %v", v, err)
	}
	bad := TracedStage("bad", Stage[int, int](func(context.Context, int) Result[int] {
		return Err[int](errors.New("x"))
	}))
	if _, err := bad.Run(context.Background(), 1); err == nil {
		t.Fatal("expected error to pass through span")
	}
}
