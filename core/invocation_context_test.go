package core

import (
	"context"
	"reflect"
	"testing"
)

func newInvocationContextForTest(args map[string]any) *InvocationContext {
	return NewInvocationContext(context.Background(), "inv-x", "sess-x", "", "Agent1", args, nil, nil, nil)
}

func TestInvocationContext_Defaults(t *testing.T) {
	ic := newInvocationContextForTest(nil)
	if ic.Args == nil {
		t.Fatal("nil args should be replaced")
	}
	if ic.Logger() == nil {
		t.Fatal("nil logger should be replaced with NoOpLogger")
	}
	ic.LogInfo("no panic")
}

func TestInvocationContext_ArgHelpers(t *testing.T) {
	ic := newInvocationContextForTest(map[string]any{
		"content":   "  hello  ",
		"empty":     "",
		"n_float":   float64(7),
		"n_string":  "12",
		"flag":      true,
		"flag_str":  "TRUE",
		"tags_any":  []any{"a", " ", "b", 3},
		"tags_csv":  "x, y,,z",
		"nil_value": nil,
	})

	if got := ic.StringArg("content", "d"); got != "hello" {
		t.Errorf("StringArg = %q", got)
	}
	if got := ic.StringArg("empty", "d"); got != "d" {
		t.Errorf("StringArg empty = %q", got)
	}
	if got := ic.StringArg("nil_value", "d"); got != "d" {
		t.Errorf("StringArg nil = %q", got)
	}
	if got := ic.IntArg("n_float", 0); got != 7 {
		t.Errorf("IntArg float = %d", got)
	}
	if got := ic.IntArg("n_string", 0); got != 12 {
		t.Errorf("IntArg string = %d", got)
	}
	if got := ic.IntArg("missing", 10); got != 10 {
		t.Errorf("IntArg default = %d", got)
	}
	if !ic.BoolArg("flag", false) || !ic.BoolArg("flag_str", false) || ic.BoolArg("missing", false) {
		t.Error("BoolArg mismatch")
	}
	if got := ic.StringSliceArg("tags_any"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("StringSliceArg any = %v", got)
	}
	if got := ic.StringSliceArg("tags_csv"); got != nil {
		t.Errorf("StringSliceArg csv = %v, want nil", got)
	}
	if !ic.HasArg("nil_value") || ic.HasArg("missing") {
		t.Error("HasArg mismatch")
	}
}

func TestInvocationContext_WithArgsIsolation(t *testing.T) {
	ic := newInvocationContextForTest(map[string]any{"a": 1})
	other := ic.WithArgs(map[string]any{"b": 2})
	if ic.HasArg("b") || !other.HasArg("b") || other.HasArg("a") {
		t.Fatal("WithArgs should bind a distinct argument map")
	}
	if other.InvocationID != ic.InvocationID {
		t.Fatal("WithArgs should keep identity")
	}
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(); err == nil {
		t.Fatal("third call should be refused")
	}
	if l.Count() != 2 || l.Remaining() != 0 {
		t.Fatalf("count=%d remaining=%d", l.Count(), l.Remaining())
	}
	if NewModelLimiter(0).Remaining() != -1 {
		t.Fatal("zero max means unlimited")
	}
}
