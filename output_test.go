package taski

import "testing"

func TestOutputHub_AppendNoOpWhenInactive(t *testing.T) {
	h := newOutputHub()
	h.Append("A", "line1")
	if got := h.Read("A", 0); len(got) != 0 {
		t.Fatalf("Read = %v, want empty (capture inactive)", got)
	}
}

func TestOutputHub_AppendAndRead(t *testing.T) {
	h := newOutputHub()
	h.SetupCapture()
	h.Append("A", "one")
	h.Append("A", "two")
	h.Append("A", "three")

	if got := h.Read("A", 2); len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("Read(A,2) = %v, want [two three]", got)
	}
	if got := h.Read("A", 0); len(got) != 3 {
		t.Fatalf("Read(A,0) = %v, want all 3 lines", got)
	}

	h.TeardownCapture()
	h.Append("A", "four")
	if got := h.Read("A", 0); len(got) != 3 {
		t.Fatalf("Read after teardown = %v, want still 3 (append is a no-op)", got)
	}
}

func TestOutputHub_RingBufferBound(t *testing.T) {
	h := newOutputHub()
	h.limit = 2
	h.SetupCapture()
	h.Append("A", "one")
	h.Append("A", "two")
	h.Append("A", "three")

	got := h.Read("A", 0)
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("Read = %v, want the most recent 2 lines", got)
	}
}

func TestOutputHub_Tail_EmptyWhenNeverActivated(t *testing.T) {
	h := newOutputHub()
	if got := h.tail("A"); got == nil || len(got) != 0 {
		t.Fatalf("tail = %v, want a non-nil empty slice", got)
	}
}

func TestOutputHub_Tail_NilHub(t *testing.T) {
	var h *OutputHub
	if got := h.tail("A"); got == nil || len(got) != 0 {
		t.Fatalf("tail on nil hub = %v, want a non-nil empty slice", got)
	}
}
