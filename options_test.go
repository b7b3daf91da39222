package taski

import "testing"

func TestResolveConfig_RejectsNonPositiveWorkers(t *testing.T) {
	if _, err := resolveConfig([]Option{WithWorkers(0)}); err == nil {
		t.Fatal("resolveConfig accepted workers=0")
	}
	if _, err := resolveConfig([]Option{WithWorkers(-1)}); err == nil {
		t.Fatal("resolveConfig accepted negative workers")
	}
}

func TestResolveConfig_DefaultsToNumCPU(t *testing.T) {
	cfg, err := resolveConfig(nil)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.workers <= 0 {
		t.Fatalf("default workers = %d, want > 0", cfg.workers)
	}
}

func TestArgs_ReservedWorkersKeyHidden(t *testing.T) {
	args := NewArgs(map[string]any{"_workers": 4, "name": "demo"})
	if args.Has("_workers") {
		t.Fatal("_workers should be hidden from user-visible lookups")
	}
	if v, ok := args.Get("name"); !ok || v != "demo" {
		t.Fatalf("Get(name) = %v,%v, want demo,true", v, ok)
	}
	if got := args.GetOr("missing", "fallback"); got != "fallback" {
		t.Fatalf("GetOr(missing) = %v, want fallback", got)
	}
	if !args.Contains("name") {
		t.Fatal("Contains(name) should be true")
	}
}
