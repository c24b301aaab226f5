package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreFixedWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	limit := Limit{Count: 3}

	for i := 0; i < 3; i++ {
		d, err := s.Allow(ctx, "proj_1", "runtime", limit)
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d, err := s.Allow(ctx, "proj_1", "runtime", limit)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth request in the window should be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > Window {
		t.Fatalf("RetryAfter out of range: %v", d.RetryAfter)
	}
}

func TestMemoryStoreBucketsAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	limit := Limit{Count: 1}

	if d, _ := s.Allow(ctx, "proj_1", "runtime", limit); !d.Allowed {
		t.Fatal("first runtime request should pass")
	}
	if d, _ := s.Allow(ctx, "proj_1", "runtime", limit); d.Allowed {
		t.Fatal("second runtime request should be denied")
	}
	if d, _ := s.Allow(ctx, "proj_1", "management", limit); !d.Allowed {
		t.Fatal("management bucket must not share the runtime counter")
	}
	if d, _ := s.Allow(ctx, "proj_2", "runtime", limit); !d.Allowed {
		t.Fatal("another tenant must not share the counter")
	}
}

func TestBurstExtendsTheCeiling(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	limit := Limit{Count: 2, Burst: 2}

	for i := 0; i < 4; i++ {
		if d, _ := s.Allow(ctx, "proj_1", "runtime", limit); !d.Allowed {
			t.Fatalf("request %d within count+burst should pass", i+1)
		}
	}
	if d, _ := s.Allow(ctx, "proj_1", "runtime", limit); d.Allowed {
		t.Fatal("request beyond count+burst should be denied")
	}
}

func TestKeyChangesPerWindow(t *testing.T) {
	base := time.Unix(1_700_000_040, 0)
	k1 := Key("p", "runtime", base)
	k2 := Key("p", "runtime", base.Add(Window))
	if k1 == k2 {
		t.Fatal("keys for consecutive windows must differ")
	}
	k3 := Key("p", "runtime", base.Add(5*time.Second))
	if k1 != k3 {
		t.Fatal("keys within one window must match")
	}
}
