package dedup

import (
	"testing"
	"time"
)

func TestShouldProcess(t *testing.T) {
	now := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10)
	d.now = func() time.Time { return now }

	if !d.ShouldProcess("a") {
		t.Fatal("first sighting rejected")
	}
	if d.ShouldProcess("a") {
		t.Fatal("repeat inside ttl accepted")
	}
	if !d.ShouldProcess("") {
		t.Fatal("empty id must always pass")
	}

	now = now.Add(2 * time.Minute)
	if !d.ShouldProcess("a") {
		t.Fatal("expired id rejected")
	}

	d.Forget("a")
	if !d.ShouldProcess("a") {
		t.Fatal("forgotten id rejected")
	}
}

func TestEvictsExpired(t *testing.T) {
	now := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	d := New(time.Second, 2)
	d.now = func() time.Time { return now }
	d.ShouldProcess("a")
	d.ShouldProcess("b")
	now = now.Add(time.Minute)
	d.ShouldProcess("c")
	if len(d.seen) > 2 {
		t.Fatalf("seen = %d entries, expired ids not evicted", len(d.seen))
	}
}
