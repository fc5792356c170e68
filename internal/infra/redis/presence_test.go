package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestPresenceSetsAndExpiresKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	p := NewPresence(newClient(mr), 10*time.Second)

	if err := p.Touch(ctx, "s1", "c1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !mr.Exists("presence:s1:c1") {
		t.Fatalf("expected redis key to be set")
	}
	if alive, err := p.Alive(ctx, "s1", "c1"); err != nil || !alive {
		t.Fatalf("expected alive, got %v err=%v", alive, err)
	}

	mr.FastForward(11 * time.Second)
	if alive, _ := p.Alive(ctx, "s1", "c1"); alive {
		t.Fatalf("expected heartbeat to expire")
	}
}

func TestPresenceForgetClearsSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	p := NewPresence(newClient(mr), time.Minute)
	_ = p.Touch(ctx, "s1", "c1")
	_ = p.Touch(ctx, "s1", "c2")
	_ = p.Touch(ctx, "s2", "c3")

	if err := p.Forget(ctx, "s1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if mr.Exists("presence:s1:c1") || mr.Exists("presence:s1:c2") {
		t.Fatalf("expected session s1 markers removed")
	}
	if !mr.Exists("presence:s2:c3") {
		t.Fatalf("expected other sessions untouched")
	}
}
