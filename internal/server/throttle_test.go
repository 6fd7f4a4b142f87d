package server

import (
	"context"
	"testing"
	"time"
)

// Without Redis the throttle must be a transparent no-op.
func TestThrottleNilIsNoOp(t *testing.T) {
	ctx := context.Background()

	var nilThrottle *LoginThrottle
	if nilThrottle.Blocked(ctx, "analyst", "127.0.0.1") {
		t.Fatal("nil throttle must never block")
	}
	nilThrottle.Fail(ctx, "analyst", "127.0.0.1")
	nilThrottle.Reset(ctx, "analyst", "127.0.0.1")

	empty := &LoginThrottle{Max: 5, Window: time.Minute}
	if empty.Blocked(ctx, "analyst", "127.0.0.1") {
		t.Fatal("throttle without a client must never block")
	}
	empty.Fail(ctx, "analyst", "127.0.0.1")
	empty.Reset(ctx, "analyst", "127.0.0.1")
}

func TestThrottleKeyIsolatesPrincipals(t *testing.T) {
	tr := &LoginThrottle{Max: 5, Window: time.Minute}
	a := tr.key("alice", "10.0.0.1")
	b := tr.key("bob", "10.0.0.1")
	c := tr.key("alice", "10.0.0.2")
	if a == b || a == c || b == c {
		t.Fatalf("throttle keys collide: %q %q %q", a, b, c)
	}
}
