package peer

import (
	"fmt"
	"testing"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
)

func TestResyncPolicyTripsOnViolationRate(t *testing.T) {
	policy := newResyncPolicy()
	for i := 0; i < 250; i++ {
		policy.noteMessage()
	}
	policy.noteViolation("ID_ACTOR_ATTACK")
	if _, ok := policy.consume(); ok {
		t.Fatalf("expected one violation in 250 messages to stay below the threshold")
	}
	policy.noteViolation("ID_ACTOR_ATTACK")
	policy.noteViolation("ID_PLAYER_INVENTORY")
	signal, ok := policy.consume()
	if !ok {
		t.Fatalf("expected policy to trip at three violations in 250 messages")
	}
	if signal.Violations != 3 || signal.Messages != 250 || len(signal.Reasons) != 3 {
		t.Fatalf("unexpected signal %+v", signal)
	}
	if _, ok := policy.consume(); ok {
		t.Fatalf("expected consume to reset the policy")
	}
}

func TestResyncPolicyCapsReasons(t *testing.T) {
	policy := newResyncPolicy()
	for i := 0; i < resyncReasonLimit+4; i++ {
		policy.noteViolation(fmt.Sprintf("reason-%d", i))
	}
	signal, ok := policy.consume()
	if !ok {
		t.Fatalf("expected policy to trip")
	}
	if len(signal.Reasons) != resyncReasonLimit {
		t.Fatalf("expected %d reasons, got %d", resyncReasonLimit, len(signal.Reasons))
	}
}

func TestResyncsArePerRemote(t *testing.T) {
	var r resyncs
	msg := router.Inbound{Envelope: proto.Envelope{Type: proto.MsgActorAttack}}
	for i := 0; i < 200; i++ {
		r.note("peer-b", msg, nil)
	}
	if _, ok := r.note("peer-c", msg, authority.ErrAuthorityViolation); !ok {
		t.Fatalf("expected the first message of peer-c to trip its own policy")
	}
	if _, ok := r.note("peer-b", msg, authority.ErrAuthorityViolation); ok {
		t.Fatalf("expected peer-b to stay below the threshold")
	}
	r.forget("peer-b")
	if _, ok := r.note("peer-b", msg, authority.ErrAuthorityViolation); !ok {
		t.Fatalf("expected a forgotten remote to start over")
	}
}
