package attack

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/authority"
)

func localSession(ids ...string) authority.Session {
	table := authority.NewTable()
	for _, id := range ids {
		table.Assign(id, "peer-a")
	}
	return authority.NewSession("peer-a", table)
}

func TestTrackerWalksFullLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := localSession("player_1")
	tracker := NewTracker()

	rec, err := tracker.Begin(ctx, sess, "player_1", KindMelee)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if rec.Seq != 1 {
		t.Fatalf("expected first action seq 1, got %d", rec.Seq)
	}
	if tracker.State("player_1") != StatePending {
		t.Fatalf("expected pending, got %s", tracker.State("player_1"))
	}
	if !sess.Table().Pinned("player_1") {
		t.Fatalf("expected authority to be pinned during the action")
	}

	err = tracker.Resolve("player_1", func(r *Record) error {
		r.Success = true
		r.Target = "guard_01"
		r.HitPosition = &mgl32.Vec3{1, 2, 3}
		return nil
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	sent, err := tracker.Finalize("player_1")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !sent.ShouldSend || !sent.Success || sent.Target != "guard_01" {
		t.Fatalf("unexpected finalized record: %+v", sent)
	}
	if tracker.State("player_1") != StateSent {
		t.Fatalf("expected sent, got %s", tracker.State("player_1"))
	}

	if err := tracker.MarkSent("player_1"); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if tracker.State("player_1") != StateIdle {
		t.Fatalf("expected idle after send, got %s", tracker.State("player_1"))
	}
	if sess.Table().Pinned("player_1") {
		t.Fatalf("expected pin to be released")
	}

	next, err := tracker.Begin(ctx, sess, "player_1", KindMagic)
	if err != nil {
		t.Fatalf("second begin failed: %v", err)
	}
	if next.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", next.Seq)
	}
}

func TestTrackerRejectsSecondActionInFlight(t *testing.T) {
	ctx := context.Background()
	sess := localSession("player_1")
	tracker := NewTracker()

	if _, err := tracker.Begin(ctx, sess, "player_1", KindMelee); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := tracker.Begin(ctx, sess, "player_1", KindRanged); !errors.Is(err, ErrActionInFlight) {
		t.Fatalf("expected ErrActionInFlight, got %v", err)
	}
	if _, err := tracker.Finalize("player_1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected finalize before resolve to fail, got %v", err)
	}
}

func TestTrackerRejectsDedicatedOwner(t *testing.T) {
	sess := localSession()
	tracker := NewTracker()
	if _, err := tracker.Begin(context.Background(), sess, "guard_01", KindMelee); !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %v", err)
	}
	if tracker.State("guard_01") != StateIdle {
		t.Fatalf("expected slot to stay idle")
	}
}

func TestResolveFailureDegradesToNoEffect(t *testing.T) {
	ctx := context.Background()
	sess := localSession("player_1")
	tracker := NewTracker()
	if _, err := tracker.Begin(ctx, sess, "player_1", KindMelee); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	boom := errors.New("boom")
	err := tracker.Resolve("player_1", func(r *Record) error {
		r.Success = true
		r.Blocked = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected resolve error to surface, got %v", err)
	}
	if tracker.State("player_1") != StateResolved {
		t.Fatalf("expected resolved even after failure, got %s", tracker.State("player_1"))
	}
	rec, err := tracker.Finalize("player_1")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if rec.Success || rec.Blocked || !rec.ShouldSend {
		t.Fatalf("expected no-effect record, got %+v", rec)
	}
}

func TestObserveStoresCopies(t *testing.T) {
	tracker := NewTracker()
	pos := mgl32.Vec3{4, 5, 6}
	tracker.Observe(Record{Owner: "guard_01", Blocked: true, HitPosition: &pos})
	pos[0] = 99

	rec, ok := tracker.Reported("guard_01")
	if !ok || !rec.Blocked {
		t.Fatalf("expected reported block, got %+v %v", rec, ok)
	}
	if rec.HitPosition[0] != 4 {
		t.Fatalf("expected stored copy, got %v", rec.HitPosition)
	}

	tracker.Forget("guard_01")
	if _, ok := tracker.Reported("guard_01"); ok {
		t.Fatalf("expected forget to drop the report")
	}
}
