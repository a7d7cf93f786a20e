package peer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/michaelt919/TES3MP/internal/attack"
	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/entity"
	"github.com/michaelt919/TES3MP/internal/mechanics"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/net/router"
	"github.com/michaelt919/TES3MP/internal/rng"
	"github.com/michaelt919/TES3MP/internal/telemetry"
	"github.com/michaelt919/TES3MP/logging"
	"github.com/michaelt919/TES3MP/logging/sinks"
)

// pipe delivers frames straight into the inbound lanes of the other
// routers.
type pipe struct {
	self  string
	mu    sync.RWMutex
	peers map[string]*router.Router
}

func (p *pipe) connect(id string, r *router.Router) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peers == nil {
		p.peers = make(map[string]*router.Router)
	}
	p.peers[id] = r
}

func (p *pipe) Deliver(ctx context.Context, target string, broadcast bool, frame []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, r := range p.peers {
		if broadcast && id == target {
			continue
		}
		if !broadcast && id != target {
			continue
		}
		if err := r.Receive(ctx, p.self, append([]byte(nil), frame...)); err != nil {
			return err
		}
	}
	return nil
}

type node struct {
	peer    *Peer
	router  *router.Router
	codec   *proto.Codec
	pipe    *pipe
	metrics *telemetry.Counters
	events  *sinks.MemorySink
	store   *entity.MemoryStore
}

func newNode(t *testing.T, ctx context.Context, id string, src rng.Source) *node {
	t.Helper()
	codec, err := proto.NewCodec(proto.DefaultRegistry())
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	t.Cleanup(codec.Close)
	n := &node{
		codec:   codec,
		pipe:    &pipe{self: id},
		metrics: telemetry.NewCounters(),
		events:  sinks.NewMemorySink(),
		store:   entity.NewMemoryStore(),
	}
	pub := logging.PublisherFunc(func(_ context.Context, e logging.Event) { _ = n.events.Write(e) })
	n.router, err = router.New(router.Config{Codec: codec, Transport: n.pipe, Publisher: pub, Metrics: n.metrics})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	sess := authority.NewSession(id, authority.NewTable(),
		authority.WithRandom(rng.Fixed(src)),
		authority.WithMonitor(NewMonitor(pub, n.metrics)),
	)
	n.peer, err = New(Config{
		Session:   sess,
		Store:     n.store,
		Catalog:   testCatalog(),
		Router:    n.router,
		Publisher: pub,
		Metrics:   n.metrics,
		Settings:  mechanics.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("peer: %v", err)
	}
	go func() { _ = n.router.Run(ctx) }()
	return n
}

func newPair(t *testing.T, src rng.Source) (*node, *node) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a := newNode(t, ctx, "peer-a", src)
	b := newNode(t, ctx, "peer-b", rng.NewScript(99))
	a.pipe.connect("peer-b", b.router)
	b.pipe.connect("peer-a", a.router)
	return a, b
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testCatalog() *entity.Catalog {
	return &entity.Catalog{
		Weapons: map[string]entity.WeaponRecord{
			"iron_longsword": {Skill: entity.SkillLongBlade},
		},
		Spells: map[string]entity.SpellRecord{
			"fire_bite": {Type: entity.SpellTypeSpell, Cost: 5, Effects: []entity.SpellEffect{{School: entity.SchoolDestruction, BaseCost: 5}}},
		},
	}
}

func fighter(id string, class entity.Class, pos mgl32.Vec3) entity.Entity {
	e := entity.Entity{ID: id, Class: class, Variant: entity.VariantNPC, Position: pos}
	e.Stats.Attributes[entity.AttributeAgility] = 50
	e.Stats.Attributes[entity.AttributeLuck] = 50
	e.Stats.Attributes[entity.AttributeWillpower] = 50
	e.Stats.Skills[entity.SkillLongBlade] = 50
	e.Stats.Skills[entity.SkillHandToHand] = 50
	e.Stats.Skills[entity.SkillDestruction] = 50
	e.Stats.Fatigue = entity.DynamicStat{Current: 100, Max: 100}
	e.Stats.Magicka = entity.DynamicStat{Current: 50, Max: 50}
	e.Equipment.Set(entity.SlotCarriedRight, entity.ItemStack{RefID: "iron_longsword", Count: 1, Condition: entity.ConditionUnset})
	return e
}

func spawnBoth(t *testing.T, a, b *node) {
	t.Helper()
	ctx := context.Background()
	if err := a.peer.Spawn(ctx, fighter("player_1", entity.ClassPlayer, mgl32.Vec3{0, 10, 0}), ""); err != nil {
		t.Fatalf("spawn player_1: %v", err)
	}
	if err := b.peer.Spawn(ctx, fighter("guard_01", entity.ClassActor, mgl32.Vec3{}), ""); err != nil {
		t.Fatalf("spawn guard_01: %v", err)
	}
	eventually(t, "spawn announcements", func() bool {
		_, okA := a.store.Get("guard_01")
		_, okB := b.store.Get("player_1")
		return okA && okB
	})
}

func TestMeleeIsResolvedOnceAndAppliedRemotely(t *testing.T) {
	src := rng.NewScript(0)
	a, b := newPair(t, src)
	spawnBoth(t, a, b)

	if got := b.peer.Session().Classify("player_1"); got != authority.Dedicated {
		t.Fatalf("expected player_1 dedicated on peer-b, got %v", got)
	}

	rec, err := a.peer.Melee(context.Background(), "player_1", "guard_01", 1)
	if err != nil {
		t.Fatalf("melee: %v", err)
	}
	if !rec.Success || rec.Target != "guard_01" || !rec.ShouldSend {
		t.Fatalf("unexpected record %+v", rec)
	}
	if state := a.peer.Tracker().State("player_1"); state != attack.StateIdle {
		t.Fatalf("expected slot back to idle, got %v", state)
	}

	eventually(t, "remote attack record", func() bool {
		_, ok := b.peer.Tracker().Reported("player_1")
		return ok
	})
	got, _ := b.peer.Tracker().Reported("player_1")
	if got.Success != rec.Success || got.Seq != rec.Seq || got.HitPosition == nil || *got.HitPosition != *rec.HitPosition {
		t.Fatalf("expected replicated record %+v, got %+v", rec, got)
	}
	if src.Draws() == 0 {
		t.Fatalf("expected peer-a to draw from its random source")
	}
	applied, _ := b.store.Get("player_1")
	if applied.Presentation.LastAttackKind != "melee" || !applied.Presentation.LastAttackSuccess {
		t.Fatalf("expected presentation applied on peer-b, got %+v", applied.Presentation)
	}
	if b.metrics.Value(attacksAppliedMetricKey) != 1 || a.metrics.Value(attacksSentMetricKey) != 1 {
		t.Fatalf("unexpected counters a=%v b=%v", a.metrics.Snapshot(), b.metrics.Snapshot())
	}
}

func TestDedicatedEntityCannotAct(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	_, err := b.peer.Melee(context.Background(), "player_1", "guard_01", 1)
	if !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %v", err)
	}
	if got := b.metrics.Value(violationMetricKey); got != 1 {
		t.Fatalf("expected one violation counted, got %d", got)
	}
	logged := b.events.OfType("network.authority_violation")
	if len(logged) != 1 || logged[0].Actor.ID != "player_1" {
		t.Fatalf("expected one authority violation event for player_1, got %+v", logged)
	}
}

func TestInboundRecordForLocalEntityIsRejected(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	env, err := a.codec.Encode(proto.MsgPlayerAttack, proto.ChannelPlayer, proto.AttackPayload{Owner: "player_1", Kind: "melee", Success: true}, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, _ := env.MarshalBinary()
	if err := a.router.Dispatch(context.Background(), "peer-b", frame); !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected inbound violation, got %v", err)
	}
	if _, ok := a.peer.Tracker().Reported("player_1"); ok {
		t.Fatalf("expected local state untouched")
	}
	if got := a.metrics.Value(violationMetricKey); got != 1 {
		t.Fatalf("expected one violation, got %d", got)
	}
	if got := a.metrics.Value(resyncMetricKey); got != 1 {
		t.Fatalf("expected the sender to be resynchronised, got %d", got)
	}
}

func TestObjectsCannotAttack(t *testing.T) {
	a, _ := newPair(t, rng.NewScript(0))
	if err := a.peer.Spawn(context.Background(), entity.Entity{ID: "chest_01", Class: entity.ClassObject}, ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := a.peer.Melee(context.Background(), "chest_01", "", 1); !errors.Is(err, ErrNotCombatant) {
		t.Fatalf("expected ErrNotCombatant, got %v", err)
	}
	if state := a.peer.Tracker().State("chest_01"); state != attack.StateIdle {
		t.Fatalf("expected no slot, got %v", state)
	}
}

func TestMissWithoutVictimIsStillSent(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	rec, err := a.peer.Melee(context.Background(), "player_1", "", 1)
	if err != nil {
		t.Fatalf("melee: %v", err)
	}
	if rec.Success || rec.Target != "" {
		t.Fatalf("expected no-effect record, got %+v", rec)
	}
	eventually(t, "no-effect record", func() bool {
		_, ok := b.peer.Tracker().Reported("player_1")
		return ok
	})
}

func TestCastReplicatesSpell(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	rec, err := a.peer.Cast(context.Background(), "player_1", "guard_01", "fire_bite")
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	eventually(t, "spell record", func() bool {
		got, ok := b.peer.Tracker().Reported("player_1")
		return ok && got.Kind == attack.KindMagic && got.Spell == "fire_bite" && got.Success == rec.Success
	})
}

func TestRangedWorldHitSetsPosition(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	hit := mgl32.Vec3{1.5, 2.25, -3}
	rec, err := a.peer.Ranged(context.Background(), RangedAction{
		Attacker:    "player_1",
		Weapon:      entity.ItemStack{RefID: "chitin_bow", Count: 1},
		Projectile:  entity.ItemStack{RefID: "iron_arrow", Count: 1},
		HitPosition: hit,
	})
	if err != nil {
		t.Fatalf("ranged: %v", err)
	}
	if !rec.Hit || rec.HitPosition == nil || *rec.HitPosition != hit {
		t.Fatalf("unexpected record %+v", rec)
	}
	eventually(t, "ranged record", func() bool {
		got, ok := b.peer.Tracker().Reported("player_1")
		return ok && got.HitPosition != nil && *got.HitPosition == hit
	})
}

func TestInventoryAndEquipmentReplicate(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)
	ctx := context.Background()
	sess := a.peer.Session()
	buf := a.peer.Buffer()

	if err := buf.AddItem(ctx, sess, "player_1", "gold_001", 30, entity.ConditionUnset); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := buf.Publish(ctx, sess, "player_1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	eventually(t, "inventory on peer-b", func() bool {
		e, _ := b.store.Get("player_1")
		return e.Inventory.Total("gold_001") == 30
	})

	if err := buf.EquipItem(ctx, sess, "player_1", entity.SlotHelmet, "iron_helm", 1, 50); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if _, err := buf.PublishEquipment(ctx, sess, "player_1"); err != nil {
		t.Fatalf("publish equipment: %v", err)
	}
	eventually(t, "equipment on peer-b", func() bool {
		e, _ := b.store.Get("player_1")
		return e.Equipment.Get(entity.SlotHelmet).RefID == "iron_helm"
	})
}

func TestActorInventoryUsesContainer(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)
	ctx := context.Background()

	if err := b.peer.Buffer().AddItem(ctx, b.peer.Session(), "guard_01", "iron_arrow", 12, entity.ConditionUnset); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := b.peer.Buffer().Publish(ctx, b.peer.Session(), "guard_01"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	eventually(t, "container delta on peer-a", func() bool {
		e, _ := a.store.Get("guard_01")
		return e.Inventory.Total("iron_arrow") == 12
	})
}

func TestTransferAuthority(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	ctx := context.Background()
	if err := a.peer.Spawn(ctx, fighter("rat_01", entity.ClassActor, mgl32.Vec3{}), ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	eventually(t, "rat on peer-b", func() bool {
		_, ok := b.store.Get("rat_01")
		return ok
	})
	if err := a.peer.TransferAuthority(ctx, "peer-b", "rat_01"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := a.peer.Session().Classify("rat_01"); got != authority.Dedicated {
		t.Fatalf("expected rat dedicated on peer-a, got %v", got)
	}
	eventually(t, "rat local on peer-b", func() bool {
		return b.peer.Session().Classify("rat_01") == authority.Local
	})

	// peer-a no longer owns the rat, so it cannot hand it on.
	if err := a.peer.TransferAuthority(ctx, "peer-a", "rat_01"); !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected violation, got %v", err)
	}
}

func TestDisconnectReleasesOwnership(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	a.peer.Disconnected(context.Background(), "peer-b", "closed")
	if _, owned := a.peer.Session().Table().Owner("guard_01"); owned {
		t.Fatalf("expected guard_01 released")
	}
	if _, ok := a.store.Get("guard_01"); !ok {
		t.Fatalf("expected guard_01 to stay in the store")
	}
	if got := a.peer.Session().Classify("guard_01"); got != authority.Dedicated {
		t.Fatalf("expected released entity to classify dedicated, got %v", got)
	}
}

func TestDespawnAnnouncesActorRemoval(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	if err := b.peer.Despawn(context.Background(), "guard_01"); err != nil {
		t.Fatalf("despawn: %v", err)
	}
	eventually(t, "guard removed on peer-a", func() bool {
		_, ok := a.store.Get("guard_01")
		return !ok
	})
}

func TestConnectedReplaysLocalEntities(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	ctx := context.Background()
	// Spawn before peer-b is reachable so only the replay can deliver it.
	a.pipe.mu.Lock()
	saved := a.pipe.peers
	a.pipe.peers = nil
	a.pipe.mu.Unlock()
	if err := a.peer.Spawn(ctx, fighter("player_1", entity.ClassPlayer, mgl32.Vec3{}), ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	a.pipe.mu.Lock()
	a.pipe.peers = saved
	a.pipe.mu.Unlock()

	if err := a.peer.Connected(ctx, "peer-b"); err != nil {
		t.Fatalf("connected: %v", err)
	}
	eventually(t, "replayed player with equipment", func() bool {
		e, ok := b.store.Get("player_1")
		return ok && e.Equipment.Get(entity.SlotCarriedRight).RefID == "iron_longsword"
	})
	if owner, _ := b.peer.Session().Table().Owner("player_1"); owner != "peer-a" {
		t.Fatalf("expected peer-a to own player_1 on peer-b, got %q", owner)
	}
}

func dispatchFrom(t *testing.T, n *node, from string, msgType proto.MessageType, channel proto.Channel, payload any) error {
	t.Helper()
	env, err := n.codec.Encode(msgType, channel, payload, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, err := env.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return n.router.Dispatch(context.Background(), from, frame)
}

func TestSpawnCannotTakeOverAnOwnedEntity(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	tests := []struct {
		name  string
		from  string
		owner string
	}{
		{"third peer claims itself", "peer-c", "peer-c"},
		{"third peer names the owner", "peer-c", "peer-b"},
		{"owner hands itself to a third peer", "peer-b", "peer-c"},
	}
	for i, tc := range tests {
		err := dispatchFrom(t, a, tc.from, proto.MsgActorList, proto.ChannelActor, proto.ActorListPayload{
			Action: "add",
			Actors: []proto.SpawnPayload{{ID: "guard_01", Class: "actor", Owner: tc.owner}},
		})
		if !errors.Is(err, authority.ErrAuthorityViolation) {
			t.Fatalf("%s: expected violation, got %v", tc.name, err)
		}
		if owner, _ := a.peer.Session().Table().Owner("guard_01"); owner != "peer-b" {
			t.Fatalf("%s: expected peer-b to keep guard_01, got %q", tc.name, owner)
		}
		if got := a.metrics.Value(violationMetricKey); got != uint64(i+1) {
			t.Fatalf("%s: expected %d violations, got %d", tc.name, i+1, got)
		}
	}

	// The owner refreshing its own announcement is accepted.
	err := dispatchFrom(t, a, "peer-b", proto.MsgActorList, proto.ChannelActor, proto.ActorListPayload{
		Action: "add",
		Actors: []proto.SpawnPayload{{ID: "guard_01", Class: "actor", Owner: "peer-b", Position: [3]float32{4, 5, 6}}},
	})
	if err != nil {
		t.Fatalf("expected owner refresh to apply, got %v", err)
	}
	if e, _ := a.store.Get("guard_01"); e.Position != (mgl32.Vec3{4, 5, 6}) {
		t.Fatalf("expected refreshed position, got %v", e.Position)
	}
}

func TestNonOwnerCannotDespawn(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	err := dispatchFrom(t, a, "peer-c", proto.MsgActorList, proto.ChannelActor, proto.ActorListPayload{
		Action: "remove",
		Actors: []proto.SpawnPayload{{ID: "guard_01", Class: "actor"}},
	})
	if !errors.Is(err, authority.ErrAuthorityViolation) {
		t.Fatalf("expected violation, got %v", err)
	}
	if _, ok := a.store.Get("guard_01"); !ok {
		t.Fatalf("expected guard_01 to stay in the store")
	}
}

func TestNonOwnerCannotWriteDedicatedState(t *testing.T) {
	a, b := newPair(t, rng.NewScript(0))
	spawnBoth(t, a, b)

	tests := []struct {
		name    string
		msgType proto.MessageType
		payload any
	}{
		{"inventory", proto.MsgContainer, proto.InventoryPayload{
			Entity: "guard_01",
			Deltas: []proto.DeltaPayload{{Action: "add", Items: []proto.ItemPayload{{RefID: "gold_001", Count: 999, Condition: -1}}}},
		}},
		{"equipment", proto.MsgActorEquipment, proto.EquipmentPayload{
			Entity: "guard_01",
			Slots:  []proto.SlotPayload{{Index: entity.SlotCarriedRight, RefID: "daedric_longsword", Count: 1, Condition: -1}},
		}},
		{"attack", proto.MsgActorAttack, proto.AttackPayload{Owner: "guard_01", Target: "player_1", Kind: "melee", Success: true, Blocked: true}},
	}
	for i, tc := range tests {
		err := dispatchFrom(t, a, "peer-c", tc.msgType, proto.ChannelActor, tc.payload)
		if !errors.Is(err, authority.ErrAuthorityViolation) {
			t.Fatalf("%s: expected violation, got %v", tc.name, err)
		}
		if got := a.metrics.Value(violationMetricKey); got != uint64(i+1) {
			t.Fatalf("%s: expected %d violations, got %d", tc.name, i+1, got)
		}
	}

	guard, _ := a.store.Get("guard_01")
	if guard.Inventory.Len() != 0 {
		t.Fatalf("expected inventory untouched, got %d stacks", guard.Inventory.Len())
	}
	if ref := guard.Equipment.Get(entity.SlotCarriedRight).RefID; ref != "" {
		t.Fatalf("expected equipment untouched, got %q", ref)
	}
	if _, ok := a.peer.Tracker().Reported("guard_01"); ok {
		t.Fatalf("expected no reported attack")
	}
	if e, _ := a.store.Get("player_1"); e.Presentation.Blocking {
		t.Fatalf("expected presentation untouched")
	}

	// The same inventory delta from the owner applies.
	err := dispatchFrom(t, a, "peer-b", proto.MsgContainer, proto.ChannelActor, tests[0].payload)
	if err != nil {
		t.Fatalf("expected owner delta to apply, got %v", err)
	}
	if e, _ := a.store.Get("guard_01"); e.Inventory.Total("gold_001") != 999 {
		t.Fatalf("expected 999 gold from the owner, got %d", e.Inventory.Total("gold_001"))
	}
}
