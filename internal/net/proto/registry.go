package proto

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/michaelt919/TES3MP/internal/entity"
)

// ErrUnknownMessage reports a message id missing from the registry.
var ErrUnknownMessage = errors.New("unknown message type")

// Spec describes one registered message.
type Spec struct {
	Type     MessageType
	Name     string
	Category Category
	Channel  Channel
	// ByClass routes the message on the lane of the entity it describes
	// instead of Channel.
	ByClass bool

	payload reflect.Type
}

// HasPayload reports whether the message carries a typed payload. Messages
// without one are relayed as opaque bytes.
func (s Spec) HasPayload() bool {
	return s.payload != nil
}

// NewPayload allocates a pointer to the message's payload type, or nil.
func (s Spec) NewPayload() any {
	if s.payload == nil {
		return nil
	}
	return reflect.New(s.payload).Interface()
}

// PayloadType returns the payload's struct type, or nil.
func (s Spec) PayloadType() reflect.Type {
	return s.payload
}

// Registry is the closed set of message ids a peer understands.
type Registry struct {
	specs map[MessageType]Spec
	order []MessageType
}

// NewRegistry builds a registry, rejecting duplicate ids.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[MessageType]Spec, len(specs))}
	for _, spec := range specs {
		if _, exists := r.specs[spec.Type]; exists {
			return nil, fmt.Errorf("duplicate message id %d (%s)", spec.Type, spec.Name)
		}
		if !spec.Channel.Valid() {
			return nil, fmt.Errorf("message %s: invalid channel %d", spec.Name, spec.Channel)
		}
		r.specs[spec.Type] = spec
		r.order = append(r.order, spec.Type)
	}
	return r, nil
}

// Lookup returns the spec registered for t.
func (r *Registry) Lookup(t MessageType) (Spec, bool) {
	if r == nil {
		return Spec{}, false
	}
	spec, ok := r.specs[t]
	return spec, ok
}

// Specs lists every registered message in id order.
func (r *Registry) Specs() []Spec {
	if r == nil {
		return nil
	}
	out := make([]Spec, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.specs[t])
	}
	return out
}

// ChannelFor resolves the lane a message travels on. Class only matters for
// messages routed by entity class.
func (r *Registry) ChannelFor(t MessageType, class entity.Class) (Channel, error) {
	spec, ok := r.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("message %d: %w", t, ErrUnknownMessage)
	}
	if spec.ByClass {
		return ClassChannel(class), nil
	}
	return spec.Channel, nil
}

// ClassChannel maps an entity class onto its lane.
func ClassChannel(class entity.Class) Channel {
	switch class {
	case entity.ClassPlayer:
		return ChannelPlayer
	case entity.ClassActor:
		return ChannelActor
	default:
		return ChannelObject
	}
}

func (t MessageType) String() string {
	if spec, ok := DefaultRegistry().Lookup(t); ok {
		return spec.Name
	}
	return fmt.Sprintf("ID_%d", uint16(t))
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(defaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the registry of every engine message.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func categoryChannel(c Category) Channel {
	switch c {
	case CategorySystem:
		return ChannelSystem
	case CategoryPlayer:
		return ChannelPlayer
	case CategoryActor:
		return ChannelActor
	case CategoryMaster:
		return ChannelMaster
	default:
		return ChannelObject
	}
}

func msg(t MessageType, name string, category Category) Spec {
	return Spec{Type: t, Name: name, Category: category, Channel: categoryChannel(category)}
}

func (s Spec) with(payload any) Spec {
	s.payload = reflect.TypeOf(payload)
	return s
}

func (s Spec) byClass() Spec {
	s.ByClass = true
	return s
}

func defaultSpecs() []Spec {
	return []Spec{
		msg(MsgUserMyID, "ID_USER_MYID", CategorySystem),
		msg(MsgUserDisconnected, "ID_USER_DISCONNECTED", CategorySystem).with(DisconnectPayload{}),
		msg(MsgChatMessage, "ID_CHAT_MESSAGE", CategorySystem),
		msg(MsgHandshake, "ID_HANDSHAKE", CategorySystem).with(HandshakePayload{}),
		msg(MsgLoaded, "ID_LOADED", CategorySystem),
		msg(MsgGUIMessageBox, "ID_GUI_MESSAGEBOX", CategorySystem),
		msg(MsgGameTime, "ID_GAME_TIME", CategorySystem),
		msg(MsgGameWeather, "ID_GAME_WEATHER", CategorySystem),

		msg(MsgPlayerBaseInfo, "ID_PLAYER_BASEINFO", CategoryPlayer).with(SpawnPayload{}),
		msg(MsgPlayerBehavior, "ID_PLAYER_BEHAVIOR", CategoryPlayer),
		msg(MsgPlayerChargen, "ID_PLAYER_CHARGEN", CategoryPlayer),
		msg(MsgPlayerActiveSkills, "ID_PLAYER_ACTIVESKILLS", CategoryPlayer),
		msg(MsgPlayerAnimFlags, "ID_PLAYER_ANIM_FLAGS", CategoryPlayer),
		msg(MsgPlayerAnimPlay, "ID_PLAYER_ANIM_PLAY", CategoryPlayer),
		msg(MsgPlayerAttack, "ID_PLAYER_ATTACK", CategoryPlayer).with(AttackPayload{}),
		msg(MsgPlayerAttribute, "ID_PLAYER_ATTRIBUTE", CategoryPlayer),
		msg(MsgPlayerBook, "ID_PLAYER_BOOK", CategoryPlayer),
		msg(MsgPlayerBounty, "ID_PLAYER_BOUNTY", CategoryPlayer),
		msg(MsgPlayerCellChange, "ID_PLAYER_CELL_CHANGE", CategoryPlayer),
		msg(MsgPlayerCellState, "ID_PLAYER_CELL_STATE", CategoryPlayer),
		msg(MsgPlayerCharClass, "ID_PLAYER_CHARCLASS", CategoryPlayer),
		msg(MsgPlayerDeath, "ID_PLAYER_DEATH", CategoryPlayer),
		msg(MsgPlayerDisposition, "ID_PLAYER_DISPOSITION", CategoryPlayer),
		msg(MsgPlayerEquipment, "ID_PLAYER_EQUIPMENT", CategoryPlayer).with(EquipmentPayload{}),
		msg(MsgPlayerFaction, "ID_PLAYER_FACTION", CategoryPlayer),
		msg(MsgPlayerInteraction, "ID_PLAYER_INTERACTION", CategoryPlayer),
		msg(MsgPlayerInventory, "ID_PLAYER_INVENTORY", CategoryPlayer).with(InventoryPayload{}),
		msg(MsgPlayerJail, "ID_PLAYER_JAIL", CategoryPlayer),
		msg(MsgPlayerJournal, "ID_PLAYER_JOURNAL", CategoryPlayer),
		msg(MsgPlayerKillCount, "ID_PLAYER_KILL_COUNT", CategoryPlayer),
		msg(MsgPlayerLevel, "ID_PLAYER_LEVEL", CategoryPlayer),
		msg(MsgPlayerMap, "ID_PLAYER_MAP", CategoryPlayer),
		msg(MsgPlayerMiscellaneous, "ID_PLAYER_MISCELLANEOUS", CategoryPlayer),
		msg(MsgPlayerMomentum, "ID_PLAYER_MOMENTUM", CategoryPlayer),
		msg(MsgPlayerPosition, "ID_PLAYER_POSITION", CategoryPlayer),
		msg(MsgPlayerQuickKeys, "ID_PLAYER_QUICKKEYS", CategoryPlayer),
		msg(MsgPlayerRegionAuthority, "ID_PLAYER_REGION_AUTHORITY", CategoryPlayer),
		msg(MsgPlayerReputation, "ID_PLAYER_REPUTATION", CategoryPlayer),
		msg(MsgPlayerResurrect, "ID_PLAYER_RESURRECT", CategoryPlayer),
		msg(MsgPlayerRest, "ID_PLAYER_REST", CategoryPlayer),
		msg(MsgPlayerShapeshift, "ID_PLAYER_SHAPESHIFT", CategoryPlayer),
		msg(MsgPlayerSkill, "ID_PLAYER_SKILL", CategoryPlayer),
		msg(MsgPlayerSpeech, "ID_PLAYER_SPEECH", CategoryPlayer),
		msg(MsgPlayerSpellbook, "ID_PLAYER_SPELLBOOK", CategoryPlayer),
		msg(MsgPlayerStatsDynamic, "ID_PLAYER_STATS_DYNAMIC", CategoryPlayer),
		msg(MsgPlayerTopic, "ID_PLAYER_TOPIC", CategoryPlayer),

		msg(MsgActorList, "ID_ACTOR_LIST", CategoryActor).with(ActorListPayload{}),
		msg(MsgActorAuthority, "ID_ACTOR_AUTHORITY", CategoryActor).with(AuthorityPayload{}),
		msg(MsgActorTest, "ID_ACTOR_TEST", CategoryActor),
		msg(MsgActorAI, "ID_ACTOR_AI", CategoryActor),
		msg(MsgActorAnimFlags, "ID_ACTOR_ANIM_FLAGS", CategoryActor),
		msg(MsgActorAnimPlay, "ID_ACTOR_ANIM_PLAY", CategoryActor),
		msg(MsgActorAttack, "ID_ACTOR_ATTACK", CategoryActor).with(AttackPayload{}),
		msg(MsgActorCellChange, "ID_ACTOR_CELL_CHANGE", CategoryActor),
		msg(MsgActorDeath, "ID_ACTOR_DEATH", CategoryActor),
		msg(MsgActorEquipment, "ID_ACTOR_EQUIPMENT", CategoryActor).with(EquipmentPayload{}),
		msg(MsgActorInteraction, "ID_ACTOR_INTERACTION", CategoryActor),
		msg(MsgActorPosition, "ID_ACTOR_POSITION", CategoryActor),
		msg(MsgActorSpeech, "ID_ACTOR_SPEECH", CategoryActor),
		msg(MsgActorStatsDynamic, "ID_ACTOR_STATS_DYNAMIC", CategoryActor),

		msg(MsgObjectAnimPlay, "ID_OBJECT_ANIM_PLAY", CategoryObject),
		msg(MsgObjectAttach, "ID_OBJECT_ATTACH", CategoryObject),
		msg(MsgObjectCollision, "ID_OBJECT_COLLISION", CategoryObject),
		msg(MsgObjectDelete, "ID_OBJECT_DELETE", CategoryObject),
		msg(MsgObjectLock, "ID_OBJECT_LOCK", CategoryObject),
		msg(MsgObjectMove, "ID_OBJECT_MOVE", CategoryObject),
		msg(MsgObjectPlace, "ID_OBJECT_PLACE", CategoryObject),
		msg(MsgObjectReset, "ID_OBJECT_RESET", CategoryObject),
		msg(MsgObjectRotate, "ID_OBJECT_ROTATE", CategoryObject),
		msg(MsgObjectScale, "ID_OBJECT_SCALE", CategoryObject),
		msg(MsgObjectSpawn, "ID_OBJECT_SPAWN", CategoryObject),
		msg(MsgObjectState, "ID_OBJECT_STATE", CategoryObject),
		msg(MsgObjectTrap, "ID_OBJECT_TRAP", CategoryObject),

		msg(MsgCellCreate, "ID_CELL_CREATE", CategoryWorld),
		msg(MsgRecordDynamic, "ID_RECORD_DYNAMIC", CategoryWorld),
		msg(MsgConsoleCommand, "ID_CONSOLE_COMMAND", CategoryWorld),
		msg(MsgContainer, "ID_CONTAINER", CategoryWorld).with(InventoryPayload{}).byClass(),
		msg(MsgDoorDestination, "ID_DOOR_DESTINATION", CategoryWorld),
		msg(MsgDoorState, "ID_DOOR_STATE", CategoryWorld),
		msg(MsgMusicPlay, "ID_MUSIC_PLAY", CategoryWorld),
		msg(MsgVideoPlay, "ID_VIDEO_PLAY", CategoryWorld),

		msg(MsgScriptLocalShort, "ID_SCRIPT_LOCAL_SHORT", CategoryScript),
		msg(MsgScriptLocalFloat, "ID_SCRIPT_LOCAL_FLOAT", CategoryScript),
		msg(MsgScriptMemberShort, "ID_SCRIPT_MEMBER_SHORT", CategoryScript),
		msg(MsgScriptMemberFloat, "ID_SCRIPT_MEMBER_FLOAT", CategoryScript),
		msg(MsgScriptGlobalShort, "ID_SCRIPT_GLOBAL_SHORT", CategoryScript),
		msg(MsgScriptGlobalFloat, "ID_SCRIPT_GLOBAL_FLOAT", CategoryScript),

		msg(MsgGameSettings, "ID_GAME_SETTINGS", CategorySystem),
		msg(MsgGamePreinit, "ID_GAME_PREINIT", CategorySystem),
	}
}
