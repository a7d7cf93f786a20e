package proto

import "fmt"

// Version tracks the envelope layout expected by remote peers.
const Version = 1

// MessageType is the fixed numeric id of a replicated message. Ids follow
// the engine's packet enumeration, which starts right after the transport
// library's reserved range.
type MessageType uint16

const userPacketBase MessageType = 134

// System messages.
const (
	MsgUserMyID MessageType = userPacketBase + 2 + iota
	MsgUserDisconnected
	MsgChatMessage

	MsgHandshake
	MsgLoaded
	MsgGUIMessageBox

	MsgGameTime
	MsgGameWeather
)

// Player messages.
const (
	MsgPlayerBaseInfo MessageType = MsgGameWeather + 1 + iota
	MsgPlayerBehavior
	MsgPlayerChargen
	MsgPlayerActiveSkills
	MsgPlayerAnimFlags
	MsgPlayerAnimPlay
	MsgPlayerAttack
	MsgPlayerAttribute
	MsgPlayerBook
	MsgPlayerBounty
	MsgPlayerCellChange
	MsgPlayerCellState
	MsgPlayerCharClass
	MsgPlayerDeath
	MsgPlayerDisposition
	MsgPlayerEquipment
	MsgPlayerFaction
	MsgPlayerInteraction
	MsgPlayerInventory
	MsgPlayerJail
	MsgPlayerJournal
	MsgPlayerKillCount
	MsgPlayerLevel
	MsgPlayerMap
	MsgPlayerMiscellaneous
	MsgPlayerMomentum
	MsgPlayerPosition
	MsgPlayerQuickKeys
	MsgPlayerRegionAuthority
	MsgPlayerReputation
	MsgPlayerResurrect
	MsgPlayerRest
	MsgPlayerShapeshift
	MsgPlayerSkill
	MsgPlayerSpeech
	MsgPlayerSpellbook
	MsgPlayerStatsDynamic
	MsgPlayerTopic
)

// Actor messages.
const (
	MsgActorList MessageType = MsgPlayerTopic + 1 + iota
	MsgActorAuthority
	MsgActorTest
	MsgActorAI
	MsgActorAnimFlags
	MsgActorAnimPlay
	MsgActorAttack
	MsgActorCellChange
	MsgActorDeath
	MsgActorEquipment
	MsgActorInteraction
	MsgActorPosition
	MsgActorSpeech
	MsgActorStatsDynamic
)

// Object messages.
const (
	MsgObjectAnimPlay MessageType = MsgActorStatsDynamic + 1 + iota
	MsgObjectAttach
	MsgObjectCollision
	MsgObjectDelete
	MsgObjectLock
	MsgObjectMove
	MsgObjectPlace
	MsgObjectReset
	MsgObjectRotate
	MsgObjectScale
	MsgObjectSpawn
	MsgObjectState
	MsgObjectTrap
)

// World messages.
const (
	MsgCellCreate MessageType = MsgObjectTrap + 1 + iota
	MsgRecordDynamic

	MsgConsoleCommand
	MsgContainer
	MsgDoorDestination
	MsgDoorState
	MsgMusicPlay
	MsgVideoPlay
)

// Script messages.
const (
	MsgScriptLocalShort MessageType = MsgVideoPlay + 1 + iota
	MsgScriptLocalFloat
	MsgScriptMemberShort
	MsgScriptMemberFloat
	MsgScriptGlobalShort
	MsgScriptGlobalFloat
)

// Session setup messages.
const (
	MsgGameSettings MessageType = MsgScriptGlobalFloat + 1 + iota
	MsgGamePreinit
)

// Channel is an independently ordered delivery lane.
type Channel uint8

const (
	ChannelSystem Channel = iota
	ChannelActor
	ChannelPlayer
	ChannelObject
	ChannelMaster

	// ChannelCount is the number of lanes.
	ChannelCount = int(ChannelMaster) + 1
)

// Channels lists every channel in id order.
func Channels() []Channel {
	return []Channel{ChannelSystem, ChannelActor, ChannelPlayer, ChannelObject, ChannelMaster}
}

func (c Channel) String() string {
	switch c {
	case ChannelSystem:
		return "system"
	case ChannelActor:
		return "actor"
	case ChannelPlayer:
		return "player"
	case ChannelObject:
		return "object"
	case ChannelMaster:
		return "master"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Valid reports whether c names a known lane.
func (c Channel) Valid() bool {
	return int(c) < ChannelCount
}

// Category groups message ids the way the registry documents them.
type Category uint8

const (
	CategorySystem Category = iota
	CategoryPlayer
	CategoryActor
	CategoryObject
	CategoryWorld
	CategoryScript
	CategoryMaster
)

func (c Category) String() string {
	switch c {
	case CategorySystem:
		return "system"
	case CategoryPlayer:
		return "player"
	case CategoryActor:
		return "actor"
	case CategoryObject:
		return "object"
	case CategoryWorld:
		return "world"
	case CategoryScript:
		return "script"
	case CategoryMaster:
		return "master"
	default:
		return "unknown"
	}
}
