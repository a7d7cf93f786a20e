package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/michaelt919/TES3MP/internal/authority"
	"github.com/michaelt919/TES3MP/internal/net/proto"
	"github.com/michaelt919/TES3MP/internal/scriptapi"
	"github.com/michaelt919/TES3MP/internal/telemetry"
)

// PeerState is the local peer as seen by the diagnostics endpoint.
type PeerState interface {
	ID() string
	Ownership() []authority.Ownership
}

// PeerTransport accepts peer connections on /ws.
type PeerTransport interface {
	Handle(w nethttp.ResponseWriter, r *nethttp.Request)
	Peers() []string
}

// Backlogger reports queued frames per lane.
type Backlogger interface {
	Backlog() (out, in map[proto.Channel]int)
}

type HTTPHandlerConfig struct {
	Peer      PeerState
	Items     *scriptapi.Items
	Transport PeerTransport
	Router    Backlogger
	Counters  *telemetry.Counters
	Logger    *log.Logger
	// EnablePprof mounts net/http/pprof under /debug/pprof/.
	EnablePprof bool
}

type ownershipEntry struct {
	Entity string `json:"entity"`
	Owner  string `json:"owner"`
}

type backlogSnapshot struct {
	Outbound map[string]int `json:"outbound"`
	Inbound  map[string]int `json:"inbound"`
}

type itemSnapshot struct {
	RefID     string `json:"refId"`
	Count     uint32 `json:"count"`
	Condition int32  `json:"condition"`
}

type equippedSnapshot struct {
	Slot int `json:"slot"`
	itemSnapshot
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			Peer       string            `json:"peer,omitempty"`
			Peers      []string          `json:"peers"`
			Ownership  []ownershipEntry  `json:"ownership"`
			Backlog    *backlogSnapshot  `json:"backlog,omitempty"`
			Counters   map[string]uint64 `json:"counters"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Peers:      []string{},
			Ownership:  []ownershipEntry{},
			Counters:   cfg.Counters.Snapshot(),
		}
		if cfg.Peer != nil {
			payload.Peer = cfg.Peer.ID()
			for _, o := range cfg.Peer.Ownership() {
				payload.Ownership = append(payload.Ownership, ownershipEntry{Entity: o.Entity, Owner: o.Owner})
			}
		}
		if cfg.Transport != nil {
			payload.Peers = append(payload.Peers, cfg.Transport.Peers()...)
		}
		if cfg.Router != nil {
			out, in := cfg.Router.Backlog()
			payload.Backlog = &backlogSnapshot{Outbound: laneNames(out), Inbound: laneNames(in)}
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/entities/{id}/items", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Items == nil {
			httpError(w, "items unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		id := r.PathValue("id")
		items := cfg.Items

		payload := struct {
			Entity    string             `json:"entity"`
			Inventory []itemSnapshot     `json:"inventory"`
			Equipment []equippedSnapshot `json:"equipment"`
		}{
			Entity:    id,
			Inventory: []itemSnapshot{},
			Equipment: []equippedSnapshot{},
		}
		for i := 0; i < items.GetInventorySize(id); i++ {
			payload.Inventory = append(payload.Inventory, itemSnapshot{
				RefID:     items.GetInventoryItemId(id, i),
				Count:     items.GetInventoryItemCount(id, i),
				Condition: items.GetInventoryItemHealth(id, i),
			})
		}
		for slot := 0; slot < items.GetEquipmentSize(); slot++ {
			ref := items.GetEquipmentItemId(id, slot)
			if ref == "" {
				continue
			}
			payload.Equipment = append(payload.Equipment, equippedSnapshot{
				Slot: slot,
				itemSnapshot: itemSnapshot{
					RefID:     ref,
					Count:     items.GetEquipmentItemCount(id, slot),
					Condition: items.GetEquipmentItemHealth(id, slot),
				},
			})
		}
		writeJSON(w, logger, payload)
	})

	if cfg.Transport != nil {
		mux.HandleFunc("/ws", cfg.Transport.Handle)
	}

	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func laneNames(counts map[proto.Channel]int) map[string]int {
	out := make(map[string]int, len(counts))
	for ch, n := range counts {
		out[ch.String()] = n
	}
	return out
}

func writeJSON(w nethttp.ResponseWriter, logger *log.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
