package signaling

import (
	"errors"
	"log/slog"

	"github.com/beamdrop/beamdrop/internal/observe"
)

// Router holds the relay rules: given an inbound event and the current
// room/registry state, it decides which connections receive what. It
// carries no state of its own, so the rules are testable without a
// live transport.
type Router struct {
	rooms *RoomStore
	conns *Registry
	log   *slog.Logger
}

// NewRouter wires the relay rules to the shared room and connection
// tables.
func NewRouter(rooms *RoomStore, conns *Registry, log *slog.Logger) *Router {
	return &Router{rooms: rooms, conns: conns, log: log}
}

// Join processes a join event for the connection carried by msg and
// returns the resulting notifications:
//   - sender joining with file info: file_ready to every other member
//   - receiver joining: receiver_joined to the sender, if present
//   - receiver joining a room that already has file info: file_ready
//     to the joining receiver only
//
// A join against a missing or expired room answers the joiner with an
// explicit error event; this is the one failure that is never
// swallowed.
func (rt *Router) Join(connID string, msg *Message) []Outbound {
	role := msg.Role
	if role != RoleSender {
		role = RoleReceiver
	}

	displaced, err := rt.conns.Join(connID, msg.RoomID, role, msg.FileInfo)
	if errors.Is(err, ErrAlreadyJoined) {
		rt.log.Warn("join dropped: connection already in a room", "conn", connID, "room", msg.RoomID)
		return nil
	}
	if err != nil {
		rt.log.Info("join failed: room not found", "conn", connID, "room", msg.RoomID)
		return []Outbound{{To: connID, Msg: &Message{
			Type:  TypeError,
			Error: "Room not found or expired",
		}}}
	}
	if displaced != "" {
		// Current behavior: the displaced sender gets no notice.
		rt.log.Warn("sender slot replaced", "room", msg.RoomID, "old", displaced, "new", connID)
	}

	var out []Outbound
	if role == RoleSender {
		// Only a join that actually carries file info announces it; a
		// bare sender join must not re-broadcast a predecessor's
		// metadata as if it were fresh.
		if msg.FileInfo != nil {
			for _, member := range rt.rooms.Members(msg.RoomID) {
				if member == connID {
					continue
				}
				out = append(out, Outbound{To: member, Msg: &Message{
					Type:     TypeFileReady,
					FileInfo: msg.FileInfo,
				}})
			}
		}
		rt.log.Info("sender joined room", "room", msg.RoomID, "conn", connID)
		return out
	}

	if senderID := rt.rooms.SenderOf(msg.RoomID); senderID != "" {
		out = append(out, Outbound{To: senderID, Msg: &Message{
			Type:       TypeReceiverJoined,
			ReceiverID: connID,
		}})
	}
	if info := rt.rooms.FileInfoOf(msg.RoomID); info != nil {
		out = append(out, Outbound{To: connID, Msg: &Message{
			Type:     TypeFileReady,
			FileInfo: info,
		}})
	}
	rt.log.Info("receiver joined room", "room", msg.RoomID, "conn", connID)
	return out
}

// FileInfo overwrites the room's file metadata and announces it to
// every member except the originator. Unknown rooms are silently
// ignored; signaling is best-effort past the join boundary.
func (rt *Router) FileInfo(connID string, msg *Message) []Outbound {
	if err := rt.rooms.SetFileInfo(msg.RoomID, msg.FileInfo); err != nil {
		rt.log.Debug("file_info ignored: no such room", "room", msg.RoomID)
		return nil
	}

	var out []Outbound
	for _, member := range rt.rooms.Members(msg.RoomID) {
		if member == connID {
			continue
		}
		out = append(out, Outbound{To: member, Msg: &Message{
			Type:     TypeFileReady,
			FileInfo: msg.FileInfo,
		}})
	}
	rt.log.Info("file info broadcast", "room", msg.RoomID)
	return out
}

// Signal relays a negotiation payload point-to-point to the named
// target connection. This is the only event not routed through a
// room. A missing target id is a malformed event: logged and dropped,
// no response.
func (rt *Router) Signal(connID string, msg *Message) []Outbound {
	if msg.TargetID == "" {
		rt.log.Warn("webrtc_signal dropped: missing target_id", "conn", connID)
		return nil
	}
	return []Outbound{{To: msg.TargetID, Msg: &Message{
		Type:     TypeWebRTCSignal,
		SenderID: connID,
		Signal:   msg.Signal,
	}}}
}

// Progress relays a transfer progress value to every other member of
// the room. No validation: an unknown room simply fans out to nobody.
func (rt *Router) Progress(connID string, msg *Message) []Outbound {
	var out []Outbound
	for _, member := range rt.rooms.Members(msg.RoomID) {
		if member == connID {
			continue
		}
		out = append(out, Outbound{To: member, Msg: &Message{
			Type:     TypeProgressUpdate,
			Progress: msg.Progress,
		}})
	}
	return out
}

// Complete announces transfer completion to every member of the room,
// the originator included. This is the one inclusive broadcast.
func (rt *Router) Complete(connID string, msg *Message) []Outbound {
	var out []Outbound
	for _, member := range rt.rooms.Members(msg.RoomID) {
		out = append(out, Outbound{To: member, Msg: &Message{
			Type: TypeTransferComplete,
		}})
	}
	rt.log.Info("transfer complete", "room", msg.RoomID, "conn", connID)
	return out
}

// Disconnect removes the connection from the registry and its room,
// then notifies the peers that still care:
//   - a sender leaving: sender_disconnected to every remaining member
//   - a receiver leaving: receiver_left to the sender, if present
func (rt *Router) Disconnect(connID string) []Outbound {
	roomID, role, held, ok := rt.conns.Leave(connID)
	if !ok {
		return nil
	}

	var out []Outbound
	if role == RoleSender {
		if !held {
			// A displaced sender no longer speaks for the room; its
			// replacement holds the slot and the transfer lives on.
			rt.log.Debug("displaced sender disconnected", "room", roomID, "conn", connID)
			return nil
		}
		for _, member := range rt.rooms.Members(roomID) {
			out = append(out, Outbound{To: member, Msg: &Message{
				Type: TypeSenderDisconnected,
			}})
		}
		rt.log.Info("sender disconnected", "room", roomID, "conn", connID)
		return out
	}

	if senderID := rt.rooms.SenderOf(roomID); senderID != "" {
		out = append(out, Outbound{To: senderID, Msg: &Message{
			Type:       TypeReceiverLeft,
			ReceiverID: connID,
		}})
	}
	rt.log.Info("receiver left", "room", roomID, "conn", connID)
	return out
}

// Route dispatches one inbound event to its relay rule and returns
// the fan-out. Unknown event types are logged and dropped.
func (rt *Router) Route(connID string, msg *Message) []Outbound {
	observe.IncMessage(msg.Type)

	switch msg.Type {
	case TypeJoin:
		return rt.Join(connID, msg)
	case TypeFileInfo:
		return rt.FileInfo(connID, msg)
	case TypeWebRTCSignal:
		return rt.Signal(connID, msg)
	case TypeTransferProgress:
		return rt.Progress(connID, msg)
	case TypeTransferComplete:
		return rt.Complete(connID, msg)
	default:
		rt.log.Warn("unknown message type", "type", msg.Type, "conn", connID)
		return nil
	}
}
