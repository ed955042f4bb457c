package signaling

import "encoding/json"

// Inbound message types (client to server).
const (
	TypeJoin             = "join"
	TypeFileInfo         = "file_info"
	TypeWebRTCSignal     = "webrtc_signal"
	TypeTransferProgress = "transfer_progress"
	TypeTransferComplete = "transfer_complete"
)

// Outbound message types (server to client).
const (
	TypeFileReady          = "file_ready"
	TypeReceiverJoined     = "receiver_joined"
	TypeReceiverLeft       = "receiver_left"
	TypeSenderDisconnected = "sender_disconnected"
	TypeProgressUpdate     = "transfer_progress_update"
	TypeError              = "error"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages. One envelope is
// shared both ways; unused fields are omitted on the wire.
//
// FileInfo, Signal and Progress are opaque blobs: the server relays
// them verbatim and never looks inside.
type Message struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"room_id,omitempty"`
	Role       Role            `json:"role,omitempty"`
	FileInfo   json.RawMessage `json:"file_info,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Signal     json.RawMessage `json:"signal,omitempty"`
	Progress   json.RawMessage `json:"progress,omitempty"`
	SenderID   string          `json:"sender_id,omitempty"`
	ReceiverID string          `json:"receiver_id,omitempty"`
	Error      string          `json:"message,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

// Outbound pairs a message with the connection it is addressed to.
// The router produces these; the hub delivers them.
type Outbound struct {
	To  string
	Msg *Message
}
