// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package hubproto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chatpresence/internal/models"
)

// RecordSeparator terminates every JSON record on the wire.
const RecordSeparator byte = 0x1e

// ProtocolName and ProtocolVersion are announced in the handshake.
const (
	ProtocolName    = "json"
	ProtocolVersion = 1
)

// Hub method names used by the presence subsystem.
const (
	// TargetChangeMyStatus is the client-to-server call announcing the
	// signed-in user's own status.
	TargetChangeMyStatus = "ChangeMyStatus"
	// TargetUserStatusChanged is the server-to-client event carrying
	// (userId, presenceStatus).
	TargetUserStatusChanged = "UserStatusChanged"
)

// MessageType is the "type" discriminator of a hub message.
type MessageType int

const (
	TypeInvocation       MessageType = 1
	TypeStreamItem       MessageType = 2
	TypeCompletion       MessageType = 3
	TypeStreamInvocation MessageType = 4
	TypeCancelInvocation MessageType = 5
	TypePing             MessageType = 6
	TypeClose            MessageType = 7
)

// String returns a metrics-friendly name for the message type.
func (t MessageType) String() string {
	switch t {
	case TypeInvocation:
		return "invocation"
	case TypeStreamItem:
		return "stream_item"
	case TypeCompletion:
		return "completion"
	case TypeStreamInvocation:
		return "stream_invocation"
	case TypeCancelInvocation:
		return "cancel_invocation"
	case TypePing:
		return "ping"
	case TypeClose:
		return "close"
	default:
		return "unknown"
	}
}

var (
	// ErrIncompleteRecord is returned when a record separator is missing.
	ErrIncompleteRecord = errors.New("hub record is not terminated")
	// ErrHandshakeRejected wraps the error text returned by the server.
	ErrHandshakeRejected = errors.New("hub rejected handshake")
)

// HandshakeRequest is the first record a client sends.
type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse is the first record a server sends.
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is the union of all hub message shapes. Unused fields are omitted.
type Message struct {
	Type           MessageType       `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

// ============================================================================
// Framing
// ============================================================================

// Frame marshals v and appends the record separator.
func Frame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode hub record: %w", err)
	}
	return append(data, RecordSeparator), nil
}

// Split returns the complete records in data, without separators.
// Empty records are skipped. Trailing bytes after the last separator
// are reported with ErrIncompleteRecord.
func Split(data []byte) ([][]byte, error) {
	var records [][]byte
	for len(data) > 0 {
		idx := bytes.IndexByte(data, RecordSeparator)
		if idx < 0 {
			return records, ErrIncompleteRecord
		}
		if record := bytes.TrimSpace(data[:idx]); len(record) > 0 {
			records = append(records, record)
		}
		data = data[idx+1:]
	}
	return records, nil
}

// ============================================================================
// Handshake
// ============================================================================

// EncodeHandshakeRequest returns the framed client handshake.
func EncodeHandshakeRequest() []byte {
	data, _ := Frame(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
	return data
}

// EncodeHandshakeResponse returns the framed server handshake reply.
// An empty errMsg accepts the connection.
func EncodeHandshakeResponse(errMsg string) []byte {
	data, _ := Frame(HandshakeResponse{Error: errMsg})
	return data
}

// ParseHandshakeRequest decodes the first record of data as a handshake
// request and returns the bytes that followed it.
func ParseHandshakeRequest(data []byte) (HandshakeRequest, []byte, error) {
	var req HandshakeRequest
	record, rest, err := firstRecord(data)
	if err != nil {
		return req, nil, err
	}
	if err := json.Unmarshal(record, &req); err != nil {
		return req, nil, fmt.Errorf("decode handshake request: %w", err)
	}
	if req.Protocol != ProtocolName {
		return req, rest, fmt.Errorf("unsupported hub protocol %q", req.Protocol)
	}
	return req, rest, nil
}

// ParseHandshakeResponse decodes the first record of data as a handshake
// reply. Records the server sent in the same frame are returned in rest.
func ParseHandshakeResponse(data []byte) ([]byte, error) {
	record, rest, err := firstRecord(data)
	if err != nil {
		return nil, err
	}
	var resp HandshakeResponse
	if err := json.Unmarshal(record, &resp); err != nil {
		return nil, fmt.Errorf("decode handshake response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Error)
	}
	return rest, nil
}

func firstRecord(data []byte) (record, rest []byte, err error) {
	idx := bytes.IndexByte(data, RecordSeparator)
	if idx < 0 {
		return nil, nil, ErrIncompleteRecord
	}
	return data[:idx], data[idx+1:], nil
}

// ============================================================================
// Messages
// ============================================================================

// Decode parses one record produced by Split.
func Decode(record []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(record, &msg); err != nil {
		return msg, fmt.Errorf("decode hub message: %w", err)
	}
	if msg.Type == 0 {
		return msg, fmt.Errorf("hub message without type: %s", record)
	}
	return msg, nil
}

// NewInvocation builds a non-blocking invocation (no invocation id, so the
// server sends no completion).
func NewInvocation(target string, args ...any) (Message, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return Message{}, fmt.Errorf("encode argument %d of %s: %w", i, target, err)
		}
		raw = append(raw, data)
	}
	return Message{Type: TypeInvocation, Target: target, Arguments: raw}, nil
}

// EncodeInvocation builds and frames a non-blocking invocation.
func EncodeInvocation(target string, args ...any) ([]byte, error) {
	msg, err := NewInvocation(target, args...)
	if err != nil {
		return nil, err
	}
	return Frame(msg)
}

// EncodePing returns a framed ping.
func EncodePing() []byte {
	data, _ := Frame(Message{Type: TypePing})
	return data
}

// EncodeClose returns a framed close message.
func EncodeClose(errMsg string, allowReconnect bool) []byte {
	data, _ := Frame(Message{Type: TypeClose, Error: errMsg, AllowReconnect: allowReconnect})
	return data
}

// ============================================================================
// Presence payloads
// ============================================================================

// EncodeChangeMyStatus frames a ChangeMyStatus(status) invocation.
func EncodeChangeMyStatus(status models.PresenceStatus) ([]byte, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("cannot announce presence status %q", string(status))
	}
	return EncodeInvocation(TargetChangeMyStatus, status)
}

// EncodeUserStatusChanged frames a UserStatusChanged(userId, status) event.
func EncodeUserStatusChanged(userID models.UserID, status models.PresenceStatus) ([]byte, error) {
	return EncodeInvocation(TargetUserStatusChanged, userID, status)
}

// DecodeUserStatusChanged extracts the (userId, status) pair from a
// UserStatusChanged invocation.
func DecodeUserStatusChanged(msg Message) (models.StatusEntry, error) {
	var entry models.StatusEntry
	if msg.Type != TypeInvocation || msg.Target != TargetUserStatusChanged {
		return entry, fmt.Errorf("not a %s invocation", TargetUserStatusChanged)
	}
	if len(msg.Arguments) != 2 {
		return entry, fmt.Errorf("%s expects 2 arguments, got %d", TargetUserStatusChanged, len(msg.Arguments))
	}
	if err := json.Unmarshal(msg.Arguments[0], &entry.UserID); err != nil {
		return entry, fmt.Errorf("decode %s user id: %w", TargetUserStatusChanged, err)
	}
	if entry.UserID == "" {
		return entry, fmt.Errorf("%s carries an empty user id", TargetUserStatusChanged)
	}
	if err := json.Unmarshal(msg.Arguments[1], &entry.Status); err != nil {
		return entry, fmt.Errorf("decode %s status: %w", TargetUserStatusChanged, err)
	}
	return entry, nil
}

// DecodeChangeMyStatus extracts the status from a ChangeMyStatus invocation.
func DecodeChangeMyStatus(msg Message) (models.PresenceStatus, error) {
	if msg.Type != TypeInvocation || msg.Target != TargetChangeMyStatus {
		return models.StatusUnknown, fmt.Errorf("not a %s invocation", TargetChangeMyStatus)
	}
	if len(msg.Arguments) != 1 {
		return models.StatusUnknown, fmt.Errorf("%s expects 1 argument, got %d", TargetChangeMyStatus, len(msg.Arguments))
	}
	var status models.PresenceStatus
	if err := json.Unmarshal(msg.Arguments[0], &status); err != nil {
		return models.StatusUnknown, fmt.Errorf("decode %s status: %w", TargetChangeMyStatus, err)
	}
	return status, nil
}
