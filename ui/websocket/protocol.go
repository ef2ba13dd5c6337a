package websocket

import (
	"encoding/json"
	"time"
)

// Client frame types.
const (
	clientAuth              = "auth"
	clientPing              = "ping"
	clientPong              = "pong"
	clientJoinConversation  = "join_conversation"
	clientLeaveConversation = "leave_conversation"
	clientTyping            = "typing"
	clientMessageRead       = "message_read"
)

// Server frame types that are not domain events.
const (
	serverConnected          = "connected"
	serverAuthSuccess        = "auth_success"
	serverAuthError          = "auth_error"
	serverJoinedConversation = "joined_conversation"
	serverLeftConversation   = "left_conversation"
	serverUserJoined         = "user_joined"
	serverUserLeft           = "user_left"
	serverTyping             = "typing"
	serverMessageRead        = "message_read"
	serverPing               = "ping"
	serverPong               = "pong"
	serverError              = "error"
)

// clientEnvelope is what dashboards send: {"type": "...", "data": {...}}.
type clientEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type authData struct {
	Token string `json:"token"`
}

type roomData struct {
	ConversationID string `json:"conversationId"`
}

type typingData struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type readData struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// encodeFrame flattens payload next to type and an RFC3339 timestamp.
func encodeFrame(frameType string, payload map[string]any, now time.Time) ([]byte, error) {
	frame := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		frame[k] = v
	}
	frame["type"] = frameType
	frame["timestamp"] = now.UTC().Format(time.RFC3339)
	return json.Marshal(frame)
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
