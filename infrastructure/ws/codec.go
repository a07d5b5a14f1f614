package ws

import (
	"bytes"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/dto"
	"encoding/json"
	"fmt"
	"strings"
)

// Every frame is a JSON envelope {"type": "...", "payload": {...}}.
type inboundEnvelope struct {
	Type    event.Kind      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundEnvelope struct {
	Type    event.Kind `json:"type"`
	Payload any        `json:"payload"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type receiveMessagePayload struct {
	Message dto.Message `json:"message"`
}

type chatPayload struct {
	Chat dto.ChatRoom `json:"chat"`
}

type errorPayload struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Cause   event.Kind `json:"cause,omitempty"`
}

// Decode turns a client frame into an inbound event.
// The returned kind is set as soon as the envelope could be read, so rejections can name it.
func Decode(data []byte) (event.Inbound, event.Kind, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: malformed frame: %v", errors.ErrValidation, err)
	}

	switch envelope.Type {
	case event.KindJoinRoom:
		room, err := decodeRoom(envelope)
		if err != nil {
			return nil, envelope.Type, err
		}
		return event.JoinRoom{Room: room}, envelope.Type, nil
	case event.KindLeaveRoom:
		room, err := decodeRoom(envelope)
		if err != nil {
			return nil, envelope.Type, err
		}
		return event.LeaveRoom{Room: room}, envelope.Type, nil
	case event.KindSendMessage:
		var payload sendMessagePayload
		if err := decodePayload(envelope, &payload); err != nil {
			return nil, envelope.Type, err
		}
		return event.SendMessage{
			Room:       chat.RoomID(strings.TrimSpace(payload.RoomID)),
			Content:    payload.Content,
			Attachment: dto.ToAttachment(payload.FileURL, payload.FileName, payload.FileType),
		}, envelope.Type, nil
	case "":
		return nil, "", fmt.Errorf("%w: missing event type", errors.ErrValidation)
	default:
		return nil, envelope.Type, fmt.Errorf("%w: unknown event type %q", errors.ErrValidation, envelope.Type)
	}
}

// Encode renders an outbound event as a frame.
func Encode(evt event.Outbound) ([]byte, error) {
	var payload any
	switch e := evt.(type) {
	case event.ReceiveMessage:
		payload = receiveMessagePayload{Message: dto.FromMessageView(e.Message)}
	case event.NewChat:
		payload = chatPayload{Chat: dto.FromRoomSummary(e.Chat)}
	case event.UpdateChat:
		payload = chatPayload{Chat: dto.FromRoomSummary(e.Chat)}
	case event.Error:
		payload = errorPayload{Code: e.Code, Message: e.Message, Cause: e.Cause}
	default:
		return nil, fmt.Errorf("%w: unsupported outbound event %T", errors.ErrValidation, evt)
	}
	return json.Marshal(outboundEnvelope{Type: evt.Kind(), Payload: payload})
}

func decodeRoom(envelope inboundEnvelope) (chat.RoomID, error) {
	var payload roomPayload
	if err := decodePayload(envelope, &payload); err != nil {
		return "", err
	}
	room := strings.TrimSpace(payload.RoomID)
	if room == "" {
		return "", fmt.Errorf("%w: roomId is required", errors.ErrValidation)
	}
	return chat.RoomID(room), nil
}

func decodePayload(envelope inboundEnvelope, target any) error {
	if len(bytes.TrimSpace(envelope.Payload)) == 0 || bytes.Equal(envelope.Payload, []byte("null")) {
		return fmt.Errorf("%w: %s payload is missing", errors.ErrValidation, envelope.Type)
	}
	if err := json.Unmarshal(envelope.Payload, target); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %v", errors.ErrValidation, envelope.Type, err)
	}
	return nil
}
