package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Server-pushed event types
const (
	EventMessageCreated      = "message.created"
	EventNotificationCreated = "notification.created"
	EventError               = "error"
)

// Client request types
const (
	TypePing         = "ping"
	TypeJoinChannel  = "join_channel"
	TypeLeaveChannel = "leave_channel"
)

// marshalMessage converts a Message to JSON bytes
func marshalMessage(message *Message) ([]byte, error) {
	// If Payload is set, marshal it to Data
	if message.Payload != nil {
		data, err := json.Marshal(message.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		message.Data = data
	}

	return json.Marshal(message)
}

// channelRequest is the payload of join_channel and leave_channel
type channelRequest struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

// Built-in message handlers

// PingHandler handles ping messages
func PingHandler(ctx context.Context, client *Client, message *Message) error {
	return client.SendJSON("pong", map[string]interface{}{
		"timestamp": message.Data,
	})
}

// JoinChannelHandler subscribes the client to a channel's room. The
// join is refused with an error frame when the client's role cannot
// view the channel.
func JoinChannelHandler(ctx context.Context, client *Client, message *Message) error {
	var req channelRequest
	if err := json.Unmarshal(message.Data, &req); err != nil {
		return fmt.Errorf("invalid join channel request: %w", err)
	}
	if req.ChannelID == uuid.Nil {
		return fmt.Errorf("channel_id is required")
	}

	ok, err := client.hub.access.CanView(ctx, client.UserID, req.ChannelID)
	if err != nil {
		return fmt.Errorf("checking channel access: %w", err)
	}
	if !ok {
		client.SendError("channel not found or not accessible")
		return nil
	}

	client.JoinRoom(RoomForChannel(req.ChannelID))

	return client.SendJSON("channel_joined", map[string]interface{}{
		"channel_id": req.ChannelID,
	})
}

// LeaveChannelHandler unsubscribes the client from a channel's room
func LeaveChannelHandler(ctx context.Context, client *Client, message *Message) error {
	var req channelRequest
	if err := json.Unmarshal(message.Data, &req); err != nil {
		return fmt.Errorf("invalid leave channel request: %w", err)
	}
	if req.ChannelID == uuid.Nil {
		return fmt.Errorf("channel_id is required")
	}

	client.LeaveRoom(RoomForChannel(req.ChannelID))

	return client.SendJSON("channel_left", map[string]interface{}{
		"channel_id": req.ChannelID,
	})
}

// RegisterDefaultHandlers registers built-in message handlers
func RegisterDefaultHandlers(hub *Hub) {
	hub.RegisterHandler(TypePing, PingHandler)
	hub.RegisterHandler(TypeJoinChannel, JoinChannelHandler)
	hub.RegisterHandler(TypeLeaveChannel, LeaveChannelHandler)
}
