package gateway

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies an inbound client message.
type MessageType string

const (
	MessageIdentify   MessageType = "identify"
	MessageSelectCard MessageType = "select_card"
	MessageClaimWin   MessageType = "claim_win"
)

// ClientMessage is the JSON a client sends over the websocket.
type ClientMessage struct {
	Type        MessageType `json:"type"`
	AccountID   string      `json:"accountId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	CardID      int         `json:"cardId,omitempty"`
}

var errUnknownMessage = fmt.Errorf("unknown message type")

func parseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	switch msg.Type {
	case MessageIdentify, MessageSelectCard, MessageClaimWin:
		return msg, nil
	default:
		return msg, fmt.Errorf("%q: %w", msg.Type, errUnknownMessage)
	}
}
