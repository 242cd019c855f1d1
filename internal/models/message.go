package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	// DeliveryStatusQueued means the gateway accepted (or likely accepted) the
	// send but has not yet reported a durable identifier.
	DeliveryStatusQueued    DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// ProvisionalIDPrefix marks locally generated message identifiers used when
// the gateway has not returned a durable GUID. A provisional identifier is
// never reassigned once a durable one is known; the row keeps whichever
// identifier it was inserted with.
const ProvisionalIDPrefix = "local-"

// NewProvisionalID returns a globally unique placeholder identifier.
func NewProvisionalID() string {
	return ProvisionalIDPrefix + uuid.NewString()
}

// IsProvisionalID reports whether id was generated locally rather than
// assigned by the gateway.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalIDPrefix)
}

// Conversation is the per-member chat record. At most one exists per member;
// it is created lazily on first send or first inbound message and never
// deleted by the engine.
type Conversation struct {
	ID            int64     `json:"id"`
	MemberID      string    `json:"memberId"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Message is a single accepted send or received message. Exactly one row is
// created per accepted outbound request, at acceptance time, regardless of
// whether the gateway has confirmed it yet.
type Message struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversationId"`
	Direction      Direction      `json:"direction"`
	Body           string         `json:"body"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	GatewayID      string         `json:"gatewayId"`
	MediaURL       *string        `json:"mediaUrl,omitempty"`
	ReactionToID   *string        `json:"reactionToId,omitempty"`
	ReactionKind   *string        `json:"reactionKind,omitempty"`
	ReplyToID      *string        `json:"replyToId,omitempty"`
	PartIndex      int            `json:"partIndex"`
	Read           bool           `json:"read"`
	CreatedAt      time.Time      `json:"createdAt"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
}
