package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Transport service tags understood by the gateway. A full chat GUID is
// "<service>;-;<address>", e.g. "iMessage;-;+15551234567".
const (
	ServiceIMessage = "iMessage"
	ServiceSMS      = "SMS"

	ServiceSeparator = ";-;"
)

// ChatGUID builds a transport-specific chat identifier for an address.
func ChatGUID(service, address string) string {
	return service + ServiceSeparator + address
}

// IsChatGUID reports whether routing already carries a service tag.
func IsChatGUID(routing string) bool {
	return strings.Contains(routing, ServiceSeparator)
}

// OutcomeKind classifies the result of one gateway submission.
type OutcomeKind string

const (
	// OutcomeAcknowledged means the gateway confirmed the send and returned
	// its durable message GUID.
	OutcomeAcknowledged OutcomeKind = "acknowledged"
	// OutcomeAcknowledgedNoID means the HTTP exchange succeeded but the
	// response carried no usable GUID.
	OutcomeAcknowledgedNoID OutcomeKind = "acknowledged-no-id"
	// OutcomeSoftTimeout means the wait was aborted after the timeout budget.
	// The gateway queues asynchronously, so this is "likely accepted,
	// identifier unknown", never a failure.
	OutcomeSoftTimeout OutcomeKind = "soft-timeout"
	// OutcomeHardFailure means the gateway rejected the send.
	OutcomeHardFailure OutcomeKind = "hard-failure"
)

// Outcome is what a submission produced. Reason is set for hard failures;
// StatusCode carries the upstream HTTP status when one was received.
type Outcome struct {
	Kind       OutcomeKind
	GUID       string
	Reason     string
	StatusCode int
}

func (o Outcome) Accepted() bool {
	return o.Kind != OutcomeHardFailure
}

// TextRequest is the wire body for text and reply sends.
type TextRequest struct {
	ChatGUID            string `json:"chatGuid"`
	Message             string `json:"message"`
	TempGUID            string `json:"tempGuid"`
	SelectedMessageGUID string `json:"selectedMessageGuid,omitempty"`
	PartIndex           int    `json:"partIndex,omitempty"`
}

// ReactionRequest is the wire body for tapback sends.
type ReactionRequest struct {
	ChatGUID            string `json:"chatGuid"`
	SelectedMessageGUID string `json:"selectedMessageGuid"`
	Reaction            string `json:"reaction"`
	PartIndex           int    `json:"partIndex"`
}

// ChatCreateRequest asks the gateway to provision a chat on a given service.
type ChatCreateRequest struct {
	Addresses []string `json:"addresses"`
	Service   string   `json:"service"`
}

// APIResponse is the gateway's uniform response envelope. Status mirrors the
// HTTP status; a success-shaped body with Status != 200 is still a failure.
type APIResponse struct {
	Status  int           `json:"status"`
	Message string        `json:"message"`
	Data    *ResponseData `json:"data,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
}

type ResponseData struct {
	GUID string `json:"guid"`
}

type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event is the envelope delivered by the gateway's webhook callback and its
// websocket stream alike.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Gateway event types.
const (
	EventNewMessage       = "new-message"
	EventUpdatedMessage   = "updated-message"
	EventMessageDelivered = "message-delivered"
	EventReadReceipt      = "read-receipt"
	EventTypingIndicator  = "typing-indicator"
)

// MessageEventData is the payload of new-message and updated-message events.
// Date fields are millisecond epochs; zero means unset.
type MessageEventData struct {
	GUID     string `json:"guid"`
	Text     string `json:"text"`
	ChatGUID string `json:"chatGuid"`
	IsFromMe bool   `json:"isFromMe"`
	Handle   struct {
		Address string `json:"address"`
	} `json:"handle"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
	DateCreated   int64  `json:"dateCreated"`
	DateDelivered int64  `json:"dateDelivered"`
	DateRead      int64  `json:"dateRead"`
}

// ReceiptEventData is the payload of message-delivered and read-receipt
// events.
type ReceiptEventData struct {
	GUID      string `json:"guid"`
	Timestamp int64  `json:"timestamp"`
}

// EpochMillis converts a gateway millisecond timestamp, returning zero time
// for unset values.
func EpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond))
}

// ClientConfig represents the configuration for the gateway client.
type ClientConfig struct {
	BaseURL           string        `json:"base_url"`
	Password          string        `json:"password"`
	TextTimeout       time.Duration `json:"text_timeout"`
	AttachmentTimeout time.Duration `json:"attachment_timeout"`
}
