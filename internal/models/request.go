package models

type RequestKind string

const (
	RequestText       RequestKind = "text"
	RequestAttachment RequestKind = "attachment"
	RequestReaction   RequestKind = "reaction"
	RequestReply      RequestKind = "reply"
)

// Attachment carries the binary payload of an attachment send. The engine
// treats the bytes as opaque; contact cards arrive through the same shape.
type Attachment struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// SendRequest is the closed union of dispatchable sends. Kind decides which
// fields are meaningful; use the constructors rather than filling the struct
// by hand so the dispatcher can switch exhaustively.
type SendRequest struct {
	Kind     RequestKind `json:"kind"`
	Routing  string      `json:"routing"`  // phone number or full chat GUID
	MemberID string      `json:"memberId"` // empty skips persistence
	Body     string      `json:"body"`     // text body, or caption for attachments

	Attachment *Attachment `json:"attachment,omitempty"`

	// Reaction and reply linkage.
	TargetID  string `json:"targetId,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
	PartIndex int    `json:"partIndex,omitempty"`
}

func NewTextRequest(routing, memberID, body string) SendRequest {
	return SendRequest{Kind: RequestText, Routing: routing, MemberID: memberID, Body: body}
}

func NewAttachmentRequest(routing, memberID string, att Attachment, caption string) SendRequest {
	return SendRequest{Kind: RequestAttachment, Routing: routing, MemberID: memberID, Body: caption, Attachment: &att}
}

func NewReactionRequest(routing, memberID, targetID, reaction string, partIndex int) SendRequest {
	return SendRequest{Kind: RequestReaction, Routing: routing, MemberID: memberID, TargetID: targetID, Reaction: reaction, PartIndex: partIndex}
}

func NewReplyRequest(routing, memberID, targetID, body string, partIndex int) SendRequest {
	return SendRequest{Kind: RequestReply, Routing: routing, MemberID: memberID, TargetID: targetID, Body: body, PartIndex: partIndex}
}

// Validate rejects requests before any gateway call or persistence happens.
func (r SendRequest) Validate() error {
	if r.Routing == "" {
		return &ValidationError{Field: "routing", Message: "routing value is required"}
	}

	switch r.Kind {
	case RequestText:
		if r.Body == "" {
			return &ValidationError{Field: "body", Message: "message body is required"}
		}
	case RequestAttachment:
		if r.Attachment == nil || len(r.Attachment.Data) == 0 {
			return &ValidationError{Field: "attachment", Message: "attachment payload is required"}
		}
		if r.Attachment.Filename == "" {
			return &ValidationError{Field: "attachment", Message: "attachment filename is required"}
		}
	case RequestReaction:
		if r.TargetID == "" {
			return &ValidationError{Field: "targetId", Message: "reaction target message is required"}
		}
		if r.Reaction == "" {
			return &ValidationError{Field: "reaction", Message: "reaction kind is required"}
		}
	case RequestReply:
		if r.TargetID == "" {
			return &ValidationError{Field: "targetId", Message: "reply target message is required"}
		}
		if r.Body == "" {
			return &ValidationError{Field: "body", Message: "message body is required"}
		}
	default:
		return &ValidationError{Field: "kind", Message: "unknown request kind"}
	}

	return nil
}

// DispatchResult reports the outcome of one accepted send.
type DispatchResult struct {
	GatewayID string         `json:"gatewayId"`
	Status    DeliveryStatus `json:"status"`
	// Note carries an advisory for the caller, e.g. "still processing" after
	// a soft timeout. Empty on a clean acknowledgement.
	Note string `json:"note,omitempty"`
}
