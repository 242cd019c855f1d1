package service

import (
	"context"
	"fmt"
	"strings"

	"bluecast/internal/models"
)

// ContactCardGenerator is the external collaborator producing the
// organization's contact card. The engine treats the payload as an opaque
// attachment.
type ContactCardGenerator interface {
	Generate(ctx context.Context) (data []byte, filename, mimeType string, err error)
}

// SendContactCard dispatches the organization's contact card to one
// recipient. Beyond sourcing the payload it is an ordinary attachment send,
// fallback included.
func (d *Dispatcher) SendContactCard(ctx context.Context, routing, memberID string, generator ContactCardGenerator) (*models.DispatchResult, error) {
	data, filename, mimeType, err := generator.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate contact card: %w", err)
	}

	req := models.NewAttachmentRequest(routing, memberID, models.Attachment{
		Data:     data,
		Filename: filename,
		MimeType: mimeType,
	}, "")

	return d.Send(ctx, req)
}

// VCardGenerator renders a static vCard 3.0 for the organization's line.
type VCardGenerator struct {
	DisplayName string
	Phone       string
	Email       string
}

func (g VCardGenerator) Generate(ctx context.Context) ([]byte, string, string, error) {
	if g.DisplayName == "" || g.Phone == "" {
		return nil, "", "", fmt.Errorf("contact card requires a display name and phone number")
	}

	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	b.WriteString("VERSION:3.0\r\n")
	fmt.Fprintf(&b, "FN:%s\r\n", g.DisplayName)
	fmt.Fprintf(&b, "N:%s;;;;\r\n", g.DisplayName)
	fmt.Fprintf(&b, "TEL;TYPE=CELL:%s\r\n", g.Phone)
	if g.Email != "" {
		fmt.Fprintf(&b, "EMAIL:%s\r\n", g.Email)
	}
	b.WriteString("END:VCARD\r\n")

	return []byte(b.String()), "contact.vcf", "text/vcard", nil
}
