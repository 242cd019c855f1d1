package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"bluecast/internal/models"
	"bluecast/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the persistence boundary for conversations and messages. It is
// the only shared resource between concurrent sends; SQLite handles row-level
// write safety, no in-process locking is required.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// FindOrCreateConversation returns the single conversation for a member,
// creating it on first contact. Conversations are never deleted.
func (d *Database) FindOrCreateConversation(ctx context.Context, memberID string) (*models.Conversation, error) {
	if memberID == "" {
		return nil, fmt.Errorf("member reference is required")
	}

	encryptedMemberID, err := d.encryptor.EncryptForLookupIfEnabled(memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt member ID: %w", err)
	}

	conv, err := d.getConversationByEncryptedMember(ctx, encryptedMemberID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		conv.MemberID = memberID
		return conv, nil
	}

	now := time.Now().UTC()
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO conversations (member_id, last_message, last_message_at, status, created_at, updated_at)
		VALUES (?, '', NULL, 'active', ?, ?)
	`, encryptedMemberID, now, now)
	if err != nil {
		// Concurrent first contact for the same member loses the race on the
		// UNIQUE constraint; re-read instead of failing.
		conv, lookupErr := d.getConversationByEncryptedMember(ctx, encryptedMemberID)
		if lookupErr == nil && conv != nil {
			conv.MemberID = memberID
			return conv, nil
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation ID: %w", err)
	}

	return &models.Conversation{
		ID:        id,
		MemberID:  memberID,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (d *Database) getConversationByEncryptedMember(ctx context.Context, encryptedMemberID string) (*models.Conversation, error) {
	query := `
		SELECT id, member_id, last_message, last_message_at, status, created_at, updated_at
		FROM conversations
		WHERE member_id = ?
	`

	conv := &models.Conversation{}
	var encryptedLastMessage string
	var lastMessageAt sql.NullTime

	err := d.db.QueryRowContext(ctx, query, encryptedMemberID).Scan(
		&conv.ID,
		&conv.MemberID,
		&encryptedLastMessage,
		&lastMessageAt,
		&conv.Status,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv.LastMessage, err = d.encryptor.DecryptIfEnabled(encryptedLastMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt last message: %w", err)
	}
	if lastMessageAt.Valid {
		conv.LastMessageAt = lastMessageAt.Time
	}

	return conv, nil
}

// UpdateConversationSnapshot refreshes the last-message snapshot. It always
// reflects the most recently accepted message, regardless of delivery status.
func (d *Database) UpdateConversationSnapshot(ctx context.Context, conversationID int64, body string, at time.Time) error {
	encryptedBody, err := d.encryptor.EncryptIfEnabled(body)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot body: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message = ?, last_message_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, encryptedBody, at.UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation snapshot: %w", err)
	}

	return nil
}

// InsertMessage stores one accepted message. The gateway identifier may be
// durable or provisional; it is unique either way.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	encryptedBody, err := d.encryptor.EncryptIfEnabled(msg.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt message body: %w", err)
	}

	encryptedGatewayID, err := d.encryptor.EncryptForLookupIfEnabled(msg.GatewayID)
	if err != nil {
		return fmt.Errorf("failed to encrypt gateway ID: %w", err)
	}

	var encryptedMediaURL *string
	if msg.MediaURL != nil {
		encrypted, err := d.encryptor.EncryptIfEnabled(*msg.MediaURL)
		if err != nil {
			return fmt.Errorf("failed to encrypt media URL: %w", err)
		}
		encryptedMediaURL = &encrypted
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (
			conversation_id, direction, body, delivery_status, gateway_id,
			media_url, reaction_to_id, reaction_kind, reply_to_id, part_index,
			is_read, created_at, delivered_at, read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ConversationID,
		msg.Direction,
		encryptedBody,
		msg.DeliveryStatus,
		encryptedGatewayID,
		encryptedMediaURL,
		msg.ReactionToID,
		msg.ReactionKind,
		msg.ReplyToID,
		msg.PartIndex,
		msg.Read,
		msg.CreatedAt,
		msg.DeliveredAt,
		msg.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	return nil
}

// GetMessageByGatewayID returns the message with the given identifier, or
// nil when none matches.
func (d *Database) GetMessageByGatewayID(ctx context.Context, gatewayID string) (*models.Message, error) {
	encryptedGatewayID, err := d.encryptor.EncryptForLookupIfEnabled(gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt gateway ID: %w", err)
	}

	query := `
		SELECT id, conversation_id, direction, body, delivery_status, gateway_id,
		       media_url, reaction_to_id, reaction_kind, reply_to_id, part_index,
		       is_read, created_at, delivered_at, read_at
		FROM messages
		WHERE gateway_id = ?
	`

	msg := &models.Message{}
	var encryptedBody, encryptedID string
	var encryptedMediaURL *string
	var deliveredAt, readAt sql.NullTime

	err = d.db.QueryRowContext(ctx, query, encryptedGatewayID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Direction,
		&encryptedBody,
		&msg.DeliveryStatus,
		&encryptedID,
		&encryptedMediaURL,
		&msg.ReactionToID,
		&msg.ReactionKind,
		&msg.ReplyToID,
		&msg.PartIndex,
		&msg.Read,
		&msg.CreatedAt,
		&deliveredAt,
		&readAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	msg.GatewayID = gatewayID
	msg.Body, err = d.encryptor.DecryptIfEnabled(encryptedBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message body: %w", err)
	}
	if encryptedMediaURL != nil {
		decrypted, err := d.encryptor.DecryptIfEnabled(*encryptedMediaURL)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt media URL: %w", err)
		}
		msg.MediaURL = &decrypted
	}
	if deliveredAt.Valid {
		msg.DeliveredAt = &deliveredAt.Time
	}
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}

	return msg, nil
}

// UpdateMessageBody applies a text edit to a stored message. Delivery status
// is untouched. Returns false when no message matched.
func (d *Database) UpdateMessageBody(ctx context.Context, gatewayID, body string) (bool, error) {
	encryptedGatewayID, err := d.encryptor.EncryptForLookupIfEnabled(gatewayID)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt gateway ID: %w", err)
	}

	encryptedBody, err := d.encryptor.EncryptIfEnabled(body)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt message body: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE messages SET body = ? WHERE gateway_id = ?
	`, encryptedBody, encryptedGatewayID)
	if err != nil {
		return false, fmt.Errorf("failed to update message body: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// MarkMessageDelivered advances a queued or sent message to delivered. The
// status guard is in SQL so an out-of-order event can never regress a read
// message. Returns false when nothing matched the guard.
func (d *Database) MarkMessageDelivered(ctx context.Context, gatewayID string, at time.Time) (bool, error) {
	encryptedGatewayID, err := d.encryptor.EncryptForLookupIfEnabled(gatewayID)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt gateway ID: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE messages
		SET delivery_status = ?, delivered_at = ?
		WHERE gateway_id = ? AND delivery_status IN (?, ?)
	`, models.DeliveryStatusDelivered, at.UTC(), encryptedGatewayID,
		models.DeliveryStatusQueued, models.DeliveryStatusSent)
	if err != nil {
		return false, fmt.Errorf("failed to mark message delivered: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// MarkMessageRead advances a sent or delivered message to read.
func (d *Database) MarkMessageRead(ctx context.Context, gatewayID string, at time.Time) (bool, error) {
	encryptedGatewayID, err := d.encryptor.EncryptForLookupIfEnabled(gatewayID)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt gateway ID: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE messages
		SET delivery_status = ?, read_at = ?, is_read = 1
		WHERE gateway_id = ? AND delivery_status IN (?, ?)
	`, models.DeliveryStatusRead, at.UTC(), encryptedGatewayID,
		models.DeliveryStatusSent, models.DeliveryStatusDelivered)
	if err != nil {
		return false, fmt.Errorf("failed to mark message read: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// MemberIDByPhone is the read-only boundary to the member directory: reverse
// lookup of the member owning a phone number. Returns "" when unknown.
func (d *Database) MemberIDByPhone(ctx context.Context, phone string) (string, error) {
	var memberID string
	err := d.db.QueryRowContext(ctx, `SELECT id FROM members WHERE phone = ?`, phone).Scan(&memberID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up member by phone: %w", err)
	}
	return memberID, nil
}

// CleanupOldMessages removes message rows older than the retention window.
// Conversations are kept.
func (d *Database) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old messages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}
