package database

// Schema is applied on startup. CREATE IF NOT EXISTS keeps it idempotent
// across restarts. The members table is owned by the directory collaborator;
// the engine only reads it for inbound reverse lookup.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    member_id       TEXT NOT NULL UNIQUE,
    last_message    TEXT NOT NULL DEFAULT '',
    last_message_at TIMESTAMP,
    status          TEXT NOT NULL DEFAULT 'active',
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id),
    direction       TEXT NOT NULL,
    body            TEXT NOT NULL DEFAULT '',
    delivery_status TEXT NOT NULL,
    gateway_id      TEXT NOT NULL UNIQUE,
    media_url       TEXT,
    reaction_to_id  TEXT,
    reaction_kind   TEXT,
    reply_to_id     TEXT,
    part_index      INTEGER NOT NULL DEFAULT 0,
    is_read         BOOLEAN NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    delivered_at    TIMESTAMP,
    read_at         TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_gateway_id ON messages(gateway_id);

CREATE TABLE IF NOT EXISTS members (
    id         TEXT PRIMARY KEY,
    phone      TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_members_phone ON members(phone);
`
