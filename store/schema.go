package store

// Schema contains the DDL for the surgeon tables.
const Schema = `
-- Documents: markup as last saved, audit attributes included
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    markup      TEXT NOT NULL,
    hash        TEXT NOT NULL,
    source_url  TEXT NOT NULL DEFAULT '',
    full_doc    INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

-- Operations: journal of every mutating call made against a document
CREATE TABLE IF NOT EXISTS operations (
    id          TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    kind        TEXT NOT NULL,
    change_set  TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '{}',
    count       INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_operations_document ON operations(document_id, created_at);
CREATE INDEX IF NOT EXISTS idx_operations_change_set ON operations(change_set) WHERE change_set != '';
`
