package storage

// Schema is the SQL schema for the cocoon database.
const Schema = `
CREATE TABLE IF NOT EXISTS dreams (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    tags            TEXT NOT NULL DEFAULT '[]',
    creator         TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending'
                    CHECK(status IN ('pending', 'approved', 'rejected', 'evolved')),
    score           INTEGER NOT NULL DEFAULT 0 CHECK(score BETWEEN 0 AND 100),
    category_scores TEXT NOT NULL DEFAULT '{}',
    rationale       TEXT NOT NULL DEFAULT '[]',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    archived_at     TEXT NULL
);

CREATE TABLE IF NOT EXISTS evolution_chains (
    dream_id    TEXT PRIMARY KEY REFERENCES dreams(id),
    stage_label TEXT NOT NULL,
    cocoon_id   TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cocoons (
    id          TEXT PRIMARY KEY,
    dream_id    TEXT NOT NULL UNIQUE REFERENCES dreams(id),
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    creator     TEXT NOT NULL,
    stage       TEXT NOT NULL DEFAULT 'incubating'
                CHECK(stage IN ('incubating', 'active', 'metamorphosis', 'emergence', 'complete', 'archived')),
    dream_score INTEGER NOT NULL DEFAULT 0 CHECK(dream_score BETWEEN 0 AND 100),
    minted      INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cocoon_contributors (
    cocoon_id TEXT NOT NULL REFERENCES cocoons(id) ON DELETE CASCADE,
    wallet    TEXT NOT NULL,
    role      TEXT NOT NULL,
    joined_at TEXT NOT NULL,
    PRIMARY KEY (cocoon_id, wallet)
);

CREATE TABLE IF NOT EXISTS evolution_notes (
    id         TEXT PRIMARY KEY,
    cocoon_id  TEXT NOT NULL REFERENCES cocoons(id) ON DELETE CASCADE,
    author     TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_log (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    cocoon_id  TEXT NOT NULL,
    from_stage TEXT NOT NULL,
    to_stage   TEXT NOT NULL,
    actor      TEXT NOT NULL,
    kind       TEXT NOT NULL CHECK(kind IN ('transition', 'force')),
    success    INTEGER NOT NULL,
    reason     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

-- cocoon_id and milestone are '' when absent so the uniqueness tuple
-- (cocoon, milestone, holder, purpose) also covers administrative tokens.
CREATE TABLE IF NOT EXISTS dream_tokens (
    id            TEXT PRIMARY KEY,
    dream_id      TEXT NOT NULL,
    cocoon_id     TEXT NOT NULL DEFAULT '',
    holder_wallet TEXT NOT NULL,
    purpose       TEXT NOT NULL CHECK(purpose IN ('badge', 'mint', 'vote')),
    milestone     TEXT NOT NULL DEFAULT '',
    metadata      TEXT NOT NULL DEFAULT '{}',
    minted_at     TEXT NOT NULL,
    UNIQUE (cocoon_id, milestone, holder_wallet, purpose)
);

CREATE TABLE IF NOT EXISTS notifications (
    id         TEXT PRIMARY KEY,
    recipient  TEXT NOT NULL,
    type       TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS dreams_fts USING fts5(
    title,
    description,
    tags,
    content='dreams',
    content_rowid='rowid'
);

CREATE INDEX IF NOT EXISTS idx_dreams_status ON dreams(status) WHERE archived_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_dreams_creator ON dreams(creator);
CREATE INDEX IF NOT EXISTS idx_cocoons_stage ON cocoons(stage);
CREATE INDEX IF NOT EXISTS idx_notes_cocoon ON evolution_notes(cocoon_id, created_at);
CREATE INDEX IF NOT EXISTS idx_stage_log_cocoon ON stage_log(cocoon_id, seq);
CREATE INDEX IF NOT EXISTS idx_tokens_holder ON dream_tokens(holder_wallet);
CREATE INDEX IF NOT EXISTS idx_tokens_dream ON dream_tokens(dream_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tokens_one_mint ON dream_tokens(cocoon_id) WHERE purpose = 'mint' AND cocoon_id <> '';
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, created_at);
`

// Triggers keep dreams_fts in sync with dreams.
const Triggers = `
CREATE TRIGGER IF NOT EXISTS dreams_ai AFTER INSERT ON dreams BEGIN
    INSERT INTO dreams_fts(rowid, title, description, tags) VALUES (new.rowid, new.title, new.description, new.tags);
END;
CREATE TRIGGER IF NOT EXISTS dreams_ad AFTER DELETE ON dreams BEGIN
    INSERT INTO dreams_fts(dreams_fts, rowid, title, description, tags) VALUES('delete', old.rowid, old.title, old.description, old.tags);
END;
CREATE TRIGGER IF NOT EXISTS dreams_au AFTER UPDATE OF title, description, tags ON dreams BEGIN
    INSERT INTO dreams_fts(dreams_fts, rowid, title, description, tags) VALUES('delete', old.rowid, old.title, old.description, old.tags);
    INSERT INTO dreams_fts(rowid, title, description, tags) VALUES (new.rowid, new.title, new.description, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS stage_log_no_update BEFORE UPDATE ON stage_log BEGIN
    SELECT RAISE(ABORT, 'stage_log is append-only');
END;
CREATE TRIGGER IF NOT EXISTS stage_log_no_delete BEFORE DELETE ON stage_log BEGIN
    SELECT RAISE(ABORT, 'stage_log is append-only');
END;
CREATE TRIGGER IF NOT EXISTS dream_tokens_no_update BEFORE UPDATE ON dream_tokens BEGIN
    SELECT RAISE(ABORT, 'dream_tokens are immutable');
END;
CREATE TRIGGER IF NOT EXISTS dream_tokens_no_delete BEFORE DELETE ON dream_tokens BEGIN
    SELECT RAISE(ABORT, 'dream_tokens are immutable');
END;
`

// dsnPragmas configures SQLite the same way for every connection.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"
