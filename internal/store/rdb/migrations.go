package rdb

// schema is valid for both SQLite and PostgreSQL. Booleans are stored as
// 0/1 integers.
const schema = `
CREATE TABLE IF NOT EXISTS user_mail_account (
    cid                     INTEGER NOT NULL,
    id                      INTEGER NOT NULL,
    user_id                 INTEGER NOT NULL,
    name                    TEXT    NOT NULL DEFAULT '',
    url                     TEXT    NOT NULL DEFAULT '',
    login                   TEXT    NOT NULL DEFAULT '',
    password                TEXT    NOT NULL DEFAULT '',
    primary_addr            TEXT    NOT NULL DEFAULT '',
    personal                TEXT,
    reply_to                TEXT,
    default_flag            INTEGER NOT NULL DEFAULT 0,
    spam_handler            TEXT    NOT NULL DEFAULT '',
    trash                   TEXT    NOT NULL DEFAULT '',
    sent                    TEXT    NOT NULL DEFAULT '',
    drafts                  TEXT    NOT NULL DEFAULT '',
    spam                    TEXT    NOT NULL DEFAULT '',
    confirmed_spam          TEXT    NOT NULL DEFAULT '',
    confirmed_ham           TEXT    NOT NULL DEFAULT '',
    archive                 TEXT    NOT NULL DEFAULT '',
    trash_fullname          TEXT    NOT NULL DEFAULT '',
    sent_fullname           TEXT    NOT NULL DEFAULT '',
    drafts_fullname         TEXT    NOT NULL DEFAULT '',
    spam_fullname           TEXT    NOT NULL DEFAULT '',
    confirmed_spam_fullname TEXT    NOT NULL DEFAULT '',
    confirmed_ham_fullname  TEXT    NOT NULL DEFAULT '',
    archive_fullname        TEXT    NOT NULL DEFAULT '',
    unified_inbox           INTEGER NOT NULL DEFAULT 0,
    starttls                INTEGER NOT NULL DEFAULT 0,
    oauth                   INTEGER NOT NULL DEFAULT -1,
    disabled                INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (cid, id, user_id)
);

CREATE TABLE IF NOT EXISTS user_mail_account_properties (
    cid     INTEGER NOT NULL,
    id      INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    name    TEXT    NOT NULL,
    value   TEXT    NOT NULL,
    PRIMARY KEY (cid, id, user_id, name)
);

CREATE TABLE IF NOT EXISTS user_transport_account (
    cid          INTEGER NOT NULL,
    id           INTEGER NOT NULL,
    user_id      INTEGER NOT NULL,
    name         TEXT    NOT NULL DEFAULT '',
    url          TEXT    NOT NULL DEFAULT '',
    login        TEXT    NOT NULL DEFAULT '',
    password     TEXT    NOT NULL DEFAULT '',
    send_addr    TEXT    NOT NULL DEFAULT '',
    personal     TEXT,
    reply_to     TEXT,
    default_flag INTEGER NOT NULL DEFAULT 0,
    starttls     INTEGER NOT NULL DEFAULT 0,
    oauth        INTEGER NOT NULL DEFAULT -1,
    disabled     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (cid, id, user_id)
);

CREATE TABLE IF NOT EXISTS user_transport_account_properties (
    cid     INTEGER NOT NULL,
    id      INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    name    TEXT    NOT NULL,
    value   TEXT    NOT NULL,
    PRIMARY KEY (cid, id, user_id, name)
);

CREATE TABLE IF NOT EXISTS pop3_storage_ids (
    cid      INTEGER NOT NULL,
    user_id  INTEGER NOT NULL,
    id       INTEGER NOT NULL,
    uidl     TEXT    NOT NULL,
    fullname TEXT    NOT NULL,
    uid      TEXT    NOT NULL,
    PRIMARY KEY (cid, user_id, id, uidl),
    FOREIGN KEY (cid, id, user_id) REFERENCES user_mail_account (cid, id, user_id)
);

CREATE TABLE IF NOT EXISTS pop3_storage_deleted (
    cid     INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    id      INTEGER NOT NULL,
    uidl    TEXT    NOT NULL,
    PRIMARY KEY (cid, user_id, id, uidl),
    FOREIGN KEY (cid, id, user_id) REFERENCES user_mail_account (cid, id, user_id)
);

CREATE TABLE IF NOT EXISTS sequence_mail_service (
    cid INTEGER NOT NULL PRIMARY KEY,
    id  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_mail_account_user ON user_mail_account (cid, user_id);
CREATE INDEX IF NOT EXISTS idx_user_transport_account_user ON user_transport_account (cid, user_id);
`

// referencingTables hold rows pointing at a user_mail_account row. They are
// cleaned, in this order, before the account row itself is deleted.
var referencingTables = []string{
	"pop3_storage_deleted",
	"pop3_storage_ids",
}

// contextTables are purged, in this order, when a whole context is removed.
var contextTables = []string{
	"pop3_storage_deleted",
	"pop3_storage_ids",
	"user_mail_account_properties",
	"user_transport_account_properties",
	"user_mail_account",
	"user_transport_account",
	"sequence_mail_service",
}
