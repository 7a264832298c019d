package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS decisions (
    component_name       TEXT PRIMARY KEY,
    requires_maintenance INTEGER NOT NULL DEFAULT 0,
    maintenance_type     TEXT NOT NULL DEFAULT 'none',
    priority             TEXT NOT NULL DEFAULT 'low',
    reasoning            TEXT NOT NULL DEFAULT '',
    suggested_start      TEXT,
    window_end           TEXT,
    estimated_hours      REAL NOT NULL DEFAULT 0,
    decided_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS work_orders (
    id               TEXT PRIMARY KEY,
    source           TEXT NOT NULL,
    trigger_kind     TEXT NOT NULL,
    anomaly_id       TEXT NOT NULL DEFAULT '',
    maintenance_type TEXT NOT NULL,
    status           TEXT NOT NULL,
    priority         TEXT NOT NULL,
    technician_id    TEXT NOT NULL DEFAULT '',
    scheduled_time   TEXT,
    estimated_hours  REAL NOT NULL DEFAULT 0,
    instructions     TEXT NOT NULL DEFAULT '',
    spares_json      TEXT NOT NULL DEFAULT '[]',
    created_at       TEXT NOT NULL,
    completed_at     TEXT,
    updated_at       TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_work_orders_status ON work_orders(status);

CREATE TABLE IF NOT EXISTS purchase_orders (
    id                TEXT PRIMARY KEY,
    part_id           TEXT NOT NULL,
    part_name         TEXT NOT NULL DEFAULT '',
    part_number       TEXT NOT NULL DEFAULT '',
    quantity          INTEGER NOT NULL,
    vendor            TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    work_order_id     TEXT NOT NULL DEFAULT '',
    expected_delivery TEXT NOT NULL,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS notifications (
    id             TEXT PRIMARY KEY,
    work_order_id  TEXT NOT NULL,
    role           TEXT NOT NULL,
    recipient      TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL,
    sent_at        TEXT NOT NULL,
    acknowledged   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_notifications_wo ON notifications(work_order_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id    TEXT NOT NULL UNIQUE,
    action      TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
