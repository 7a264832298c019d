package store

import (
	"maintcore/audit"
)

// AppendAudit archives an in-memory audit entry. Replays of the same entry
// are ignored.
func (db *DB) AppendAudit(e audit.Entry) error {
	_, err := db.Exec(db.Q(`INSERT INTO audit_log (entry_id, action, details, actor, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO NOTHING`),
		e.ID, e.Action, e.Details, e.Actor, ts(e.Timestamp))
	return err
}

func (db *DB) ListAuditLog(limit int) ([]audit.Entry, error) {
	rows, err := db.Query(db.Q(`SELECT entry_id, action, details, actor, created_at FROM audit_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
