package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"maintcore/decision"
	"maintcore/notify"
	"maintcore/workorder"
)

func (db *DB) UpsertDecision(d decision.Decision) error {
	var end sql.NullString
	if d.IdleWindow != nil {
		end = tsPtr(&d.IdleWindow.End)
	}
	_, err := db.Exec(db.Q(`INSERT INTO decisions
		(component_name, requires_maintenance, maintenance_type, priority, reasoning, suggested_start, window_end, estimated_hours, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(component_name) DO UPDATE SET
			requires_maintenance=excluded.requires_maintenance,
			maintenance_type=excluded.maintenance_type,
			priority=excluded.priority,
			reasoning=excluded.reasoning,
			suggested_start=excluded.suggested_start,
			window_end=excluded.window_end,
			estimated_hours=excluded.estimated_hours,
			decided_at=excluded.decided_at,
			updated_at=datetime('now','localtime')`),
		d.ComponentName, d.RequiresMaintenance, string(d.Type), string(d.Priority), d.Reasoning,
		tsPtr(d.SuggestedStart), end, d.EstimatedHours, ts(d.DecidedAt))
	return err
}

// DecisionRecord is the stored form of a decision.
type DecisionRecord struct {
	ComponentName       string
	RequiresMaintenance bool
	Type                string
	Priority            string
	Reasoning           string
	SuggestedStart      *time.Time
	DecidedAt           time.Time
}

func (db *DB) GetDecision(component string) (*DecisionRecord, error) {
	var r DecisionRecord
	var start, decided any
	err := db.QueryRow(db.Q(`SELECT component_name, requires_maintenance, maintenance_type, priority, reasoning, suggested_start, decided_at
		FROM decisions WHERE component_name=?`), component).
		Scan(&r.ComponentName, &r.RequiresMaintenance, &r.Type, &r.Priority, &r.Reasoning, &start, &decided)
	if err != nil {
		return nil, err
	}
	r.SuggestedStart = parseTimePtr(start)
	r.DecidedAt = parseTime(decided)
	return &r, nil
}

func (db *DB) SaveWorkOrder(wo *workorder.WorkOrder) error {
	spares, err := json.Marshal(wo.SparesRequired)
	if err != nil {
		return err
	}
	_, err = db.Exec(db.Q(`INSERT INTO work_orders
		(id, source, trigger_kind, anomaly_id, maintenance_type, status, priority, technician_id, scheduled_time, estimated_hours, instructions, spares_json, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			technician_id=excluded.technician_id,
			spares_json=excluded.spares_json,
			completed_at=excluded.completed_at,
			updated_at=datetime('now','localtime')`),
		wo.ID, wo.Source, string(wo.Trigger), wo.AnomalyID, string(wo.Type), string(wo.Status), string(wo.Priority),
		wo.TechnicianID, tsPtr(wo.ScheduledTime), wo.EstimatedHours, wo.Instructions, string(spares),
		ts(wo.CreatedAt), tsPtr(wo.CompletedAt))
	return err
}

// WorkOrderRecord is the stored summary of a work order.
type WorkOrderRecord struct {
	ID           string
	Source       string
	Trigger      string
	Status       string
	Priority     string
	TechnicianID string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

func (db *DB) GetWorkOrder(id string) (*WorkOrderRecord, error) {
	var r WorkOrderRecord
	var created, completed any
	err := db.QueryRow(db.Q(`SELECT id, source, trigger_kind, status, priority, technician_id, created_at, completed_at
		FROM work_orders WHERE id=?`), id).
		Scan(&r.ID, &r.Source, &r.Trigger, &r.Status, &r.Priority, &r.TechnicianID, &created, &completed)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(created)
	r.CompletedAt = parseTimePtr(completed)
	return &r, nil
}

func (db *DB) SavePurchaseOrder(po *workorder.PurchaseOrder) error {
	_, err := db.Exec(db.Q(`INSERT INTO purchase_orders
		(id, part_id, part_name, part_number, quantity, vendor, status, work_order_id, expected_delivery, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			updated_at=datetime('now','localtime')`),
		po.ID, po.PartID, po.PartName, po.PartNumber, po.Quantity, po.Vendor, string(po.Status),
		po.WorkOrderID, ts(po.ExpectedDelivery), ts(po.CreatedAt))
	return err
}

func (db *DB) GetPurchaseOrderStatus(id string) (string, error) {
	var status string
	err := db.QueryRow(db.Q(`SELECT status FROM purchase_orders WHERE id=?`), id).Scan(&status)
	return status, err
}

func (db *DB) SaveNotification(rec notify.Record) error {
	_, err := db.Exec(db.Q(`INSERT INTO notifications (id, work_order_id, role, recipient, message, sent_at, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`),
		rec.ID, rec.WorkOrderID, string(rec.Role), rec.Recipient, rec.Message, ts(rec.SentAt), rec.Acknowledged)
	return err
}

func (db *DB) ListNotifications(workOrderID string) ([]notify.Record, error) {
	rows, err := db.Query(db.Q(`SELECT id, work_order_id, role, recipient, message, sent_at, acknowledged
		FROM notifications WHERE work_order_id=? ORDER BY sent_at, id`), workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.Record
	for rows.Next() {
		var r notify.Record
		var role string
		var sent any
		if err := rows.Scan(&r.ID, &r.WorkOrderID, &role, &r.Recipient, &r.Message, &sent, &r.Acknowledged); err != nil {
			return nil, err
		}
		r.Role = notify.Role(role)
		r.SentAt = parseTime(sent)
		out = append(out, r)
	}
	return out, rows.Err()
}
