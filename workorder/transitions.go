package workorder

import (
	"fmt"

	"maintcore/resources"
)

// Start moves a scheduled or pending order into progress.
func (m *Manager) Start(id string) (*WorkOrder, Status, error) {
	wo, ok := m.byID[id]
	if !ok {
		return nil, "", fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	from := wo.Status
	if from != StatusScheduled && from != StatusPending {
		return nil, from, fmt.Errorf("start %s from %s: %w", id, from, ErrInvalidTransition)
	}
	wo.Status = StatusInProgress
	return wo.clone(), from, nil
}

// Complete closes an in-progress order and frees its technician.
func (m *Manager) Complete(id string) (*WorkOrder, Status, error) {
	wo, ok := m.byID[id]
	if !ok {
		return nil, "", fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	from := wo.Status
	if from != StatusInProgress {
		return nil, from, fmt.Errorf("complete %s from %s: %w", id, from, ErrInvalidTransition)
	}
	if wo.TechnicianID != "" {
		if err := m.pool.Release(wo.TechnicianID); err != nil {
			return nil, from, err
		}
	}
	now := m.now()
	wo.Status = StatusCompleted
	wo.CompletedAt = &now
	return wo.clone(), from, nil
}

// ReleaseSpares re-evaluates a waiting-spares order against current stock.
// Once every part is covered the order becomes scheduled when a technician
// holds it (or one can be found now) and pending otherwise.
func (m *Manager) ReleaseSpares(id string) (*WorkOrder, Status, error) {
	wo, ok := m.byID[id]
	if !ok {
		return nil, "", fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	from := wo.Status
	if from != StatusWaitingSpares {
		return nil, from, fmt.Errorf("release spares %s from %s: %w", id, from, ErrInvalidTransition)
	}

	refreshed := make([]resources.Requirement, 0, len(wo.SparesRequired))
	for _, r := range wo.SparesRequired {
		if p, ok := m.inv.Get(r.Part.ID); ok {
			r.Part = p
		}
		refreshed = append(refreshed, r)
	}
	if short := resources.Shortfalls(refreshed); len(short) > 0 {
		return nil, from, fmt.Errorf("release spares %s: %s still short (%d on hand, %d needed): %w",
			id, short[0].Part.Name, short[0].Part.OnHand, short[0].Quantity, ErrInvalidTransition)
	}
	wo.SparesRequired = refreshed

	if wo.TechnicianID == "" {
		req := Request{Type: wo.Type, Priority: wo.Priority}
		if tech := m.pool.FindTechnician(RequiredSkill(req)); tech != nil {
			if err := m.bind(wo, tech); err != nil {
				return nil, from, err
			}
		}
	}
	if wo.TechnicianID != "" {
		wo.Status = StatusScheduled
	} else {
		wo.Status = StatusPending
	}
	return wo.clone(), from, nil
}

// AdvancePurchaseOrder moves a purchase order forward along
// pending, approved, ordered, shipped, received. Steps may be skipped but
// never reversed. Receiving credits the inventory.
func (m *Manager) AdvancePurchaseOrder(id string, to POStatus) (*PurchaseOrder, POStatus, error) {
	po, ok := m.poByID[id]
	if !ok {
		return nil, "", fmt.Errorf("purchase order %s: %w", id, ErrNotFound)
	}
	from := po.Status
	if to.rank() < 0 || to.rank() <= from.rank() {
		return nil, from, fmt.Errorf("purchase order %s from %s to %s: %w", id, from, to, ErrInvalidTransition)
	}
	if to == POReceived {
		if err := m.inv.Receive(po.PartID, po.Quantity); err != nil {
			return nil, from, err
		}
	}
	po.Status = to
	c := *po
	return &c, from, nil
}

// AutoReplenish raises a purchase order for every part below its minimum
// stock that has no purchase order in flight, sized to twice the minimum.
func (m *Manager) AutoReplenish() []*PurchaseOrder {
	open := make(map[string]bool)
	for _, po := range m.pos {
		if po.Open() {
			open[po.PartID] = true
		}
	}
	now := m.now()
	var out []*PurchaseOrder
	for _, p := range m.inv.BelowMinStock() {
		if open[p.ID] {
			continue
		}
		po := m.newPurchaseOrder(p, p.MinStock*2-p.OnHand, AutoReplenishRef, now)
		c := *po
		out = append(out, &c)
	}
	return out
}

// CoveredWaiting lists waiting-spares orders whose parts are now in stock.
func (m *Manager) CoveredWaiting() []string {
	var ids []string
	for _, wo := range m.orders {
		if wo.Status != StatusWaitingSpares {
			continue
		}
		covered := true
		for _, r := range wo.SparesRequired {
			p, ok := m.inv.Get(r.Part.ID)
			if !ok || p.OnHand < r.Quantity {
				covered = false
				break
			}
		}
		if covered {
			ids = append(ids, wo.ID)
		}
	}
	return ids
}
