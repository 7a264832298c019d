package workorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"maintcore/config"
	"maintcore/decision"
	"maintcore/dedupe"
	"maintcore/notify"
	"maintcore/resources"
	"maintcore/schedule"
	"maintcore/telemetry"
)

type Options struct {
	Pool        *resources.Pool
	Inventory   *resources.Inventory
	Processed   dedupe.Set
	Commitments []config.VendorCommitment
	// MaxOpenAnomalyOrders caps open anomaly-triggered work orders.
	// Negative disables the cap.
	MaxOpenAnomalyOrders int
	Now                  func() time.Time
}

// Manager owns work orders and purchase orders. It is not safe for
// concurrent use; the engine serializes every call.
type Manager struct {
	pool        *resources.Pool
	inv         *resources.Inventory
	processed   dedupe.Set
	commitments []config.VendorCommitment
	maxAnomaly  int
	now         func() time.Time

	orders []*WorkOrder
	byID   map[string]*WorkOrder
	pos    []*PurchaseOrder
	poByID map[string]*PurchaseOrder
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		pool:        opts.Pool,
		inv:         opts.Inventory,
		processed:   opts.Processed,
		commitments: opts.Commitments,
		maxAnomaly:  opts.MaxOpenAnomalyOrders,
		now:         opts.Now,
		byID:        make(map[string]*WorkOrder),
		poByID:      make(map[string]*PurchaseOrder),
	}
	if m.processed == nil {
		m.processed = dedupe.NewMemorySet()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func newID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:8])
}

func validate(r Request) error {
	if r.Source == "" {
		return fmt.Errorf("%w: work order source is required", telemetry.ErrInvalidInput)
	}
	if r.Type != decision.TypeGeneral && r.Type != decision.TypeSpareReplacement {
		return fmt.Errorf("%w: work order type %q", telemetry.ErrInvalidInput, r.Type)
	}
	if r.Priority.Rank() == 0 {
		return fmt.Errorf("%w: work order priority %q", telemetry.ErrInvalidInput, r.Priority)
	}
	if r.EstimatedHours <= 0 {
		return fmt.Errorf("%w: estimated duration %.2fh", telemetry.ErrInvalidInput, r.EstimatedHours)
	}
	switch r.Trigger {
	case TriggerComponent:
	case TriggerAnomaly:
		if r.AnomalyID == "" {
			return fmt.Errorf("%w: anomaly work order without anomaly id", telemetry.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: work order trigger %q", telemetry.ErrInvalidInput, r.Trigger)
	}
	return nil
}

// Admit is the admission check for anomaly-triggered work orders. An id
// already processed is a Duplicate; with the cap of open anomaly orders
// reached the anomaly is OverCap. The error is reserved for the processed
// set failing.
func (m *Manager) Admit(ctx context.Context, anomalyID string) (Admission, error) {
	seen, err := m.processed.Contains(ctx, anomalyID)
	if err != nil {
		return OverCap, fmt.Errorf("admit %s: %w", anomalyID, err)
	}
	if seen {
		return Duplicate, nil
	}
	if m.maxAnomaly >= 0 && m.OpenAnomalyOrders() >= m.maxAnomaly {
		return OverCap, nil
	}
	return Admitted, nil
}

// Create derives the initial status, binds a technician, raises a purchase
// order per short part and fans out notifications. Invalid requests fail
// before anything is mutated.
func (m *Manager) Create(ctx context.Context, r Request) (*WorkOrder, []*PurchaseOrder, error) {
	if err := validate(r); err != nil {
		return nil, nil, err
	}
	if r.Trigger == TriggerAnomaly {
		claimed, err := dedupe.Claim(ctx, m.processed, r.AnomalyID)
		if err != nil {
			return nil, nil, fmt.Errorf("mark anomaly %s processed: %w", r.AnomalyID, err)
		}
		if !claimed {
			return nil, nil, fmt.Errorf("create for anomaly %s: %w", r.AnomalyID, ErrAlreadyProcessed)
		}
	}
	now := m.now()

	reqs := m.inv.Requirements(r.Source)
	short := resources.Shortfalls(reqs)
	tech := m.pool.FindTechnician(RequiredSkill(r))

	wo := &WorkOrder{
		ID:             newID("WO"),
		Source:         r.Source,
		Trigger:        r.Trigger,
		AnomalyID:      r.AnomalyID,
		Type:           r.Type,
		Priority:       r.Priority,
		ScheduledTime:  r.ScheduledTime,
		SparesRequired: reqs,
		EstimatedHours: r.EstimatedHours,
		CreatedAt:      now,
		Instructions:   r.Instructions,
	}
	if wo.Instructions == "" {
		wo.Instructions = fmt.Sprintf("Perform %s maintenance on %s.", r.Type, r.Source)
	}

	switch {
	case len(short) > 0:
		wo.Status = StatusWaitingSpares
	case tech != nil:
		wo.Status = StatusScheduled
	default:
		wo.Status = StatusPending
	}

	if tech != nil {
		if err := m.bind(wo, tech); err != nil {
			return nil, nil, err
		}
	}

	var created []*PurchaseOrder
	for _, s := range short {
		po := m.newPurchaseOrder(s.Part, s.Quantity-s.Part.OnHand+s.Part.MinStock, wo.ID, now)
		created = append(created, po)
	}

	wo.NotificationsSent = notify.FanOut(subjectOf(wo), now)

	m.orders = append(m.orders, wo)
	m.byID[wo.ID] = wo

	out := make([]*PurchaseOrder, len(created))
	for i, po := range created {
		c := *po
		out[i] = &c
	}
	return wo.clone(), out, nil
}

// bind reserves tech for wo until the scheduled end of the job, or with no
// known end when the order is unscheduled.
func (m *Manager) bind(wo *WorkOrder, tech *resources.Technician) error {
	var next *time.Time
	if wo.ScheduledTime != nil {
		t := wo.ScheduledTime.Add(schedule.Hours(wo.EstimatedHours))
		next = &t
	}
	if err := m.pool.Reserve(tech.ID, wo.ID, next); err != nil {
		return err
	}
	wo.TechnicianID = tech.ID
	wo.TechnicianName = tech.Name
	return nil
}

func subjectOf(wo *WorkOrder) notify.Subject {
	s := notify.Subject{
		WorkOrderID:    wo.ID,
		Source:         wo.Source,
		Type:           string(wo.Type),
		Priority:       string(wo.Priority),
		Status:         string(wo.Status),
		TechnicianID:   wo.TechnicianID,
		TechnicianName: wo.TechnicianName,
		ScheduledTime:  wo.ScheduledTime,
	}
	for _, r := range wo.SparesRequired {
		s.Parts = append(s.Parts, fmt.Sprintf("%dx %s", r.Quantity, r.Part.Name))
	}
	return s
}

func (m *Manager) newPurchaseOrder(p resources.SparePart, qty int, ref string, now time.Time) *PurchaseOrder {
	po := &PurchaseOrder{
		ID:               newID("PO"),
		PartID:           p.ID,
		PartName:         p.Name,
		PartNumber:       p.PartNumber,
		Quantity:         qty,
		Vendor:           p.Vendor,
		Status:           POPending,
		CreatedAt:        now,
		ExpectedDelivery: m.expectedDelivery(p, now),
		WorkOrderID:      ref,
	}
	m.pos = append(m.pos, po)
	m.poByID[po.ID] = po
	return po
}

// expectedDelivery prefers a vendor's committed date over lead time.
func (m *Manager) expectedDelivery(p resources.SparePart, now time.Time) time.Time {
	for _, c := range m.commitments {
		if c.Vendor == p.Vendor && c.PartNumber == p.PartNumber {
			return c.Delivery
		}
	}
	return now.AddDate(0, 0, p.LeadTimeDays)
}

// OpenAnomalyOrders counts anomaly-triggered work orders not yet completed.
func (m *Manager) OpenAnomalyOrders() int {
	n := 0
	for _, wo := range m.orders {
		if wo.Trigger == TriggerAnomaly && wo.Open() {
			n++
		}
	}
	return n
}

// OpenComponentOrder returns the open component-triggered order for source.
func (m *Manager) OpenComponentOrder(source string) (*WorkOrder, bool) {
	for _, wo := range m.orders {
		if wo.Trigger == TriggerComponent && wo.Source == source && wo.Open() {
			return wo.clone(), true
		}
	}
	return nil, false
}

func (m *Manager) Get(id string) (*WorkOrder, error) {
	wo, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	return wo.clone(), nil
}

// List returns copies, newest first.
func (m *Manager) List() []*WorkOrder {
	out := make([]*WorkOrder, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		out = append(out, m.orders[i].clone())
	}
	return out
}

func (m *Manager) GetPurchaseOrder(id string) (*PurchaseOrder, error) {
	po, ok := m.poByID[id]
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", id, ErrNotFound)
	}
	c := *po
	return &c, nil
}

// PurchaseOrders returns copies, newest first.
func (m *Manager) PurchaseOrders() []*PurchaseOrder {
	out := make([]*PurchaseOrder, 0, len(m.pos))
	for i := len(m.pos) - 1; i >= 0; i-- {
		c := *m.pos[i]
		out = append(out, &c)
	}
	return out
}
