package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"maintcore/audit"
	"maintcore/config"
	"maintcore/decision"
	"maintcore/dedupe"
	"maintcore/notify"
	"maintcore/telemetry"
	"maintcore/workorder"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// mockRecorder captures everything the engine persists.
type mockRecorder struct {
	mu            sync.Mutex
	decisions     []decision.Decision
	workOrders    map[string]workorder.Status
	purchases     map[string]workorder.POStatus
	notifications []notify.Record
	audits        []audit.Entry
	outbox        []string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		workOrders: make(map[string]workorder.Status),
		purchases:  make(map[string]workorder.POStatus),
	}
}

func (m *mockRecorder) UpsertDecision(d decision.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *mockRecorder) SaveWorkOrder(wo *workorder.WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workOrders[wo.ID] = wo.Status
	return nil
}

func (m *mockRecorder) SavePurchaseOrder(po *workorder.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[po.ID] = po.Status
	return nil
}

func (m *mockRecorder) SaveNotification(rec notify.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, rec)
	return nil
}

func (m *mockRecorder) AppendAudit(e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *mockRecorder) EnqueueOutbox(topic string, payload []byte, msgType, stationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, msgType)
	return nil
}

func (m *mockRecorder) countAudit(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.audits {
		if e.Action == action {
			n++
		}
	}
	return n
}

func testEngine(t *testing.T, sinks ...notify.Sink) (*Engine, *mockRecorder) {
	t.Helper()
	rec := newMockRecorder()
	e, err := New(Config{
		AppConfig: config.Defaults(),
		Recorder:  rec,
		Sinks:     sinks,
		Clock:     func() time.Time { return t0 },
		LogFunc:   t.Logf,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.Start()
	t.Cleanup(e.Stop)
	return e, rec
}

func anomaly(id, source string, sev telemetry.Severity) telemetry.Anomaly {
	return telemetry.Anomaly{ID: id, Timestamp: t0, Source: source, Severity: sev, Description: "test anomaly"}
}

func TestHealthCreatesDecisionAndWorkOrder(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()

	out, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{
		Name: "Main Spindle", Health: 65, RUL: 600, Trend: telemetry.TrendStable,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Decision == nil || out.Decision.Type != decision.TypeGeneral || out.Decision.Priority != decision.PriorityMedium {
		t.Fatalf("decision = %+v", out.Decision)
	}
	wo := out.WorkOrder
	if wo == nil {
		t.Fatal("expected a work order")
	}
	if wo.Status != workorder.StatusScheduled {
		t.Errorf("status = %s, want scheduled", wo.Status)
	}
	if wo.TechnicianID != "tech-3" {
		t.Errorf("technician = %s, want tech-3 (junior)", wo.TechnicianID)
	}
	if wo.ScheduledTime == nil || !wo.ScheduledTime.Equal(t0) {
		t.Errorf("scheduled = %v, want %v on an empty schedule", wo.ScheduledTime, t0)
	}
	// maintenance team, supervisor, technician, stores
	if len(wo.NotificationsSent) != 4 {
		t.Errorf("notifications = %d, want 4", len(wo.NotificationsSent))
	}

	if len(rec.decisions) != 1 {
		t.Errorf("recorded decisions = %d, want 1", len(rec.decisions))
	}
	if rec.workOrders[wo.ID] != workorder.StatusScheduled {
		t.Errorf("recorded work order = %q", rec.workOrders[wo.ID])
	}
	if len(rec.notifications) != 4 {
		t.Errorf("recorded notifications = %d, want 4", len(rec.notifications))
	}
	if len(rec.outbox) != 5 || rec.outbox[0] != telemetry.TypeWorkOrderCreated {
		t.Errorf("outbox = %v", rec.outbox)
	}

	entries := e.AuditEntries(0)
	if entries[len(entries)-1].Action != audit.ActionDecisionRecorded {
		t.Errorf("oldest audit entry = %s, want decision first", entries[len(entries)-1].Action)
	}
	if rec.countAudit(audit.ActionWorkOrderCreated) != 1 || rec.countAudit(audit.ActionNotificationSent) != 4 {
		t.Errorf("archived audit = %+v", rec.audits)
	}
}

func TestIdenticalHealthUpdateIsNoop(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()
	c := telemetry.ComponentHealth{Name: "Turret Drive", Health: 45, RUL: 200, Trend: telemetry.TrendDeclining}

	first, err := e.SubmitHealth(ctx, c)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := e.SubmitHealth(ctx, c)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Skipped != SkipUnchanged {
		t.Errorf("skipped = %q, want %q", second.Skipped, SkipUnchanged)
	}
	if second.WorkOrder != nil {
		t.Error("identical update must not create a work order")
	}
	if second.Decision == nil || !second.Decision.DecidedAt.Equal(first.Decision.DecidedAt) {
		t.Errorf("unchanged outcome should return the standing decision")
	}

	wos, _ := e.WorkOrders(ctx)
	if len(wos) != 1 {
		t.Errorf("work orders = %d, want 1", len(wos))
	}
	if n := rec.countAudit(audit.ActionDecisionRecorded); n != 1 {
		t.Errorf("decision audits = %d, want 1", n)
	}
}

func TestChangedDecisionKeepsSingleOpenOrder(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	if _, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "Main Spindle", Health: 65, RUL: 600, Trend: telemetry.TrendStable}); err != nil {
		t.Fatal(err)
	}
	out, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "Main Spindle", Health: 25, RUL: 50, Trend: telemetry.TrendCritical})
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.Priority != decision.PriorityCritical {
		t.Errorf("priority = %s, want critical", out.Decision.Priority)
	}
	if out.Skipped != SkipOpenOrder || out.WorkOrder != nil {
		t.Errorf("outcome = %+v, want skipped for open order", out)
	}
	decs, _ := e.Decisions(ctx)
	if len(decs) != 1 || decs[0].Priority != decision.PriorityCritical {
		t.Errorf("decisions = %+v, want the superseding decision only", decs)
	}
}

func TestNotRequiredCreatesNoWorkOrder(t *testing.T) {
	e, _ := testEngine(t)
	out, err := e.SubmitHealth(context.Background(), telemetry.ComponentHealth{
		Name: "Feeder", Health: 92, RUL: 1500, Trend: telemetry.TrendStable,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.RequiresMaintenance || out.WorkOrder != nil {
		t.Errorf("outcome = %+v", out)
	}
}

func TestAnomalyIdempotent(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()
	a := anomaly("anom-1", "Temperature Sensor", telemetry.SeverityMedium)

	first, err := e.SubmitAnomaly(ctx, a)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.WorkOrder == nil || first.WorkOrder.AnomalyID != "anom-1" {
		t.Fatalf("first outcome = %+v", first)
	}
	second, err := e.SubmitAnomaly(ctx, a)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Skipped != SkipDuplicate || second.WorkOrder != nil {
		t.Errorf("second outcome = %+v, want duplicate", second)
	}
	wos, _ := e.WorkOrders(ctx)
	if len(wos) != 1 {
		t.Errorf("work orders = %d, want 1", len(wos))
	}
	if rec.countAudit(audit.ActionAnomalyDuplicate) != 1 {
		t.Error("expected an anomaly.duplicate audit entry")
	}
}

// claimedElsewhere misses on lookup, as when another instance marks the id
// after admission, but refuses the claim.
type claimedElsewhere struct {
	*dedupe.MemorySet
}

func (claimedElsewhere) Contains(context.Context, string) (bool, error) { return false, nil }

func TestAnomalyClaimedByAnotherWriterIsDuplicate(t *testing.T) {
	shared := dedupe.NewMemorySet()
	shared.Add(context.Background(), "anom-raced")
	rec := newMockRecorder()
	e, err := New(Config{
		AppConfig: config.Defaults(),
		Recorder:  rec,
		Processed: claimedElsewhere{shared},
		Clock:     func() time.Time { return t0 },
		LogFunc:   t.Logf,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.Start()
	t.Cleanup(e.Stop)
	ctx := context.Background()

	out, err := e.SubmitAnomaly(ctx, anomaly("anom-raced", "Temperature Sensor", telemetry.SeverityMedium))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Skipped != SkipDuplicate || out.WorkOrder != nil {
		t.Errorf("outcome = %+v, want duplicate", out)
	}
	wos, _ := e.WorkOrders(ctx)
	if len(wos) != 0 {
		t.Errorf("work orders = %d, want 0", len(wos))
	}
	if rec.countAudit(audit.ActionAnomalyDuplicate) != 1 {
		t.Error("expected an anomaly.duplicate audit entry")
	}
}

func TestAnomalyAdmissionCap(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()

	created, skipped := 0, 0
	for i := 0; i < 5; i++ {
		out, err := e.SubmitAnomaly(ctx, anomaly(fmt.Sprintf("anom-%d", i), "Line Monitor", telemetry.SeverityLow))
		if err != nil {
			t.Fatalf("anomaly %d: %v", i, err)
		}
		if out.WorkOrder != nil {
			created++
		}
		if out.Skipped == SkipOverCap {
			skipped++
		}
	}
	if created != 2 || skipped != 3 {
		t.Errorf("created=%d skipped=%d, want 2 and 3", created, skipped)
	}
	if n := rec.countAudit(audit.ActionAnomalySkipped); n != 3 {
		t.Errorf("anomaly.skipped audits = %d, want 3", n)
	}

	// completing one frees a slot, and a skipped anomaly can be resubmitted
	wos, _ := e.WorkOrders(ctx)
	id := wos[0].ID
	if _, err := e.StartWorkOrder(ctx, id, audit.ActorOperator); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.CompleteWorkOrder(ctx, id, audit.ActorOperator); err != nil {
		t.Fatalf("complete: %v", err)
	}
	out, err := e.SubmitAnomaly(ctx, anomaly("anom-4", "Line Monitor", telemetry.SeverityLow))
	if err != nil {
		t.Fatal(err)
	}
	if out.WorkOrder == nil {
		t.Errorf("resubmitted anomaly outcome = %+v, want admitted", out)
	}
}

func TestInvalidInputRejectedWithoutMutation(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()

	_, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "Main Spindle", Health: 120, RUL: 10, Trend: telemetry.TrendStable})
	if !errors.Is(err, telemetry.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	_, err = e.SubmitAnomaly(ctx, telemetry.Anomaly{ID: "x", Source: "s", Severity: "extreme", Timestamp: t0})
	if !errors.Is(err, telemetry.ErrInvalidInput) {
		t.Fatalf("anomaly err = %v, want ErrInvalidInput", err)
	}

	decs, _ := e.Decisions(ctx)
	comps, _ := e.Components(ctx)
	wos, _ := e.WorkOrders(ctx)
	if len(decs)+len(comps)+len(wos) != 0 {
		t.Errorf("state mutated: %d decisions, %d components, %d work orders", len(decs), len(comps), len(wos))
	}
	if n := rec.countAudit(audit.ActionInputRejected); n != 2 {
		t.Errorf("input.rejected audits = %d, want 2", n)
	}
	if len(rec.decisions) != 0 {
		t.Error("rejected input reached the recorder")
	}
}

func TestMalformedScheduleRejected(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	good := []telemetry.ScheduledBatch{{ID: "B1", StartTime: t0.Add(time.Hour), EndTime: t0.Add(3 * time.Hour)}}
	if err := e.SetSchedule(ctx, good); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	bad := []telemetry.ScheduledBatch{{ID: "B2", StartTime: t0.Add(5 * time.Hour), EndTime: t0.Add(4 * time.Hour)}}
	if err := e.SetSchedule(ctx, bad); !errors.Is(err, telemetry.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	got, _ := e.Schedule(ctx)
	if len(got) != 1 || got[0].ID != "B1" {
		t.Errorf("schedule = %+v, want previous schedule kept", got)
	}

	// a 2h job does not fit before B1, so it goes after it
	out, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "Main Spindle", Health: 65, RUL: 600, Trend: telemetry.TrendStable})
	if err != nil {
		t.Fatal(err)
	}
	if want := t0.Add(3 * time.Hour); out.Decision.SuggestedStart == nil || !out.Decision.SuggestedStart.Equal(want) {
		t.Errorf("suggested start = %v, want %v", out.Decision.SuggestedStart, want)
	}
}

func TestSamplesBecomeAnomalyWorkOrders(t *testing.T) {
	e, _ := testEngine(t)
	outs, err := e.SubmitSamples(context.Background(), []telemetry.SensorSample{
		{Vibration: 8, Temperature: 40, MotorLoad: 50, Timestamp: t0},
		{Vibration: 2, Temperature: 40, MotorLoad: 50, Timestamp: t0},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outs))
	}
	wo := outs[0].WorkOrder
	if wo == nil || wo.Source != "Vibration Sensor" {
		t.Fatalf("work order = %+v", wo)
	}
	if wo.Type != decision.TypeSpareReplacement || wo.Priority != decision.PriorityHigh {
		t.Errorf("type/priority = %s/%s, want spare_replacement/high", wo.Type, wo.Priority)
	}
	if wo.TechnicianID != "tech-2" {
		t.Errorf("technician = %s, want tech-2 (senior)", wo.TechnicianID)
	}
}

func TestRedeliveredSamplesAreDuplicates(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()
	batch := []telemetry.SensorSample{{Machine: "Press 1", Vibration: 9, Timestamp: t0}}

	first, err := e.SubmitSamples(ctx, batch)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if len(first) != 1 || first[0].WorkOrder == nil {
		t.Fatalf("first outcomes = %+v", first)
	}
	second, err := e.SubmitSamples(ctx, batch)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(second) != 1 || second[0].Skipped != SkipDuplicate || second[0].WorkOrder != nil {
		t.Fatalf("second outcomes = %+v, want one duplicate", second)
	}
	if second[0].Anomaly.ID != first[0].Anomaly.ID {
		t.Errorf("anomaly id changed on redelivery: %s vs %s", first[0].Anomaly.ID, second[0].Anomaly.ID)
	}
	wos, _ := e.WorkOrders(ctx)
	if len(wos) != 1 {
		t.Errorf("work orders = %d, want 1", len(wos))
	}
	if rec.countAudit(audit.ActionAnomalyDuplicate) != 1 {
		t.Error("expected an anomaly.duplicate audit entry")
	}
}

func TestSamplesRejectedAsBatch(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.SubmitSamples(context.Background(), []telemetry.SensorSample{
		{Vibration: 9, Timestamp: t0},
		{Vibration: 9},
	})
	if !errors.Is(err, telemetry.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	wos, _ := e.WorkOrders(context.Background())
	if len(wos) != 0 {
		t.Errorf("work orders = %d, want 0", len(wos))
	}
}

func TestDriftRaisesAnomaly(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	signals := make([]telemetry.ProcessSignal, 30)
	for i := range signals {
		signals[i] = telemetry.ProcessSignal{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{"weight": 100 + float64(i)*0.5},
		}
	}
	drifts, outs, err := e.SubmitSignals(ctx, signals)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(drifts) != 1 || drifts[0].Parameter != "weight" || drifts[0].Severity != telemetry.SeverityHigh {
		t.Fatalf("drifts = %+v", drifts)
	}
	if len(outs) != 1 || outs[0].WorkOrder == nil || outs[0].WorkOrder.Source != "weight" {
		t.Fatalf("outcomes = %+v", outs)
	}

	// the same drift continuing is not reported again
	drifts, outs, err = e.SubmitSignals(ctx, []telemetry.ProcessSignal{
		{Timestamp: t0.Add(30 * time.Minute), Values: map[string]float64{"weight": 115}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(drifts) != 0 || len(outs) != 0 {
		t.Errorf("repeat drifts = %d outcomes = %d, want none", len(drifts), len(outs))
	}
}

func TestOperatorLifecycle(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()

	// Upper Punch Set has no stock
	out, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "Punch Assembly", Health: 40, RUL: 120, Trend: telemetry.TrendDeclining})
	if err != nil {
		t.Fatal(err)
	}
	wo := out.WorkOrder
	if wo == nil || wo.Status != workorder.StatusWaitingSpares {
		t.Fatalf("work order = %+v, want waiting-spares", wo)
	}
	if len(out.PurchaseOrders) != 1 || out.PurchaseOrders[0].Quantity != 2 {
		t.Fatalf("purchase orders = %+v, want one for 2 units", out.PurchaseOrders)
	}
	po := out.PurchaseOrders[0]

	if _, err := e.StartWorkOrder(ctx, wo.ID, audit.ActorOperator); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Errorf("start while waiting: err = %v", err)
	}
	if _, err := e.ReleaseSpares(ctx, wo.ID, audit.ActorOperator); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Errorf("release while short: err = %v", err)
	}

	if _, err := e.AdvancePurchaseOrder(ctx, po.ID, workorder.POReceived, audit.ActorOperator); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if covered, _ := e.CoveredWaiting(ctx); len(covered) != 1 || covered[0] != wo.ID {
		t.Errorf("covered = %v", covered)
	}
	if _, err := e.AdvancePurchaseOrder(ctx, po.ID, workorder.POShipped, audit.ActorOperator); !errors.Is(err, workorder.ErrInvalidTransition) {
		t.Errorf("backwards advance: err = %v", err)
	}

	released, err := e.ReleaseSpares(ctx, wo.ID, audit.ActorOperator)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != workorder.StatusScheduled {
		t.Errorf("released status = %s", released.Status)
	}
	if _, err := e.StartWorkOrder(ctx, wo.ID, audit.ActorOperator); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := e.CompleteWorkOrder(ctx, wo.ID, audit.ActorOperator)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != workorder.StatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed = %+v", done)
	}

	techs, _ := e.Technicians(ctx)
	for _, tech := range techs {
		if !tech.Available {
			t.Errorf("technician %s still bound after completion", tech.ID)
		}
	}
	if rec.workOrders[wo.ID] != workorder.StatusCompleted {
		t.Errorf("recorded status = %s", rec.workOrders[wo.ID])
	}
	if rec.purchases[po.ID] != workorder.POReceived {
		t.Errorf("recorded po status = %s", rec.purchases[po.ID])
	}
	if n := rec.countAudit(audit.ActionWorkOrderStatus); n != 3 {
		t.Errorf("status audits = %d, want 3", n)
	}
	for _, entry := range e.AuditEntries(1) {
		if entry.Actor != audit.ActorOperator {
			t.Errorf("actor = %s, want operator", entry.Actor)
		}
	}
}

func TestReplenish(t *testing.T) {
	e, rec := testEngine(t)
	ctx := context.Background()

	pos, err := e.Replenish(ctx, audit.ActorOperator)
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 1 || pos[0].PartID != "sp-3" || pos[0].Quantity != 2 || pos[0].WorkOrderID != workorder.AutoReplenishRef {
		t.Fatalf("replenish = %+v", pos)
	}
	again, _ := e.Replenish(ctx, audit.ActorOperator)
	if len(again) != 0 {
		t.Errorf("second replenish = %d orders, want 0 while one is open", len(again))
	}
	if len(rec.purchases) != 1 {
		t.Errorf("recorded purchase orders = %d", len(rec.purchases))
	}
}

func TestSinkFailureDoesNotRollBack(t *testing.T) {
	failing := notify.SinkFunc(func(context.Context, notify.Record) error { return errors.New("broker down") })
	e, _ := testEngine(t, failing)

	out, err := e.SubmitAnomaly(context.Background(), anomaly("anom-9", "Motor Load Sensor", telemetry.SeverityMedium))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.WorkOrder == nil {
		t.Fatal("work order should survive sink failure")
	}
	wo, err := e.WorkOrder(context.Background(), out.WorkOrder.ID)
	if err != nil || len(wo.NotificationsSent) == 0 {
		t.Errorf("stored work order = %+v, %v", wo, err)
	}
}

func TestSubmitHonoursContext(t *testing.T) {
	e, err := New(Config{Clock: func() time.Time { return t0 }, LogFunc: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	// not started: nothing drains the loop
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.SubmitHealth(ctx, telemetry.ComponentHealth{Name: "x", Health: 50, Trend: telemetry.TrendStable}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	e.Stop()
	if err := e.SetSchedule(context.Background(), nil); !errors.Is(err, ErrStopped) {
		t.Errorf("after stop err = %v, want ErrStopped", err)
	}
}

func TestIngestHandlerSubmits(t *testing.T) {
	e, _ := testEngine(t)
	ing := telemetry.NewIngestor(e.IngestHandler(time.Second), nil)

	env, err := telemetry.NewEnvelope(telemetry.TypeHealthUpdate,
		telemetry.Address{Role: telemetry.RoleGateway, Station: "press-2"},
		telemetry.Address{Role: telemetry.RoleCore},
		&telemetry.HealthUpdate{Component: telemetry.ComponentHealth{Name: "Main Spindle", Health: 55, RUL: 300, Trend: telemetry.TrendDeclining}})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := env.Encode()
	ing.HandleRaw(data)

	decs, _ := e.Decisions(context.Background())
	if len(decs) != 1 || decs[0].Priority != decision.PriorityHigh {
		t.Errorf("decisions = %+v", decs)
	}
}

func TestEventBusFilters(t *testing.T) {
	bus := NewEventBus(func() time.Time { return t0 })
	var all, filtered int
	bus.Subscribe(func(Event) { all++ })
	id := bus.SubscribeTypes(func(evt Event) {
		filtered++
		if !evt.Timestamp.Equal(t0) {
			t.Errorf("timestamp = %v", evt.Timestamp)
		}
	}, EventDriftDetected)

	bus.Emit(Event{Type: EventDriftDetected})
	bus.Emit(Event{Type: EventInputRejected})
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventDriftDetected})

	if all != 3 || filtered != 1 {
		t.Errorf("all=%d filtered=%d, want 3 and 1", all, filtered)
	}
	if EventDriftDetected.String() != "drift" {
		t.Errorf("name = %s", EventDriftDetected.String())
	}
}
