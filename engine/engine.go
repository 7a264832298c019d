package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"maintcore/audit"
	"maintcore/config"
	"maintcore/decision"
	"maintcore/dedupe"
	"maintcore/detect"
	"maintcore/metrics"
	"maintcore/notify"
	"maintcore/resources"
	"maintcore/telemetry"
	"maintcore/workorder"
)

// ErrStopped is returned by submissions made after Stop.
var ErrStopped = errors.New("engine stopped")

type LogFunc func(format string, args ...any)

// ConnectionChecker reports messaging connectivity for the health loop.
type ConnectionChecker interface {
	IsConnected() bool
}

type Config struct {
	AppConfig *config.Config
	// Recorder receives durable copies of decisions, orders, notifications
	// and audit entries. Nil keeps everything in memory.
	Recorder  Recorder
	Processed dedupe.Set
	Sinks     []notify.Sink
	Clock     func() time.Time
	MsgClient ConnectionChecker
	LogFunc   LogFunc
	DebugFunc LogFunc
}

// Engine owns all mutable maintenance state. Every mutation runs on a single
// loop goroutine, so one event's decision, allocation, work order,
// notifications and audit entries are applied before the next event starts.
type Engine struct {
	cfg      *config.Config
	recorder Recorder
	msg      ConnectionChecker
	now      func() time.Time
	logFn    LogFunc
	debugFn  LogFunc

	policy     decision.Policy
	thresholds detect.Thresholds
	drift      *detect.DriftTracker
	pool       *resources.Pool
	inv        *resources.Inventory
	orders     *workorder.Manager
	dispatcher *notify.Dispatcher

	Events *EventBus
	Audit  *audit.Log

	// loop-owned state
	batches    []telemetry.ScheduledBatch
	decisions  map[string]decision.Decision
	components map[string]telemetry.ComponentHealth

	reqs         chan func()
	stopChan     chan struct{}
	stopOnce     sync.Once
	startOnce    sync.Once
	msgConnected bool
}

// New builds an engine from configuration. It fails only on malformed seed
// data.
func New(c Config) (*Engine, error) {
	cfg := c.AppConfig
	if cfg == nil {
		cfg = config.Defaults()
	}
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	debugFn := c.DebugFunc
	if debugFn == nil {
		debugFn = func(string, ...any) {}
	}
	now := c.Clock
	if now == nil {
		now = time.Now
	}
	rec := c.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	pool, err := resources.PoolFromSeed(cfg.Seed.Technicians)
	if err != nil {
		return nil, err
	}
	inv, err := resources.InventoryFromSeed(cfg.Seed.Spares, resources.SparesMap(cfg.Lookups.Spares))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		recorder:   rec,
		msg:        c.MsgClient,
		now:        now,
		logFn:      logFn,
		debugFn:    debugFn,
		policy:     decision.PolicyFrom(cfg),
		thresholds: detect.ThresholdsFrom(cfg.Detection),
		drift:      detect.NewDriftTracker(detect.DriftConfigFrom(cfg.Detection), detect.Lookup(cfg.Lookups.Drift)),
		pool:       pool,
		inv:        inv,
		Events:     NewEventBus(now),
		Audit:      audit.New(cfg.Audit.Capacity, now),
		decisions:  make(map[string]decision.Decision),
		components: make(map[string]telemetry.ComponentHealth),
		reqs:       make(chan func()),
		stopChan:   make(chan struct{}),
	}
	e.orders = workorder.NewManager(workorder.Options{
		Pool:                 pool,
		Inventory:            inv,
		Processed:            c.Processed,
		Commitments:          cfg.Lookups.Commitments,
		MaxOpenAnomalyOrders: cfg.Admission.MaxOpenAnomalyOrders,
		Now:                  now,
	})

	e.dispatcher = notify.NewDispatcher(&recordSink{rec: rec})
	for _, s := range c.Sinks {
		e.dispatcher.AddSink(s)
	}
	e.dispatcher.SetLogger(logFn)

	e.Audit.OnAppend = func(entry audit.Entry) {
		if err := e.recorder.AppendAudit(entry); err != nil {
			e.logFn("engine: archive audit %s: %v", entry.ID, err)
		}
	}
	return e, nil
}

func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.wireEventHandlers()
		e.refreshGauges()
		go e.run()

		if e.msg != nil {
			e.checkConnectionStatus()
			go e.connectionHealthLoop()
		}
		e.logFn("engine: started")
	})
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.logFn("engine: stopped")
	})
}

// Accessors
func (e *Engine) AppConfig() *config.Config { return e.cfg }
func (e *Engine) Now() time.Time            { return e.now() }

// MessagingConnected is false when no messaging client is configured.
func (e *Engine) MessagingConnected() bool {
	return e.msg != nil && e.msg.IsConnected()
}

func (e *Engine) run() {
	for {
		select {
		case <-e.stopChan:
			return
		case fn := <-e.reqs:
			start := time.Now()
			fn()
			metrics.EventLoopDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// submit runs fn on the loop and waits for it. ctx bounds the wait for a
// free loop; once fn is running it finishes regardless.
func (e *Engine) submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopChan:
		return ErrStopped
	}
	<-done
	return nil
}

func (e *Engine) checkConnectionStatus() {
	if e.msg.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// refreshGauges must run on the loop, or before it starts.
func (e *Engine) refreshGauges() {
	metrics.OpenAnomalyOrders.Set(float64(e.orders.OpenAnomalyOrders()))
	n := 0
	for _, t := range e.pool.List() {
		if t.Available {
			n++
		}
	}
	metrics.AvailableTechnicians.Set(float64(n))
}
