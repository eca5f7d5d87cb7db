package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tillpoint/go-pos-sync/internal/aws"
	"github.com/tillpoint/go-pos-sync/internal/orders"
	"github.com/tillpoint/go-pos-sync/internal/platform"
)

// Config tunes the scheduler loop.
type Config struct {
	TickInterval    time.Duration // default 30s
	Concurrency     int           // max dispatches in flight per tick, default 3
	DispatchTimeout time.Duration // per-attempt bound, default 20s
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 20 * time.Second
	}
	return c
}

// RetryAllResult summarizes a RetryAll pass.
type RetryAllResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// QueueSnapshot is the operator-facing view of the sync queue.
type QueueSnapshot struct {
	Orders      []orders.Order `json:"orders"`
	TotalCount  int            `json:"total_count"`
	FailedCount int            `json:"failed_count"`
}

// Scheduler is the only component that moves orders from pending/failed into
// syncing. It runs a recurring tick while the app is foregrounded, suspends
// while backgrounded, and catches up immediately on return to foreground.
// All collaborators are injected; there is no global state.
type Scheduler struct {
	store     *orders.Store
	machine   *Machine
	registry  *platform.Registry
	publisher *aws.Publisher // nil-safe, optional
	metrics   *aws.Metrics   // nil-safe, optional
	cfg       Config
	nowFunc   func() time.Time

	paused atomic.Bool
	kick   chan struct{}
}

// NewScheduler wires a scheduler. publisher and metrics may be nil.
func NewScheduler(store *orders.Store, machine *Machine, registry *platform.Registry, publisher *aws.Publisher, metrics *aws.Metrics, cfg Config) *Scheduler {
	return &Scheduler{
		store:     store,
		machine:   machine,
		registry:  registry,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg.withDefaults(),
		nowFunc:   time.Now,
		kick:      make(chan struct{}, 1),
	}
}

// Run performs the crash-recovery pass and then ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.machine.RecoverInterrupted(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	log.Printf("[scheduler] started, tick=%s concurrency=%d", s.cfg.TickInterval, s.cfg.Concurrency)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] stopped: %v", ctx.Err())
			return nil
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			s.Tick(ctx)
		case <-s.kick:
			s.Tick(ctx)
		}
	}
}

// Pause suspends ticking while the application is backgrounded.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	log.Printf("[scheduler] paused")
}

// Resume re-enables ticking and fires one immediate catch-up tick.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
	select {
	case s.kick <- struct{}{}:
	default:
	}
	log.Printf("[scheduler] resumed")
}

// Tick dispatches every currently eligible order, oldest first, at most
// cfg.Concurrency at a time. Orders whose last failure was permanent are left
// for a manual retry. Excess eligible orders wait for the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	eligible, err := s.store.ListEligible(ctx, s.nowFunc())
	if err != nil {
		log.Printf("[scheduler] list eligible: %v", err)
		return
	}

	if depth, err := s.store.CountUnsynced(ctx); err == nil {
		s.metrics.QueueDepth(ctx, depth)
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, o := range eligible {
		if o.Status == orders.StatusFailed && o.ErrorKind == orders.ErrorKindPermanent {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(o orders.Order) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatch(ctx, o)
		}(o)
	}
	wg.Wait()
}

// RetryOrder forces an immediate attempt for a pending or failed order,
// bypassing the tick cadence and next_attempt_at but still going through the
// single-attempt-in-flight lock. Returns whether the attempt synced the order.
func (s *Scheduler) RetryOrder(ctx context.Context, orderID string) (bool, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, orders.ErrOrderNotFound
	}
	if order.Status != orders.StatusPending && order.Status != orders.StatusFailed {
		return false, orders.ErrInvalidState
	}
	return s.dispatch(ctx, *order), nil
}

// RetryAll retries every pending and failed order sequentially, so the
// operator screen sees deterministic progress.
func (s *Scheduler) RetryAll(ctx context.Context) (RetryAllResult, error) {
	candidates, err := s.store.ListByStatus(ctx, orders.StatusPending, orders.StatusFailed)
	if err != nil {
		return RetryAllResult{}, err
	}
	var res RetryAllResult
	for _, o := range candidates {
		ok, err := s.RetryOrder(ctx, o.OrderID)
		if err != nil || !ok {
			res.Failed++
			continue
		}
		res.Synced++
	}
	return res, nil
}

// DiscardOrder tombstones a pending or failed order with a reason.
func (s *Scheduler) DiscardOrder(ctx context.Context, orderID, reason string) error {
	return s.machine.Discard(ctx, orderID, reason)
}

// Snapshot returns the current sync queue view for the operator screen.
func (s *Scheduler) Snapshot(ctx context.Context) (QueueSnapshot, error) {
	all, err := s.store.ListByStatus(ctx)
	if err != nil {
		return QueueSnapshot{}, err
	}
	snap := QueueSnapshot{Orders: all, TotalCount: len(all)}
	for _, o := range all {
		if o.Status == orders.StatusFailed {
			snap.FailedCount++
		}
	}
	return snap, nil
}

// dispatch runs one attempt end to end: claim the order, call the platform
// adapter under the attempt timeout, record the outcome. Dispatch problems are
// written to the order record, never returned; the UI reads them from the
// sync queue. Reports whether the order reached synced.
func (s *Scheduler) dispatch(ctx context.Context, order orders.Order) bool {
	err := s.machine.Begin(ctx, order.OrderID, order.Status)
	if errors.Is(err, orders.ErrStatusMismatch) {
		// a concurrent tick or manual retry holds the order
		log.Printf("[scheduler] order=%s already claimed, skipping", order.OrderID)
		return false
	}
	if err != nil {
		log.Printf("[scheduler] claim order=%s: %v", order.OrderID, err)
		return false
	}

	// reload after the claim: the scan snapshot may predate other attempts,
	// and backoff must follow the stored count
	claimed, err := s.store.Get(ctx, order.OrderID)
	if err != nil || claimed == nil {
		log.Printf("[scheduler] reload claimed order=%s: %v", order.OrderID, err)
		return false
	}
	order = *claimed
	attempts := order.Attempts

	dispatcher, err := s.registry.For(order.Platform)
	if err != nil {
		s.recordFailure(ctx, order, attempts, orders.ErrorKindPermanent, err.Error())
		return false
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	outcome := dispatcher.Dispatch(dctx, order, order.IdempotencyKey)
	cancel()

	switch outcome.Kind {
	case platform.KindSuccess:
		if err := s.machine.Complete(ctx, order.OrderID, outcome.RemoteOrderID); err != nil {
			log.Printf("[scheduler] complete order=%s: %v", order.OrderID, err)
			return false
		}
		log.Printf("[scheduler] synced order=%s remote=%s attempts=%d", order.OrderID, outcome.RemoteOrderID, attempts)
		s.metrics.CountDispatch(ctx, "success")
		s.publishEvent(ctx, order, "order.synced", outcome.RemoteOrderID, "")
		return true
	case platform.KindPermanent:
		s.recordFailure(ctx, order, attempts, orders.ErrorKindPermanent, outcome.Reason)
		return false
	default:
		// retryable, and anything unrecognized is treated as retryable
		s.recordFailure(ctx, order, attempts, orders.ErrorKindRetryable, outcome.Reason)
		return false
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, order orders.Order, attempts int, kind, reason string) {
	if err := s.machine.Fail(ctx, order.OrderID, kind, reason, attempts); err != nil {
		log.Printf("[scheduler] record failure order=%s: %v", order.OrderID, err)
		return
	}
	log.Printf("[scheduler] failed order=%s attempts=%d kind=%s: %s", order.OrderID, attempts, kind, reason)
	s.metrics.CountDispatch(ctx, kind)
	s.publishEvent(ctx, order, "order.failed", "", reason)
}

func (s *Scheduler) publishEvent(ctx context.Context, order orders.Order, event, remoteOrderID, reason string) {
	if !s.publisher.Enabled() {
		return
	}
	body, err := json.Marshal(map[string]string{
		"event":           event,
		"order_id":        order.OrderID,
		"platform":        order.Platform,
		"remote_order_id": remoteOrderID,
		"reason":          reason,
	})
	if err != nil {
		return
	}
	attrs := map[string]string{
		"event":    event,
		"order_id": order.OrderID,
		"platform": order.Platform,
	}
	if err := s.publisher.SendSyncEvent(ctx, string(body), attrs); err != nil {
		// best-effort; the order record is the source of truth
		log.Printf("[scheduler] publish %s order=%s: %v", event, order.OrderID, err)
	}
}
