// Package poller runs the background match-polling worker: it debounces
// incoming location samples, executes poll cycles against the backend one at
// a time, and applies the notification policies.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"matchpoller/internal/client"
	"matchpoller/internal/model"
	"matchpoller/internal/notify"
	"matchpoller/internal/policy"
	"matchpoller/internal/storage"
)

// countQueryDistanceKm is the fixed radius used for active-count queries,
// independent of the match radius.
const countQueryDistanceKm = 0.01

// sampleQueueSize bounds how many accepted samples may wait behind an
// in-flight cycle. Samples beyond that are dropped.
const sampleQueueSize = 16

// Poller owns the session state and the background worker. Command handlers
// (Start, Update, Stop) run on caller goroutines; poll cycles run on the
// single worker goroutine started by Run, so dedup state and the count
// baseline have exactly one writer.
type Poller struct {
	store       storage.Storage
	client      *client.Client
	notifier    notify.Notifier
	log         *slog.Logger
	matchPolicy *policy.MatchPolicy
	countPolicy *policy.CountPolicy

	session atomic.Pointer[model.Session]
	mu      sync.Mutex // serializes session writers
	deb     debouncer
	samples chan model.Sample
}

// New creates a Poller. Call Restore before Run to load persisted state.
func New(store storage.Storage, cl *client.Client, notifier notify.Notifier, log *slog.Logger) *Poller {
	p := &Poller{
		store:       store,
		client:      cl,
		notifier:    notifier,
		log:         log,
		matchPolicy: policy.NewMatchPolicy(),
		countPolicy: policy.NewCountPolicy(store),
		samples:     make(chan model.Sample, sampleQueueSize),
	}
	sess := model.DefaultSession()
	p.session.Store(&sess)
	return p
}

// Session returns a snapshot of the current session.
func (p *Poller) Session() model.Session {
	return *p.session.Load()
}

// Restore loads the persisted session. A session that is enabled but missing
// its backend coordinates is forced to disabled and persisted that way, so a
// half-configured poller never resumes unattended.
func (p *Poller) Restore(ctx context.Context) error {
	sess, err := p.store.LoadSession(ctx)
	if err != nil {
		return err
	}

	if sess.Enabled && !sess.Configured() {
		p.log.Warn("persisted session enabled but incomplete, disabling")
		sess.Enabled = false
		if err := p.store.SaveSession(ctx, sess); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.session.Store(&sess)
	p.mu.Unlock()

	if sess.Enabled {
		p.log.Info("resuming polling", "interval", sess.Interval, "radius_km", sess.RadiusKm)
	}
	return nil
}

// Start merges opts into the session, enables polling, and persists.
func (p *Poller) Start(ctx context.Context, opts model.StartOptions) (model.Session, error) {
	return p.apply(ctx, opts)
}

// Update has the same merge semantics as Start.
func (p *Poller) Update(ctx context.Context, opts model.StartOptions) (model.Session, error) {
	return p.apply(ctx, opts)
}

func (p *Poller) apply(ctx context.Context, opts model.StartOptions) (model.Session, error) {
	p.mu.Lock()
	cur := *p.session.Load()
	next, windowOpened := cur.Apply(opts)
	next.Enabled = true
	if windowOpened {
		p.matchPolicy.ResetWindow()
	}
	p.session.Store(&next)
	p.mu.Unlock()

	if err := p.store.SaveSession(ctx, next); err != nil {
		return next, err
	}

	if !cur.Enabled {
		if err := p.notifier.ServiceActive(ctx); err != nil {
			p.log.Warn("service-active notification failed", "error", err)
		}
	}

	p.log.Info("polling enabled",
		"interval", next.Interval, "radius_km", next.RadiusKm,
		"consent_window_open", !next.Consent.EnabledAt.IsZero())
	return next, nil
}

// Stop disables polling and persists the disabled state. In-flight cycles
// notice the flag after their next blocking call and discard their results.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	next := *p.session.Load()
	next.Enabled = false
	p.session.Store(&next)
	p.mu.Unlock()

	p.deb.reset()

	if err := p.store.SaveSession(ctx, next); err != nil {
		return err
	}
	p.log.Info("polling stopped")
	return nil
}

// Offer feeds one location sample through the debouncer. It returns true
// when the sample was accepted and queued for the worker. Samples are
// dropped while polling is disabled, inside the debounce interval, or when
// the queue is full.
func (p *Poller) Offer(s model.Sample) bool {
	sess := *p.session.Load()
	if !sess.Enabled || !sess.Configured() {
		return false
	}
	if !p.deb.accept(s.Time, sess.Interval) {
		return false
	}

	select {
	case p.samples <- s:
		return true
	default:
		p.log.Warn("sample queue full, dropping sample")
		return false
	}
}

// Run processes accepted samples one at a time, blocking until ctx is
// cancelled. Queued samples that have not started a cycle are abandoned on
// teardown.
func (p *Poller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.samples:
			p.cycle(ctx, s)
		}
	}
}

// cycle executes one full poll: location post, match check, active count,
// and policy evaluation. Config is snapshotted once at cycle start; the
// enabled flag is re-checked after every blocking call so a Stop that lands
// mid-cycle suppresses all remaining side effects.
func (p *Poller) cycle(ctx context.Context, s model.Sample) {
	sess := *p.session.Load()
	if !sess.Enabled || !sess.Configured() {
		return
	}
	auth := client.Auth{BaseURL: sess.BaseURL, AccessToken: sess.AccessToken}

	if err := p.client.PostLocation(ctx, auth, s.Latitude, s.Longitude); err != nil {
		p.fail(ctx, err)
		return
	}
	if !p.enabled() || ctx.Err() != nil {
		return
	}

	check, err := p.client.CheckMatch(ctx, auth, s.Latitude, s.Longitude, sess.RadiusKm)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	if !p.enabled() || ctx.Err() != nil {
		return
	}

	decision := p.matchPolicy.Evaluate(check, sess.Consent, time.Now())
	if decision.Notify {
		if err := p.notifier.MatchFound(ctx, check); err != nil {
			p.log.Warn("match notification failed", "error", err)
		}
	}
	if decision.CloseWindow {
		p.closeConsentWindow(ctx)
	}

	count, known, err := p.client.FetchActiveCount(ctx, auth, s.Latitude, s.Longitude, countQueryDistanceKm)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	if !p.enabled() || ctx.Err() != nil {
		return
	}

	if known {
		inc, err := p.countPolicy.Observe(ctx, count)
		if err != nil {
			p.log.Error("count observation", "error", err)
		} else if inc != nil {
			if err := p.notifier.CountIncreased(ctx, inc.Previous, inc.New); err != nil {
				p.log.Warn("count notification failed", "error", err)
			}
		}
	}
}

func (p *Poller) enabled() bool {
	return p.session.Load().Enabled
}

// fail handles an error from a backend call. A FatalError (401/403) durably
// disables the poller; anything else is logged and the cycle ends.
func (p *Poller) fail(ctx context.Context, err error) {
	var fatal *client.FatalError
	if errors.As(err, &fatal) {
		p.log.Warn("backend rejected session, disabling polling",
			"status", fatal.StatusCode, "endpoint", fatal.Endpoint)
		if err := p.Stop(ctx); err != nil {
			p.log.Error("persist disabled state", "error", err)
		}
		return
	}
	p.log.Error("poll cycle", "error", err)
}

// closeConsentWindow transitions the consent window to closed and persists
// the change so it stays closed across restarts.
func (p *Poller) closeConsentWindow(ctx context.Context) {
	p.mu.Lock()
	next := *p.session.Load()
	next.Consent = next.Consent.Closed()
	p.session.Store(&next)
	p.mu.Unlock()

	if err := p.store.SaveSession(ctx, next); err != nil {
		p.log.Error("persist consent window", "error", err)
	}
}
