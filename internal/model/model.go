// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// Default session values applied when nothing has been configured yet.
const (
	DefaultInterval      = 60 * time.Second
	DefaultRadiusKm      = 0.05
	DefaultConsentWindow = 30 * time.Second
)

// Session holds the poller configuration and its enabled state.
// A single logical instance exists per running poller; it is persisted on
// every start/update/stop command and reloaded on process restart.
type Session struct {
	Enabled     bool
	BaseURL     string
	AccessToken string
	Interval    time.Duration
	RadiusKm    float64
	Consent     ConsentWindow
}

// DefaultSession returns a disabled session with default tuning values.
func DefaultSession() Session {
	return Session{
		Interval: DefaultInterval,
		RadiusKm: DefaultRadiusKm,
		Consent:  ConsentWindow{Window: DefaultConsentWindow},
	}
}

// Configured reports whether the session carries enough configuration to
// execute network calls.
func (s Session) Configured() bool {
	return s.BaseURL != "" && s.AccessToken != ""
}

// StartOptions are the optional fields accepted by the start and update
// commands. Nil fields are left unchanged by Apply.
type StartOptions struct {
	BaseURL                 *string  `json:"base_url"`
	AccessToken             *string  `json:"access_token"`
	IntervalMs              *int64   `json:"interval_ms"`
	RadiusKm                *float64 `json:"radius_km"`
	ConsentEnabledAtMs      *int64   `json:"consent_enabled_at_ms"`
	ConsentWindowMs         *int64   `json:"consent_window_ms"`
	ConsentNotificationSent *bool    `json:"consent_notification_sent"`
}

// Apply merges opts into s and returns the merged session. Absent or invalid
// fields (interval <= 1000ms, radius <= 0, blank strings) keep their current
// values. A positive consent timestamp opens a new window; an explicitly
// supplied non-positive one closes any open window. The second return value
// is true when opts opened a new consent window, which must also clear the
// caller's dedup state.
func (s Session) Apply(opts StartOptions) (Session, bool) {
	next := s

	if opts.BaseURL != nil {
		if v := strings.TrimSpace(*opts.BaseURL); v != "" {
			next.BaseURL = v
		}
	}
	if opts.AccessToken != nil {
		if v := strings.TrimSpace(*opts.AccessToken); v != "" {
			next.AccessToken = v
		}
	}
	if opts.IntervalMs != nil && *opts.IntervalMs > 1000 {
		next.Interval = time.Duration(*opts.IntervalMs) * time.Millisecond
	}
	if opts.RadiusKm != nil && *opts.RadiusKm > 0 {
		next.RadiusKm = *opts.RadiusKm
	}
	if opts.ConsentWindowMs != nil && *opts.ConsentWindowMs > 0 {
		next.Consent.Window = time.Duration(*opts.ConsentWindowMs) * time.Millisecond
	}

	windowOpened := false
	if opts.ConsentEnabledAtMs != nil {
		if *opts.ConsentEnabledAtMs > 0 {
			next.Consent.EnabledAt = time.UnixMilli(*opts.ConsentEnabledAtMs)
			next.Consent.Notified = false
			windowOpened = true
		} else {
			// An explicit non-positive timestamp closes the window.
			next.Consent.EnabledAt = time.Time{}
		}
	}
	if !windowOpened && opts.ConsentNotificationSent != nil {
		next.Consent.Notified = *opts.ConsentNotificationSent
	}

	return next, windowOpened
}

// ConsentWindow is the bounded interval right after the user enables
// location consent, during which a single catch-up match notification is
// allowed even without an authoritative new-match signal. A zero EnabledAt
// means the window is closed.
type ConsentWindow struct {
	EnabledAt time.Time
	Window    time.Duration
	Notified  bool
}

// Open reports whether the window is open at the given instant.
func (w ConsentWindow) Open(now time.Time) bool {
	if w.EnabledAt.IsZero() {
		return false
	}
	elapsed := now.Sub(w.EnabledAt)
	return elapsed >= 0 && elapsed < w.Window
}

// Closed returns the window after a notification fired (or was suppressed)
// inside it. The window size is retained for the next opening.
func (w ConsentWindow) Closed() ConsentWindow {
	return ConsentWindow{Window: w.Window, Notified: true}
}

// Sample is one raw location fix delivered by the platform location stream.
type Sample struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Time      time.Time
}
