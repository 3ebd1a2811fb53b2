package policy

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"matchpoller/internal/client"
	"matchpoller/internal/model"
)

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openWindow(now time.Time) model.ConsentWindow {
	return model.ConsentWindow{EnabledAt: now.Add(-5 * time.Second), Window: 30 * time.Second}
}

func latestMatch(id int64) client.MatchCheck {
	return client.MatchCheck{HasLatest: true, MatchID: id, User1ID: 1, User2ID: 2}
}

func TestEvaluateNoLatestMatchIsNoop(t *testing.T) {
	p := NewMatchPolicy()
	check := client.MatchCheck{HasNewMatch: true} // no latest object at all

	got := p.Evaluate(check, openWindow(baseTime), baseTime)
	if diff := cmp.Diff(MatchDecision{}, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	if p.DedupLen() != 0 {
		t.Error("no-op must not touch dedup state")
	}
}

func TestEvaluateAuthoritativeAlwaysNotifies(t *testing.T) {
	p := NewMatchPolicy()
	check := latestMatch(42)
	check.HasNewMatch = true
	closed := model.ConsentWindow{Window: 30 * time.Second}

	// Repeated authoritative signals keep notifying regardless of dedup.
	for i := 0; i < 3; i++ {
		got := p.Evaluate(check, closed, baseTime.Add(time.Duration(i)*time.Minute))
		if !got.Notify {
			t.Fatalf("iteration %d: expected Notify", i)
		}
		if got.CloseWindow {
			t.Fatalf("iteration %d: window closed while not open", i)
		}
	}

	// Both the match key and the pair key were recorded.
	if p.DedupLen() != 2 {
		t.Errorf("DedupLen = %d, want 2", p.DedupLen())
	}
}

func TestEvaluateConsentWindowFiresOnce(t *testing.T) {
	p := NewMatchPolicy()
	win := openWindow(baseTime)
	check := latestMatch(42) // HasNewMatch false: consent-window path only

	first := p.Evaluate(check, win, baseTime)
	if !first.Notify {
		t.Fatal("first evaluation inside window should notify")
	}
	if !first.CloseWindow {
		t.Fatal("firing inside window must close it")
	}

	// The poller closes the window after the first decision; later calls see
	// it closed and must not fire.
	closed := win.Closed()
	for i := 0; i < 3; i++ {
		got := p.Evaluate(check, closed, baseTime.Add(time.Second))
		if diff := cmp.Diff(MatchDecision{}, got); diff != "" {
			t.Errorf("iteration %d: decision mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestEvaluateSuppressionClosesWindow(t *testing.T) {
	p := NewMatchPolicy()
	win := openWindow(baseTime)

	// The match was already notified via an authoritative signal.
	auth := latestMatch(42)
	auth.HasNewMatch = true
	if got := p.Evaluate(auth, model.ConsentWindow{}, baseTime); !got.Notify {
		t.Fatal("setup: authoritative signal should notify")
	}

	// A later consent-window pass for the same identity is suppressed but
	// still closes the window.
	got := p.Evaluate(latestMatch(42), win, baseTime)
	want := MatchDecision{Notify: false, CloseWindow: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateSuppressedByPairKey(t *testing.T) {
	p := NewMatchPolicy()
	win := openWindow(baseTime)

	// Notified once without a match ID: only the pair key is recorded.
	if got := p.Evaluate(latestMatch(0), win, baseTime); !got.Notify {
		t.Fatal("setup: first window notification should fire")
	}

	// Same pair arrives again under a fresh window with a match ID the dedup
	// set has never seen; the pair key still suppresses it.
	check := latestMatch(99)
	got := p.Evaluate(check, openWindow(baseTime.Add(time.Minute)), baseTime.Add(time.Minute))
	if got.Notify {
		t.Error("pair key should have suppressed the notification")
	}
	if !got.CloseWindow {
		t.Error("suppression inside an open window must close it")
	}
}

func TestEvaluateOutsideWindowWithoutNewMatch(t *testing.T) {
	p := NewMatchPolicy()

	tests := []struct {
		name string
		win  model.ConsentWindow
		now  time.Time
	}{
		{"window never opened", model.ConsentWindow{Window: 30 * time.Second}, baseTime},
		{"window expired", model.ConsentWindow{EnabledAt: baseTime.Add(-time.Minute), Window: 30 * time.Second}, baseTime},
		{"already notified", model.ConsentWindow{EnabledAt: baseTime.Add(-time.Second), Window: 30 * time.Second, Notified: true}, baseTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Evaluate(latestMatch(42), tt.win, tt.now)
			if diff := cmp.Diff(MatchDecision{}, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateNeverDoubleFiresAcrossPaths(t *testing.T) {
	p := NewMatchPolicy()
	win := openWindow(baseTime)

	// Consent-window catch-up fires first.
	if got := p.Evaluate(latestMatch(42), win, baseTime); !got.Notify {
		t.Fatal("window catch-up should fire")
	}

	// A later authoritative signal for the same match still fires: the
	// backend signal is always trusted.
	auth := latestMatch(42)
	auth.HasNewMatch = true
	if got := p.Evaluate(auth, win.Closed(), baseTime.Add(time.Second)); !got.Notify {
		t.Error("authoritative signal must override dedup")
	}
}

func TestResetWindowClearsDedup(t *testing.T) {
	p := NewMatchPolicy()
	auth := latestMatch(42)
	auth.HasNewMatch = true
	p.Evaluate(auth, model.ConsentWindow{}, baseTime)
	if p.DedupLen() == 0 {
		t.Fatal("setup: dedup keys expected")
	}

	p.ResetWindow()
	if p.DedupLen() != 0 {
		t.Error("ResetWindow must clear the dedup set")
	}

	// A new window can fire for the same identity again.
	got := p.Evaluate(latestMatch(42), openWindow(baseTime), baseTime)
	if !got.Notify {
		t.Error("expected notification after dedup reset")
	}
}
