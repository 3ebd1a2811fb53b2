package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"matchpoller/internal/client"
)

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable type")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifications(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	n := newTelegram(api, 42)

	if err := n.MatchFound(ctx, client.MatchCheck{HasLatest: true, DistanceM: 30, MatchScore: 90}); err != nil {
		t.Fatalf("match found: %v", err)
	}
	if err := n.CountIncreased(ctx, 2, 5); err != nil {
		t.Fatalf("count increased: %v", err)
	}
	if err := n.ServiceActive(ctx); err != nil {
		t.Fatalf("service active: %v", err)
	}

	if len(api.sent) != 3 {
		t.Fatalf("sent = %d messages, want 3", len(api.sent))
	}
	for i, msg := range api.sent {
		if msg.ChatID != 42 {
			t.Errorf("message %d chat = %d, want 42", i, msg.ChatID)
		}
	}
	if !strings.Contains(api.sent[1].Text, "2 -> 5") {
		t.Errorf("count message %q missing transition", api.sent[1].Text)
	}
}

func TestTelegramSendFailure(t *testing.T) {
	api := &fakeAPI{err: errors.New("telegram down")}
	n := newTelegram(api, 42)

	if err := n.ServiceActive(context.Background()); err == nil {
		t.Error("expected error from failing sink")
	}
}

func TestFormatMatchFound(t *testing.T) {
	tests := []struct {
		name  string
		check client.MatchCheck
		want  []string
	}{
		{
			name:  "with criteria",
			check: client.MatchCheck{HasLatest: true, DistanceM: 35.5, MatchScore: 87},
			want:  []string{"New match", "36 m", "87"},
		},
		{
			name:  "bare match",
			check: client.MatchCheck{HasLatest: true},
			want:  []string{"New match"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatMatchFound(tt.check)
			for _, part := range tt.want {
				if !strings.Contains(got, part) {
					t.Errorf("message %q missing %q", got, part)
				}
			}
		})
	}
}
