package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/tbourn/flatmate-bot/internal/gateway"
)

type scriptedUpdater struct {
	mu      sync.Mutex
	offsets []int64
	replies []func() ([]Update, error)
	done    chan struct{}
}

func (s *scriptedUpdater) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.replies) == 0 {
		s.mu.Unlock()
		close(s.done)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()
	return next()
}

func textUpdate(id int64, text string) Update {
	return Update{UpdateID: id, Message: &Message{
		MessageID: int(id), From: &User{ID: 1, FirstName: "A"},
		Chat: Chat{ID: 1, Type: "private"}, Text: text,
	}}
}

func TestPoller_AdvancesOffsetAndRetries(t *testing.T) {
	up := &scriptedUpdater{done: make(chan struct{})}
	up.replies = []func() ([]Update, error){
		func() ([]Update, error) { return []Update{textUpdate(10, "a"), {UpdateID: 11}, textUpdate(12, "b")}, nil },
		func() ([]Update, error) { return nil, errors.New("network down") },
		func() ([]Update, error) { return []Update{textUpdate(13, "c")}, nil },
	}

	var texts []string
	p := &Poller{
		Client:  up,
		Timeout: time.Second,
		Backoff: &backoff.Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond},
		Log:     zerolog.Nop(),
		Handle: func(_ context.Context, ev gateway.Event) {
			texts = append(texts, ev.(*gateway.TextMessage).Text)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-up.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller stalled")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(texts) != 3 || texts[0] != "a" || texts[2] != "c" {
		t.Fatalf("handled = %v", texts)
	}
	want := []int64{0, 13, 13, 14}
	if len(up.offsets) != len(want) {
		t.Fatalf("offsets = %v", up.offsets)
	}
	for i := range want {
		if up.offsets[i] != want[i] {
			t.Fatalf("offsets = %v; want %v", up.offsets, want)
		}
	}
	if p.Offset() != 14 {
		t.Fatalf("Offset = %d", p.Offset())
	}
}
