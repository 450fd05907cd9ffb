package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zeroy-labs/govbot/src/bot/components/reconciler"
	"github.com/zeroy-labs/govbot/src/tally"
)

type fakeSender struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeSender) Send(recipientID, text string) error {
	if err := f.failFor[recipientID]; err != nil {
		return err
	}
	f.sent = append(f.sent, recipientID)
	return nil
}

func TestDispatchFansOutToAllRecipients(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender)

	d.Dispatch(context.Background(), reconciler.Event{
		Kind:       reconciler.EventNewProposal,
		Org:        tally.Organization{Slug: "uniswap"},
		Proposal:   tally.Proposal{ID: 1, Status: "active", Title: "T"},
		Recipients: []string{"u1", "u2", "u3"},
	})

	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %d (%v)", len(sender.sent), sender.sent)
	}
}

func TestDispatchIsolatesRecipientFailure(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"u2": errors.New("blocked")}}
	d := NewDispatcher(sender)

	d.Dispatch(context.Background(), reconciler.Event{
		Kind:       reconciler.EventStatusChanged,
		Org:        tally.Organization{Slug: "aave"},
		Proposal:   tally.Proposal{ID: 2, Status: "passed"},
		OldStatus:  "active",
		NewStatus:  "passed",
		Recipients: []string{"u1", "u2", "u3"},
	})

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 successful deliveries, got %d", len(sender.sent))
	}
	for _, got := range sender.sent {
		if got == "u2" {
			t.Errorf("u2 should have failed, but was delivered")
		}
	}
}

func TestRenderStatusChange(t *testing.T) {
	r := NewRenderer()
	text := r.Event(reconciler.Event{
		Kind:      reconciler.EventStatusChanged,
		Org:       tally.Organization{Slug: "uniswap"},
		Proposal:  tally.Proposal{ID: 42, Status: "passed", Title: "Deploy v4"},
		OldStatus: "active",
		NewStatus: "passed",
	})

	for _, want := range []string{"active", "passed", "Deploy v4", "https://www.tally.xyz/gov/uniswap/proposal/42"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderDegradesMissingFields(t *testing.T) {
	r := NewRenderer()
	text := r.Proposal(tally.Proposal{ID: 7}, "aave")

	if !strings.Contains(text, "(untitled proposal)") {
		t.Errorf("expected title placeholder:\n%s", text)
	}
	if !strings.Contains(text, "Status: unknown") {
		t.Errorf("expected status placeholder:\n%s", text)
	}
	if !strings.Contains(text, "Start: unknown") || !strings.Contains(text, "End: unknown") {
		t.Errorf("expected time placeholders:\n%s", text)
	}
}

func TestRenderSanitizesTitle(t *testing.T) {
	r := NewRenderer()
	text := r.Proposal(tally.Proposal{
		ID:    9,
		Title: `<script>alert(1)</script>Treasury grant`,
		Start: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, "compound")

	if strings.Contains(text, "<script>") {
		t.Errorf("script tag survived sanitization:\n%s", text)
	}
	if !strings.Contains(text, "Treasury grant") {
		t.Errorf("text content lost in sanitization:\n%s", text)
	}
	if !strings.Contains(text, "2025-03-01 12:00:00 UTC") {
		t.Errorf("start time not rendered:\n%s", text)
	}
}
