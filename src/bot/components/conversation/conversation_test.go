package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
	"github.com/zeroy-labs/govbot/src/tally"
)

type fakeResolver struct {
	orgs map[string]tally.Organization
	near map[string]tally.Organization
}

func (f *fakeResolver) Lookup(slug string) (tally.Organization, bool) {
	org, ok := f.orgs[slug]
	return org, ok
}

func (f *fakeResolver) ResolveApproximate(input string) (tally.Organization, bool) {
	org, ok := f.near[input]
	return org, ok
}

type fakeSubscriber struct {
	subscribed []string
	err        error
	existing   []string
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, userID, slug string) error {
	if f.err != nil {
		return f.err
	}
	f.subscribed = append(f.subscribed, slug)
	return nil
}

func (f *fakeSubscriber) Subscriptions(ctx context.Context, userID string) ([]string, error) {
	return f.existing, nil
}

func testResolver() *fakeResolver {
	uni := tally.Organization{ID: "1", Name: "Uniswap", Slug: "uniswap"}
	return &fakeResolver{
		orgs: map[string]tally.Organization{"uniswap": uni},
		near: map[string]tally.Organization{"uniswp": uni},
	}
}

func TestSubscribeFlowExactSlug(t *testing.T) {
	subs := &fakeSubscriber{}
	m := NewManager(testResolver(), subs, 10)
	ctx := context.Background()

	prompt := m.Begin(ctx, "u1")
	if !strings.Contains(prompt, "DAO slug") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
	if !m.Active("u1") {
		t.Fatal("expected active session after Begin")
	}

	reply := m.Handle(ctx, "u1", "uniswap")
	if !strings.Contains(reply, "Uniswap") || !strings.Contains(reply, "yes") {
		t.Fatalf("expected confirmation prompt, got: %s", reply)
	}

	reply = m.Handle(ctx, "u1", "yes")
	if !strings.Contains(reply, "successfully subscribed") {
		t.Fatalf("expected success reply, got: %s", reply)
	}
	if len(subs.subscribed) != 1 || subs.subscribed[0] != "uniswap" {
		t.Errorf("expected subscribe call for uniswap, got %v", subs.subscribed)
	}
	if m.Active("u1") {
		t.Error("session must end after confirmation")
	}
}

func TestSubscribeFlowFuzzySuggestion(t *testing.T) {
	subs := &fakeSubscriber{}
	m := NewManager(testResolver(), subs, 10)
	ctx := context.Background()

	m.Begin(ctx, "u1")
	reply := m.Handle(ctx, "u1", "uniswp")
	if !strings.Contains(reply, "Did you mean") || !strings.Contains(reply, "uniswap") {
		t.Fatalf("expected fuzzy suggestion, got: %s", reply)
	}

	reply = m.Handle(ctx, "u1", "yes")
	if len(subs.subscribed) != 1 || subs.subscribed[0] != "uniswap" {
		t.Fatalf("expected subscribe to suggested slug, got %v (%s)", subs.subscribed, reply)
	}
}

func TestSubscribeFlowDeclined(t *testing.T) {
	subs := &fakeSubscriber{}
	m := NewManager(testResolver(), subs, 10)
	ctx := context.Background()

	m.Begin(ctx, "u1")
	m.Handle(ctx, "u1", "uniswap")
	reply := m.Handle(ctx, "u1", "no")
	if !strings.Contains(reply, "cancelled") {
		t.Fatalf("expected cancellation, got: %s", reply)
	}
	if len(subs.subscribed) != 0 {
		t.Errorf("declined flow must not subscribe, got %v", subs.subscribed)
	}
}

func TestSubscribeFlowUnknownSlugKeepsAsking(t *testing.T) {
	m := NewManager(testResolver(), &fakeSubscriber{}, 10)
	ctx := context.Background()

	m.Begin(ctx, "u1")
	reply := m.Handle(ctx, "u1", "not-a-dao")
	if !strings.Contains(reply, "couldn't find") {
		t.Fatalf("expected not-found reply, got: %s", reply)
	}
	if !m.Active("u1") {
		t.Error("session should stay open for another attempt")
	}

	reply = m.Handle(ctx, "u1", "cancel")
	if !strings.Contains(reply, "cancelled") || m.Active("u1") {
		t.Errorf("cancel should end the session, got: %s", reply)
	}
}

func TestBeginRejectsAtCap(t *testing.T) {
	subs := &fakeSubscriber{existing: []string{"a", "b", "c"}}
	m := NewManager(testResolver(), subs, 3)

	reply := m.Begin(context.Background(), "u1")
	if !strings.Contains(reply, "maximum number of subscriptions") {
		t.Fatalf("expected cap message, got: %s", reply)
	}
	if m.Active("u1") {
		t.Error("no session should start at the cap")
	}
}

func TestConfirmationMapsSubscribeErrors(t *testing.T) {
	subs := &fakeSubscriber{err: subscription.ErrAlreadySubscribed}
	m := NewManager(testResolver(), subs, 10)
	ctx := context.Background()

	m.Begin(ctx, "u1")
	m.Handle(ctx, "u1", "uniswap")
	reply := m.Handle(ctx, "u1", "yes")
	if !strings.Contains(reply, "already subscribed") {
		t.Fatalf("expected already-subscribed reply, got: %s", reply)
	}
}
