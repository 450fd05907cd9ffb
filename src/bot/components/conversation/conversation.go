package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
	"github.com/zeroy-labs/govbot/src/tally"
)

// State of one user's subscribe conversation.
type State int

const (
	StateAwaitingSlug State = iota + 1
	StateAwaitingConfirmation
)

// Resolver finds organizations by exact or approximate slug.
type Resolver interface {
	Lookup(slug string) (tally.Organization, bool)
	ResolveApproximate(input string) (tally.Organization, bool)
}

// Subscriber is the subscribe side of the subscription service.
type Subscriber interface {
	Subscribe(ctx context.Context, userID, slug string) error
	Subscriptions(ctx context.Context, userID string) ([]string, error)
}

type session struct {
	state   State
	pending tally.Organization
}

// Manager drives the per-user subscribe flow:
// AwaitingSlug, then AwaitingConfirmation, then done. The core engine only
// ever sees the final Subscribe call once the user confirms.
type Manager struct {
	resolver Resolver
	subs     Subscriber
	maxSubs  int

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(resolver Resolver, subs Subscriber, maxSubs int) *Manager {
	if maxSubs <= 0 {
		maxSubs = 10
	}
	return &Manager{
		resolver: resolver,
		subs:     subs,
		maxSubs:  maxSubs,
		sessions: make(map[string]*session),
	}
}

// Begin starts a subscribe conversation and returns the first prompt. Users
// already at the cap are turned away without a session.
func (m *Manager) Begin(ctx context.Context, userID string) string {
	current, err := m.subs.Subscriptions(ctx, userID)
	if err == nil && len(current) >= m.maxSubs {
		return fmt.Sprintf("You've reached the maximum number of subscriptions (%d). Please unsubscribe from a DAO before adding a new one.", m.maxSubs)
	}

	m.mu.Lock()
	m.sessions[userID] = &session{state: StateAwaitingSlug}
	m.mu.Unlock()

	return "Please enter the DAO slug you want to subscribe to (or type cancel):"
}

// Active reports whether the user has a conversation in progress.
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID] != nil
}

// Handle feeds one user message into the conversation and returns the reply.
func (m *Manager) Handle(ctx context.Context, userID, text string) string {
	m.mu.Lock()
	sess := m.sessions[userID]
	m.mu.Unlock()

	if sess == nil {
		return ""
	}

	input := strings.ToLower(strings.TrimSpace(text))
	if input == "cancel" {
		m.end(userID)
		return "Subscription cancelled."
	}

	switch sess.state {
	case StateAwaitingSlug:
		return m.handleSlug(sess, input)
	case StateAwaitingConfirmation:
		return m.handleConfirmation(ctx, userID, sess, input)
	}

	m.end(userID)
	return ""
}

func (m *Manager) handleSlug(sess *session, input string) string {
	if org, ok := m.resolver.Lookup(input); ok {
		sess.pending = org
		sess.state = StateAwaitingConfirmation
		return fmt.Sprintf("Do you want to subscribe to %s (slug: %s)?\nPlease reply with 'yes' or 'no'.", org.Name, org.Slug)
	}

	if org, ok := m.resolver.ResolveApproximate(input); ok {
		sess.pending = org
		sess.state = StateAwaitingConfirmation
		return fmt.Sprintf("I couldn't find '%s'. Did you mean '%s' (slug: %s)?\nDo you want to subscribe to this DAO? Please reply with 'yes' or 'no'.", input, org.Name, org.Slug)
	}

	return fmt.Sprintf("Sorry, I couldn't find a DAO with the slug '%s'. Please try another slug or type cancel.", input)
}

func (m *Manager) handleConfirmation(ctx context.Context, userID string, sess *session, input string) string {
	org := sess.pending
	m.end(userID)

	if input != "yes" {
		return "Subscription cancelled."
	}

	err := m.subs.Subscribe(ctx, userID, org.Slug)
	switch {
	case err == nil:
		return fmt.Sprintf("You've successfully subscribed to %s (slug: %s)!", org.Name, org.Slug)
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		return fmt.Sprintf("You're already subscribed to %s.", org.Slug)
	case errors.Is(err, subscription.ErrLimitReached):
		return fmt.Sprintf("You've reached the maximum number of subscriptions (%d). Please unsubscribe from a DAO before adding a new one.", m.maxSubs)
	default:
		return "Failed to subscribe. Please try again later."
	}
}

func (m *Manager) end(userID string) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
