package reconciler

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/zeroy-labs/govbot/src/tally"
)

type EventKind string

const (
	EventNewProposal   EventKind = "new_proposal"
	EventStatusChanged EventKind = "status_changed"
)

// Event is one notification produced by a reconciliation pass. The baseline
// for Proposal is already durably written by the time an Event is emitted.
type Event struct {
	Kind       EventKind
	Org        tally.Organization
	Proposal   tally.Proposal
	OldStatus  string
	NewStatus  string
	Recipients []string
}

// Source resolves organization identities and fetches their recent proposals.
type Source interface {
	ResolveOrganization(ctx context.Context, slug string) (tally.Organization, error)
	RecentProposals(ctx context.Context, orgID string, limit int) ([]tally.Proposal, error)
}

// BaselineStore persists last-observed proposal statuses.
type BaselineStore interface {
	All(ctx context.Context) (map[uint64]string, error)
	Put(ctx context.Context, proposalID uint64, status string) error
}

// SubscriberIndex maps organization slugs to their current subscribers.
type SubscriberIndex interface {
	SubscribersBySlug(ctx context.Context) (map[string][]string, error)
}

// Dispatcher delivers one event to all of its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Reconciler compares fresh proposal state against persisted baselines and
// emits notification events for new proposals and status transitions.
type Reconciler struct {
	source     Source
	baselines  BaselineStore
	subs       SubscriberIndex
	dispatcher Dispatcher
	topK       int
}

func New(source Source, baselines BaselineStore, subs SubscriberIndex, dispatcher Dispatcher, topK int) *Reconciler {
	if topK <= 0 {
		topK = 20
	}
	return &Reconciler{
		source:     source,
		baselines:  baselines,
		subs:       subs,
		dispatcher: dispatcher,
		topK:       topK,
	}
}

// RunPass executes one reconciliation cycle across every organization with
// at least one subscriber. A single organization's failure never aborts the
// pass. Re-running against unchanged upstream state emits zero events.
func (r *Reconciler) RunPass(ctx context.Context) error {
	index, err := r.subs.SubscribersBySlug(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if len(index) == 0 {
		return nil
	}

	known, err := r.baselines.All(ctx)
	if err != nil {
		return fmt.Errorf("load baselines: %w", err)
	}

	passID := uuid.NewString()[:8]
	log.Printf("reconciler[%s]: pass started, %d organizations, %d baselines", passID, len(index), len(known))

	for slug, recipients := range index {
		r.reconcileOrg(ctx, passID, slug, recipients, known)
	}

	log.Printf("reconciler[%s]: pass finished", passID)
	return nil
}

func (r *Reconciler) reconcileOrg(ctx context.Context, passID, slug string, recipients []string, known map[uint64]string) {
	org, err := r.source.ResolveOrganization(ctx, slug)
	if err != nil {
		log.Printf("reconciler[%s]: resolve %s failed, skipping this pass: %v", passID, slug, err)
		return
	}

	proposals, err := r.source.RecentProposals(ctx, org.ID, r.topK)
	if err != nil {
		log.Printf("reconciler[%s]: fetch proposals for %s failed, skipping this pass: %v", passID, slug, err)
		return
	}

	for _, p := range proposals {
		oldStatus, seen := known[p.ID]

		switch {
		case !seen:
			// Persist before notifying: an event must never exist without
			// the baseline that suppresses its duplicate on the next pass.
			if err := r.baselines.Put(ctx, p.ID, p.Status); err != nil {
				log.Printf("reconciler[%s]: baseline write for %s/%d failed, aborting organization: %v", passID, slug, p.ID, err)
				return
			}
			known[p.ID] = p.Status
			r.dispatcher.Dispatch(ctx, Event{
				Kind:       EventNewProposal,
				Org:        org,
				Proposal:   p,
				NewStatus:  p.Status,
				Recipients: recipients,
			})

		case oldStatus != p.Status:
			if err := r.baselines.Put(ctx, p.ID, p.Status); err != nil {
				log.Printf("reconciler[%s]: baseline write for %s/%d failed, aborting organization: %v", passID, slug, p.ID, err)
				return
			}
			known[p.ID] = p.Status
			r.dispatcher.Dispatch(ctx, Event{
				Kind:       EventStatusChanged,
				Org:        org,
				Proposal:   p,
				OldStatus:  oldStatus,
				NewStatus:  p.Status,
				Recipients: recipients,
			})
		}
	}
}

// Seed writes baselines for the organization's current top-K proposals
// without emitting any events. Called when the first subscriber to a
// previously untracked organization appears, so pre-existing proposals do
// not flood them with notifications.
func (r *Reconciler) Seed(ctx context.Context, slug string) error {
	org, err := r.source.ResolveOrganization(ctx, slug)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", slug, err)
	}

	proposals, err := r.source.RecentProposals(ctx, org.ID, r.topK)
	if err != nil {
		return fmt.Errorf("fetch proposals for %s: %w", slug, err)
	}

	for _, p := range proposals {
		if err := r.baselines.Put(ctx, p.ID, p.Status); err != nil {
			return fmt.Errorf("seed baseline %d: %w", p.ID, err)
		}
	}

	log.Printf("reconciler: seeded %d baselines for %s", len(proposals), slug)
	return nil
}
