package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLimitReached signals the per-user subscription cap.
	ErrLimitReached = errors.New("subscription limit reached")
	// ErrAlreadySubscribed signals a duplicate slug in the user's list.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrNotSubscribed signals an unsubscribe for a slug the user never had.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Seeder initializes proposal baselines for a newly tracked organization.
type Seeder interface {
	Seed(ctx context.Context, slug string) error
}

// Service owns subscription records: cap enforcement, duplicate rejection,
// and the bootstrap seed for an organization's first subscriber.
type Service struct {
	store   Store
	seeder  Seeder
	maxSubs int
}

func NewService(store Store, maxSubs int) *Service {
	if maxSubs <= 0 {
		maxSubs = 10
	}
	return &Service{store: store, maxSubs: maxSubs}
}

// SetSeeder wires the baseline seeder. The reconciler is constructed after
// this service (it consumes SubscribersBySlug), so the seeder arrives late.
func (s *Service) SetSeeder(seeder Seeder) {
	s.seeder = seeder
}

// Subscribe adds slug to the user's list. When no other user currently
// tracks the organization, its baselines are seeded first so the next pass
// does not flood the subscriber with pre-existing proposals.
func (s *Service) Subscribe(ctx context.Context, userID, slug string) error {
	slug = normalizeSlug(slug)

	rec, ok, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read subscriptions: %w", err)
	}
	if !ok {
		rec = Record{UserID: userID}
	}

	for _, existing := range rec.Slugs {
		if existing == slug {
			return ErrAlreadySubscribed
		}
	}
	if len(rec.Slugs) >= s.maxSubs {
		return ErrLimitReached
	}

	index, err := s.SubscribersBySlug(ctx)
	if err != nil {
		return fmt.Errorf("scan subscriptions: %w", err)
	}
	if _, tracked := index[slug]; !tracked {
		if s.seeder == nil {
			return errors.New("subscription: seeder not configured")
		}
		// Seed before the record becomes visible to the scheduler, so the
		// pass that follows sees matching baselines and stays silent.
		if err := s.seeder.Seed(ctx, slug); err != nil {
			return fmt.Errorf("seed %s: %w", slug, err)
		}
	}

	rec.Slugs = append(rec.Slugs, slug)
	return s.store.Put(ctx, rec)
}

// Unsubscribe removes slug from the user's list. Baselines are left alone;
// an empty list is a valid terminal state.
func (s *Service) Unsubscribe(ctx context.Context, userID, slug string) error {
	slug = normalizeSlug(slug)

	rec, ok, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read subscriptions: %w", err)
	}
	if !ok {
		return ErrNotSubscribed
	}

	kept := rec.Slugs[:0]
	found := false
	for _, existing := range rec.Slugs {
		if existing == slug {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return ErrNotSubscribed
	}

	rec.Slugs = kept
	return s.store.Put(ctx, rec)
}

// Subscriptions returns the user's slugs in insertion order.
func (s *Service) Subscriptions(ctx context.Context, userID string) ([]string, error) {
	rec, ok, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return rec.Slugs, nil
}

// SubscribersBySlug derives the slug -> subscribers index by scanning all
// records. Runs once per reconciliation pass; O(users) is fine at this
// scale, an incremental reverse index is the first optimization if not.
func (s *Service) SubscribersBySlug(ctx context.Context) (map[string][]string, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]string)
	for _, rec := range records {
		for _, slug := range rec.Slugs {
			index[slug] = append(index[slug], rec.UserID)
		}
	}
	return index, nil
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
