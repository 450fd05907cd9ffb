package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilm/fuzzy"
	"github.com/zeroy-labs/govbot/src/tally"
)

const cacheKey = "tally:organizations"

// DefaultTTL bounds how long the cached organization list is trusted.
const DefaultTTL = 240 * time.Hour

// Last-resort directory used when both the cache and the API are unavailable.
var fallbackOrganizations = []tally.Organization{
	{ID: "1", Name: "Uniswap", Slug: "uniswap"},
	{ID: "2", Name: "Compound", Slug: "compound"},
	{ID: "3", Name: "Aave", Slug: "aave"},
	{ID: "4", Name: "MakerDAO", Slug: "makerdao"},
	{ID: "5", Name: "Curve", Slug: "curve"},
}

// Directory resolves organization slugs to identities. It is a read-through
// accelerator over the Tally API, not a source of truth: the full directory
// is cached in Redis with a TTL, misses fall through to a direct API lookup,
// and a hardcoded list covers total outage at startup.
type Directory struct {
	rdb    *redis.Client
	client *tally.Client
	ttl    time.Duration

	mu   sync.RWMutex
	orgs []tally.Organization
}

func New(rdb *redis.Client, client *tally.Client, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{rdb: rdb, client: client, ttl: ttl}
}

// Prime loads the organization list from cache, refreshing from the API when
// the cache is cold and falling back to the builtin list when both fail.
func (d *Directory) Prime(ctx context.Context) {
	if orgs := d.loadCached(ctx); len(orgs) > 0 {
		d.setOrgs(orgs)
		log.Printf("directory: loaded %d organizations from cache", len(orgs))
		return
	}

	if err := d.Refresh(ctx); err != nil {
		log.Printf("directory: refresh failed, using fallback list: %v", err)
		d.setOrgs(fallbackOrganizations)
	}
}

// Refresh fetches the full directory from the API and rewrites the cache.
func (d *Directory) Refresh(ctx context.Context) error {
	orgs, err := d.client.FetchAllOrganizations(ctx)
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		return fmt.Errorf("directory: api returned no organizations")
	}

	d.setOrgs(orgs)
	d.storeCached(ctx, orgs)
	log.Printf("directory: refreshed %d organizations", len(orgs))
	return nil
}

// Lookup finds an organization by exact slug in the cached directory.
func (d *Directory) Lookup(slug string) (tally.Organization, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, org := range d.orgs {
		if strings.ToLower(org.Slug) == slug {
			return org, true
		}
	}
	return tally.Organization{}, false
}

// ResolveOrganization resolves a slug to an organization identity: cached
// directory first, then a direct API lookup. Satisfies the reconciler's
// source contract together with RecentProposals.
func (d *Directory) ResolveOrganization(ctx context.Context, slug string) (tally.Organization, error) {
	if org, ok := d.Lookup(slug); ok {
		return org, nil
	}
	return d.client.FetchOrganization(ctx, slug)
}

// RecentProposals passes through to the API client.
func (d *Directory) RecentProposals(ctx context.Context, orgID string, limit int) ([]tally.Proposal, error) {
	return d.client.FetchRecentProposals(ctx, orgID, limit)
}

// ResolveApproximate finds the closest slug to a (likely misspelled) input.
// Only confident matches are returned; sparse matches are discarded.
func (d *Directory) ResolveApproximate(input string) (tally.Organization, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return tally.Organization{}, false
	}

	d.mu.RLock()
	slugs := make([]string, len(d.orgs))
	for i, org := range d.orgs {
		slugs[i] = org.Slug
	}
	d.mu.RUnlock()

	matches := fuzzy.Find(input, slugs)
	if len(matches) == 0 || matches[0].Score < 0 {
		return tally.Organization{}, false
	}

	best := matches[0].Str
	log.Printf("directory: closest match for %q is %q (score %d)", input, best, matches[0].Score)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, org := range d.orgs {
		if org.Slug == best {
			return org, true
		}
	}
	return tally.Organization{}, false
}

func (d *Directory) setOrgs(orgs []tally.Organization) {
	d.mu.Lock()
	d.orgs = orgs
	d.mu.Unlock()
}

func (d *Directory) loadCached(ctx context.Context) []tally.Organization {
	if d.rdb == nil {
		return nil
	}
	raw, err := d.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("directory: cache read failed: %v", err)
		}
		return nil
	}
	var orgs []tally.Organization
	if err := json.Unmarshal(raw, &orgs); err != nil {
		log.Printf("directory: cache entry malformed, discarding: %v", err)
		return nil
	}
	return orgs
}

func (d *Directory) storeCached(ctx context.Context, orgs []tally.Organization) {
	if d.rdb == nil {
		return
	}
	raw, err := json.Marshal(orgs)
	if err != nil {
		return
	}
	if err := d.rdb.Set(ctx, cacheKey, raw, d.ttl).Err(); err != nil {
		log.Printf("directory: cache write failed: %v", err)
	}
}
