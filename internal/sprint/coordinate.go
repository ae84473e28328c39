/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "context"
    "slices"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// RateGate spaces outbound Jira calls by a minimum interval shared
// across all workers.
type RateGate struct {
    mu       sync.Mutex
    interval time.Duration
    nextSlot time.Time
}

func NewRateGate(interval time.Duration) *RateGate {
    return &RateGate{interval: interval}
}

// Wait blocks until the caller's reserved slot, or until ctx is done.
func (g *RateGate) Wait(ctx context.Context) error {
    g.mu.Lock()
    now := time.Now()
    sleep := g.nextSlot.Sub(now)
    if sleep < 0 { sleep = 0 }
    g.nextSlot = now.Add(sleep + g.interval)
    g.mu.Unlock()

    if sleep == 0 { return nil }
    timer := time.NewTimer(sleep)
    defer timer.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-timer.C:
        return nil
    }
}

type cacheEntry struct {
    cl domain.IssueChangelog
    at time.Time
}

// ChangelogCache keeps reconstructed changelogs alive for a TTL so
// repeated sprint analyses do not hammer the Jira API.
type ChangelogCache struct {
    mu      sync.Mutex
    ttl     time.Duration
    entries map[string]cacheEntry
    now     func() time.Time

    hits, misses, loads, evictions int64
}

func NewChangelogCache(ttl time.Duration) *ChangelogCache {
    return &ChangelogCache{ttl: ttl, entries: map[string]cacheEntry{}, now: time.Now}
}

// GetOrLoad returns the cached changelog when fresh, otherwise calls
// load and caches the result. Load errors are never cached.
func (c *ChangelogCache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (domain.IssueChangelog, error)) (domain.IssueChangelog, error) {
    c.mu.Lock()
    if e, ok := c.entries[key]; ok {
        if c.now().Sub(e.at) < c.ttl {
            c.hits++
            c.mu.Unlock()
            return e.cl, nil
        }
        delete(c.entries, key)
        c.evictions++
    }
    c.misses++
    c.mu.Unlock()

    cl, err := load(ctx)
    if err != nil { return domain.IssueChangelog{}, err }

    c.mu.Lock()
    c.loads++
    c.entries[key] = cacheEntry{cl: cl, at: c.now()}
    c.mu.Unlock()
    return cl, nil
}

// Evict drops one key, typically after a write to the issue.
func (c *ChangelogCache) Evict(key string) {
    c.mu.Lock()
    if _, ok := c.entries[key]; ok {
        delete(c.entries, key)
        c.evictions++
    }
    c.mu.Unlock()
}

func (c *ChangelogCache) Stats() domain.CacheStats {
    c.mu.Lock()
    defer c.mu.Unlock()
    return domain.CacheStats{
        Hits:      c.hits,
        Misses:    c.misses,
        Loads:     c.loads,
        Evictions: c.evictions,
        Entries:   len(c.entries),
    }
}

// Coordinator fans changelog reconstruction out over a bounded worker
// pool, going through the shared cache and rate gate.
type Coordinator struct {
    Workers int
    Cache   *ChangelogCache
    Build   func(ctx context.Context, key string) (domain.IssueChangelog, error)
    Log     zerolog.Logger

    // PreDoneStatuses are statuses meaning development was finished
    // before the sprint even started.
    PreDoneStatuses []string
}

// Changelogs loads the changelog of every key. Failed keys are logged
// and reported in errs rather than aborting the batch.
func (c *Coordinator) Changelogs(ctx context.Context, keys []string) (map[string]domain.IssueChangelog, map[string]error) {
    workers := c.Workers
    if workers < 1 { workers = 1 }

    type result struct {
        key string
        cl  domain.IssueChangelog
        err error
    }
    jobs := make(chan string)
    results := make(chan result, len(keys))

    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for key := range jobs {
                cl, err := c.Cache.GetOrLoad(ctx, key, func(ctx context.Context) (domain.IssueChangelog, error) {
                    return c.Build(ctx, key)
                })
                results <- result{key: key, cl: cl, err: err}
            }
        }()
    }
    go func() {
        defer close(jobs)
        for _, k := range keys {
            select {
            case jobs <- k:
            case <-ctx.Done():
                return
            }
        }
    }()
    go func() { wg.Wait(); close(results) }()

    out := make(map[string]domain.IssueChangelog, len(keys))
    errs := map[string]error{}
    for r := range results {
        if r.err != nil {
            c.Log.Warn().Str("issue", r.key).Err(r.err).Msg("changelog load failed")
            errs[r.key] = r.err
            continue
        }
        out[r.key] = r.cl
    }
    return out, errs
}

// FlagPreSprintDone marks tickets whose last status before the sprint
// start means development was already finished. A ticket whose
// changelog cannot be loaded is kept in scope.
func (c *Coordinator) FlagPreSprintDone(ctx context.Context, tickets []*domain.Ticket, start time.Time) {
    keys := make([]string, 0, len(tickets))
    for _, t := range tickets { keys = append(keys, t.Key) }
    logs, _ := c.Changelogs(ctx, keys)

    for _, t := range tickets {
        cl, ok := logs[t.Key]
        if !ok { continue }
        status := strings.ToUpper(strings.TrimSpace(cl.LastStatusAtOrBefore(start)))
        if slices.Contains(c.PreDoneStatuses, status) {
            t.Excluded = true
            t.DoneBefore = true
        }
    }
}
