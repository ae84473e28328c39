/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// HistoryPager fetches one page of an issue changelog starting at the
// given offset.
type HistoryPager func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error)

// Reconstructor rebuilds per-field issue timelines out of paged Jira
// changelogs.
type Reconstructor struct {
    Loc      *time.Location
    PageSize int
}

// Build walks every changelog page of the issue and reconstructs its
// status, progress and sprint timelines. Status entries are keyed by
// their timestamp in the configured location; progress entries are
// deduplicated on the raw timestamp string, last write wins, then
// sorted ascending; sprint entries are appended in page order.
func (r Reconstructor) Build(ctx context.Context, key string, fetch HistoryPager) (domain.IssueChangelog, error) {
    out := domain.IssueChangelog{
        Key:      key,
        StatusAt: map[time.Time]string{},
    }
    progress := map[string]domain.ProgressChange{}

    startAt, fetched, total := 0, 0, 1
    for fetched < total {
        page, err := fetch(ctx, key, startAt)
        if err != nil { return domain.IssueChangelog{}, fmt.Errorf("changelog %s at %d: %w", key, startAt, err) }
        total = page.Total
        for _, h := range page.Histories {
            at, err := domain.ParseJiraTime(h.Created)
            if err != nil { return domain.IssueChangelog{}, fmt.Errorf("changelog %s: %w", key, err) }
            for _, item := range h.Items {
                switch strings.ToLower(item.Field) {
                case "status":
                    out.StatusAt[at.In(r.Loc)] = item.ToString
                case "avancement":
                    progress[h.Created] = domain.ProgressChange{At: at, From: item.FromString, To: item.ToString}
                case "sprint":
                    out.Sprints = append(out.Sprints, domain.SprintChange{
                        At:        at,
                        From:      item.From,
                        To:        item.To,
                        FromNames: item.FromString,
                        ToNames:   item.ToString,
                    })
                }
            }
        }
        fetched += len(page.Histories)
        startAt = fetched
        if len(page.Histories) == 0 { break }
    }

    out.Progress = make([]domain.ProgressChange, 0, len(progress))
    for _, p := range progress {
        out.Progress = append(out.Progress, p)
    }
    sort.Slice(out.Progress, func(i, j int) bool { return out.Progress[i].At.Before(out.Progress[j].At) })

    return out, nil
}
