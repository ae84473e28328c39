/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "slices"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// Classifier decides whether a ticket was committed at sprint start,
// added mid-sprint, removed, or never part of the sprint.
type Classifier struct {
    // WIPStatuses are the statuses meaning work had started before the
    // sprint, making part of the estimate attributable to earlier work.
    WIPStatuses []string
}

type membershipEvent struct {
    at          time.Time
    fromContains bool
    toContains   bool
}

// Classify sets the Committed/Added/Removed/Excluded flags of t from
// its sprint-field history against the analyzed sprint window.
func (c Classifier) Classify(t *domain.Ticket, cl domain.IssueChangelog, w domain.SprintWindow) {
    events := membershipEvents(cl, w.Sprint.ID, w.Sprint.Name)

    inAtStart := false
    var firstAddAfterStart, firstRemoveDuring *time.Time
    for i := range events {
        e := events[i]
        if e.at.After(w.End) { break }
        if !e.at.After(w.Start) {
            // boundary inclusive, last event at or before start wins
            inAtStart = e.toContains
            continue
        }
        if firstAddAfterStart == nil && !e.fromContains && e.toContains {
            firstAddAfterStart = &events[i].at
        }
        if firstRemoveDuring == nil && e.fromContains && !e.toContains {
            firstRemoveDuring = &events[i].at
        }
    }

    switch {
    case inAtStart:
        t.Committed = true
    case firstAddAfterStart != nil:
        t.Added = true
    case slices.Contains(t.SprintIDs, w.Sprint.ID):
        // no membership event survived the changelog, trust the field
        if t.Created.After(w.Start) {
            t.Added = true
        } else {
            t.Committed = true
        }
    default:
        t.Excluded = true
    }
    t.Removed = firstRemoveDuring != nil
}

// AttributePreSprint computes the story point share already earned
// before the sprint started. Only tickets sitting in a WIP-or-later
// status at sprint start get an attribution, sized by the highest
// progress percentage recorded strictly before the start.
func (c Classifier) AttributePreSprint(t *domain.Ticket, cl domain.IssueChangelog, start time.Time) {
    status := strings.ToUpper(strings.TrimSpace(cl.LastStatusAtOrBefore(start)))
    if !slices.Contains(c.WIPStatuses, status) {
        t.SpBefore = 0
        return
    }
    maxPct := 0.0
    for _, p := range cl.Progress {
        if !p.At.Before(start) { continue }
        pct, err := strconv.ParseFloat(strings.TrimSpace(p.To), 64)
        if err != nil { continue }
        if pct > maxPct { maxPct = pct }
    }
    t.SpBefore = round2(t.StoryPoints * maxPct / 100)
}

// membershipEvents extracts the sprint-field transitions where the
// containment of the sprint actually changed, ascending. Containment
// is keyed on the raw id tokens; entries without ids fall back to the
// display names.
func membershipEvents(cl domain.IssueChangelog, sprintID int64, sprintName string) []membershipEvent {
    id := strconv.FormatInt(sprintID, 10)
    out := make([]membershipEvent, 0, len(cl.Sprints))
    for _, s := range cl.Sprints {
        var from, to bool
        if s.From != "" || s.To != "" {
            from = containsSprint(s.From, id)
            to = containsSprint(s.To, id)
        } else {
            from = containsSprint(s.FromNames, sprintName)
            to = containsSprint(s.ToNames, sprintName)
        }
        if from == to { continue }
        out = append(out, membershipEvent{at: s.At, fromContains: from, toContains: to})
    }
    sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
    return out
}

// containsSprint reports whether a raw sprint-field value contains the
// token, either as the whole value or as one comma separated element.
func containsSprint(raw, token string) bool {
    raw = strings.TrimSpace(raw)
    if raw == "" || token == "" { return false }
    if raw == token { return true }
    cleaned := strings.NewReplacer("[", "", "]", "").Replace(raw)
    for _, tok := range strings.Split(cleaned, ",") {
        if strings.TrimSpace(tok) == token { return true }
    }
    return false
}
