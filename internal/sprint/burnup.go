/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// TicketProgress pairs a classified ticket with its progress timeline.
type TicketProgress struct {
    Ticket   domain.Ticket
    Progress []domain.ProgressChange
}

// BurnupBuilder folds ticket progress and team capacity into the
// cumulative burnup series of one sprint.
type BurnupBuilder struct {
    // DailyOverheadJH is subtracted from every day's team load except
    // the last one, covering ceremonies.
    DailyOverheadJH float64
}

// Build computes the dated series. Done story points land on the date
// of each progress event; capacity accumulates day by day as the team's
// net JH times the sprint velocity.
func (b BurnupBuilder) Build(w domain.SprintWindow, tickets []TicketProgress, teamDays []domain.CapacityDay, velocity float64) domain.Burnup {
    doneByDate := map[time.Time]float64{}
    totalSp, attributed := 0.0, 0.0
    for _, tp := range tickets {
        totalSp += tp.Ticket.StoryPoints
        attributed += tp.Ticket.SpBefore
        addTicketDone(doneByDate, tp, w)
    }

    loadByDate := map[time.Time]float64{}
    var lastCap time.Time
    for _, d := range teamDays {
        day := dateOf(d.Date)
        loadByDate[day] += d.Load
        if day.After(lastCap) { lastCap = day }
    }

    dates := make([]time.Time, 0, len(loadByDate)+len(doneByDate))
    seen := map[time.Time]bool{}
    for d := range loadByDate {
        if !seen[d] { seen[d] = true; dates = append(dates, d) }
    }
    for d := range doneByDate {
        if !seen[d] { seen[d] = true; dates = append(dates, d) }
    }
    sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

    points := make([]domain.BurnupPoint, 0, len(dates))
    cumDone, cumJH := 0.0, 0.0
    for _, d := range dates {
        dayJH := loadByDate[d]
        // ceremony overhead applies to capacity days only, never the
        // final one
        if dayJH > 0 && !d.Equal(lastCap) {
            dayJH -= b.DailyOverheadJH
            if dayJH < 0 { dayJH = 0 }
        }
        cumDone = round2(cumDone + doneByDate[d])
        cumJH = round2(cumJH + dayJH)
        p := domain.BurnupPoint{
            Date:     d,
            Done:     cumDone,
            Capacity: round2(cumJH * velocity),
            JH:       cumJH,
        }
        if cumJH > 0 { p.VelocityToDate = round2(cumDone / cumJH) }
        points = append(points, p)
    }

    return domain.Burnup{
        SprintID:         w.Sprint.ID,
        SprintName:       w.Sprint.Name,
        TotalStoryPoints: round2(totalSp - attributed),
        Velocity:         velocity,
        JH:               cumJH,
        Points:           points,
    }
}

// addTicketDone spreads one ticket's in-window progress deltas over the
// dates they happened. The first in-window event starting from 100 is a
// reset artifact and contributes nothing.
func addTicketDone(doneByDate map[time.Time]float64, tp TicketProgress, w domain.SprintWindow) {
    events := append([]domain.ProgressChange(nil), tp.Progress...)
    sort.Slice(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })

    first := true
    for _, e := range events {
        if e.At.Before(w.Start) || e.At.After(w.End) { continue }
        from, to := pct(e.From), pct(e.To)
        delta := to - from
        if first && from == 100 { delta = 0 }
        first = false
        if delta == 0 { continue }
        doneByDate[dateOf(e.At)] += round2(tp.Ticket.RemainingSp() * delta / 100)
    }
}

func pct(s string) float64 {
    v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
    if err != nil { return 0 }
    return v
}
