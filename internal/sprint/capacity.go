/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// CapacityCalculator turns a sprint date range into per-developer daily
// loads, accounting for weekends, public holidays, absences and the
// sprint's ceremony days.
type CapacityCalculator struct {
    // RampDays working days at the start of the sprint carry RampLoad
    // instead of a full day.
    RampDays    int
    RampLoad    float64
    LastDayLoad float64
    // LoadFactors scales individual developers, keyed by developer id.
    LoadFactors map[int64]float64
}

// DeveloperDays computes one developer's daily loads over [start, end].
// Weekends and holidays yield no entry at all; every other day yields
// one entry, possibly zero.
func (c CapacityCalculator) DeveloperDays(dev domain.Developer, start, end time.Time, holidays []domain.Holiday, absences []domain.Absence) []domain.CapacityDay {
    var days []domain.CapacityDay
    workday := 0
    for d := dateOf(start); !d.After(dateOf(end)); d = d.AddDate(0, 0, 1) {
        if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday { continue }
        if isHoliday(d, holidays) { continue }

        load := 1.0
        if workday < c.RampDays {
            load = c.RampLoad
        } else if d.Equal(dateOf(end)) {
            load = c.LastDayLoad
        }
        workday++

        if !inPresence(dev, d) {
            days = append(days, domain.CapacityDay{Date: d, Load: 0})
            continue
        }
        for _, a := range absences {
            if a.DeveloperID != dev.ID { continue }
            if d.Before(dateOf(a.Start)) || d.After(dateOf(a.End)) { continue }
            if a.HalfDay() && load != 0 {
                load = 0.5
            } else {
                load = 0
            }
            break
        }
        if f, ok := c.LoadFactors[dev.ID]; ok { load *= f }
        days = append(days, domain.CapacityDay{Date: d, Load: round2(load)})
    }
    return days
}

// TeamJH sums every developer's loads into the sprint's JH total.
func (c CapacityCalculator) TeamJH(devs []domain.Developer, start, end time.Time, holidays []domain.Holiday, absences []domain.Absence) float64 {
    total := 0.0
    for _, dev := range devs {
        for _, day := range c.DeveloperDays(dev, start, end, holidays, absences) {
            total += day.Load
        }
    }
    return round2(total)
}

func isHoliday(d time.Time, holidays []domain.Holiday) bool {
    for _, h := range holidays {
        if dateOf(h.Date).Equal(d) { return true }
    }
    return false
}

// inPresence bounds a day by the developer's arrival and departure.
func inPresence(dev domain.Developer, d time.Time) bool {
    if dev.StartDate != nil && d.Before(dateOf(*dev.StartDate)) { return false }
    if dev.EndDate != nil && d.After(dateOf(*dev.EndDate)) { return false }
    return true
}

func dateOf(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
