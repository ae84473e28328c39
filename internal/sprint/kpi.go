/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "slices"
    "strings"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// KpiAggregator folds classified tickets into the sprint scorecard.
type KpiAggregator struct {
    // DoneStatuses are the terminal workflow statuses, uppercase.
    DoneStatuses []string
}

func (k KpiAggregator) done(t domain.Ticket) bool {
    return slices.Contains(k.DoneStatuses, strings.ToUpper(strings.TrimSpace(t.Status)))
}

// Aggregate computes the commitment KPIs of one sprint. Excluded
// tickets never count; removed tickets still count in their membership
// bucket. Percentages guard empty denominators to zero.
func (k KpiAggregator) Aggregate(s domain.Sprint, tickets []domain.Ticket) domain.KpiSummary {
    out := domain.KpiSummary{
        SprintID:   s.ID,
        SprintName: s.Name,
        ByType:     map[string]domain.TypeCounter{},
    }
    for _, t := range tickets {
        if t.Excluded {
            if t.DoneBefore { out.DevDoneBefore++ }
            continue
        }
        done := k.done(t)
        switch {
        case t.Committed:
            out.Committed++
            out.PointsCommitted += t.RemainingSp()
            if done { out.DoneCommitted++ }
        case t.Added:
            out.Added++
            out.PointsAdded += t.RemainingSp()
        }
        if t.Removed { out.Removed++ }
        if done {
            out.Done++
            out.PointsDone += t.RemainingSp()
        }
        tc := out.ByType[t.Type]
        tc.Count++
        tc.Points = round2(tc.Points + t.RemainingSp())
        out.ByType[t.Type] = tc
    }

    out.PointsCommitted = round2(out.PointsCommitted)
    out.PointsAdded = round2(out.PointsAdded)
    out.PointsDone = round2(out.PointsDone)

    out.PctCommitmentRespected = ratio(out.DoneCommitted, out.Committed)
    out.PctUnfinishedCommitted = ratio(out.Committed-out.DoneCommitted, out.Committed)
    out.PctUnplannedAdds = ratio(out.Added, out.Committed+out.Added)
    out.PctGlobalSuccess = ratio(out.Done, out.Committed+out.Added)
    return out
}

func ratio(num, den int) float64 {
    if den == 0 { return 0 }
    return round2(float64(num) / float64(den) * 100)
}
