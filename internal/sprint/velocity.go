/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package sprint

import (
    "context"

    "github.com/djtchess/jiraSages2/internal/domain"
)

// VelocityStore persists sprint velocities across analyses so that
// forecasts stay stable once a sprint has started.
type VelocityStore interface {
    // RecentVelocities returns the latest recorded velocities of one
    // board, newest first, optionally including sprints still running.
    RecentVelocities(ctx context.Context, boardID int64, includeActive bool, limit int) ([]float64, error)
    SaveVelocityStart(ctx context.Context, sprintID int64, v float64) error
    SaveVelocityObserved(ctx context.Context, sprintID int64, v float64) error
}

// Selector picks the velocity used to convert JH into capacity and
// records observed velocities for finished sprints.
type Selector struct {
    Store    VelocityStore
    Fallback float64
    Lookback int
}

// Select resolves the velocity for one sprint given its total done
// story points and JH. Closed sprints keep their start-of-sprint
// estimate and additionally record the observed value; running and
// future sprints estimate from recent history and persist the estimate.
func (s Selector) Select(ctx context.Context, sp domain.Sprint, doneSp, jh float64) (float64, error) {
    switch {
    case sp.Closed() && jh > 0:
        if err := s.Store.SaveVelocityObserved(ctx, sp.ID, round2(doneSp/jh)); err != nil {
            return 0, err
        }
        if sp.VelocityStart != nil { return *sp.VelocityStart, nil }
        return s.Fallback, nil

    case sp.Active() && jh > 0:
        v, err := s.Estimate(ctx, sp.OriginBoardID, false)
        if err != nil { return 0, err }
        if err := s.Store.SaveVelocityStart(ctx, sp.ID, v); err != nil { return 0, err }
        return v, nil

    default:
        v, err := s.Estimate(ctx, sp.OriginBoardID, true)
        if err != nil { return 0, err }
        if err := s.Store.SaveVelocityStart(ctx, sp.ID, v); err != nil { return 0, err }
        return v, nil
    }
}

// Estimate averages the recent recorded velocities of a board, falling
// back to the configured default when no history exists yet.
func (s Selector) Estimate(ctx context.Context, boardID int64, includeActive bool) (float64, error) {
    vals, err := s.Store.RecentVelocities(ctx, boardID, includeActive, s.Lookback)
    if err != nil { return 0, err }
    if len(vals) == 0 { return s.Fallback, nil }
    sum := 0.0
    for _, v := range vals { sum += v }
    return round2(sum / float64(len(vals))), nil
}
