/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "math"
    "slices"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/adapters/jira"
    "github.com/djtchess/jiraSages2/internal/config"
    "github.com/djtchess/jiraSages2/internal/domain"
    "github.com/djtchess/jiraSages2/internal/repo"
    "github.com/djtchess/jiraSages2/internal/sprint"
)

type JiraClient interface {
    SearchJQL(ctx context.Context, jql string, pageSize int) ([]domain.Ticket, error)
    ChangelogPage(ctx context.Context, key string, startAt, max int) (domain.HistoryPage, error)
    SprintInfo(ctx context.Context, sprintID int64) (domain.Sprint, error)
    BoardsForProject(ctx context.Context, projectKey string) ([]int64, error)
    SprintsForBoard(ctx context.Context, boardID int64) ([]domain.Sprint, error)
}

type DigestWriter interface {
    SprintDigest(ctx context.Context, kpis domain.KpiSummary, burnup domain.Burnup) (string, error)
}

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    repo *repo.Repository
    jira JiraClient
    llm  DigestWriter

    jql        jira.JQL
    classifier sprint.Classifier
    aggregator sprint.KpiAggregator
    calculator sprint.CapacityCalculator
    selector   sprint.Selector
    builder    sprint.BurnupBuilder
    coord      *sprint.Coordinator
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, jc JiraClient, llm DigestWriter) *Service {
    s := &Service{
        cfg:  cfg,
        log:  log,
        repo: r,
        jira: jc,
        llm:  llm,
        jql: jira.JQL{
            Project:           cfg.JiraProject,
            IssueTypes:        cfg.IssueTypes,
            Statuses:          cfg.StatusesScope,
            ExcludedAssignees: cfg.ExcludedAssignees,
        },
        classifier: sprint.Classifier{WIPStatuses: cfg.StatusesWIPOrLater},
        aggregator: sprint.KpiAggregator{DoneStatuses: cfg.StatusesDone},
        calculator: sprint.CapacityCalculator{
            RampDays:    cfg.CapacityRampDays,
            RampLoad:    cfg.CapacityRampLoad,
            LastDayLoad: cfg.CapacityLastDayLoad,
            LoadFactors: cfg.CapacityLoadFactors,
        },
        selector: sprint.Selector{Store: r, Fallback: cfg.FallbackVelocity, Lookback: cfg.VelocityLookback},
        builder:  sprint.BurnupBuilder{DailyOverheadJH: cfg.CapacityDailyOverheadJH},
    }
    rec := sprint.Reconstructor{Loc: cfg.Location(), PageSize: cfg.JiraChangelogPageSize}
    s.coord = &sprint.Coordinator{
        Workers:         cfg.WorkersJira,
        Cache:           sprint.NewChangelogCache(cfg.ChangelogTTL),
        Log:             log,
        PreDoneStatuses: cfg.StatusesPreSprintDone,
        Build: func(ctx context.Context, key string) (domain.IssueChangelog, error) {
            return rec.Build(ctx, key, func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error) {
                return jc.ChangelogPage(ctx, key, startAt, cfg.JiraChangelogPageSize)
            })
        },
    }
    return s
}

// sprintByID resolves a sprint, preferring the stored row over the live
// API: persisted velocities and manually corrected dates must win.
func (s *Service) sprintByID(ctx context.Context, id int64) (domain.Sprint, error) {
    stored, err := s.repo.GetSprint(ctx, id)
    if err != nil { return domain.Sprint{}, fmt.Errorf("load sprint %d: %w", id, err) }
    if stored != nil { return *stored, nil }
    live, err := s.jira.SprintInfo(ctx, id)
    if err != nil { return domain.Sprint{}, err }
    return live, nil
}

// sprintTickets loads and classifies the full scope of one sprint. The
// candidate set is the union of issues still carrying the sprint and
// issues touched inside the window, so mid-sprint removals stay
// visible.
func (s *Service) sprintTickets(ctx context.Context, w domain.SprintWindow) ([]domain.Ticket, map[string]domain.IssueChangelog, error) {
    inSprint, err := s.jira.SearchJQL(ctx, s.jql.SprintScope(w.Sprint.ID), s.cfg.JiraPageSize)
    if err != nil { return nil, nil, err }
    inWindow, err := s.jira.SearchJQL(ctx,
        s.jql.UpdatedInWindow(s.cfg.StatusesCandidate, w.Start, w.End), s.cfg.JiraPageSize)
    if err != nil { return nil, nil, err }

    tickets := inSprint
    seenKeys := make(map[string]bool, len(inSprint))
    for _, t := range inSprint { seenKeys[t.Key] = true }
    for _, t := range inWindow {
        if seenKeys[t.Key] { continue }
        seenKeys[t.Key] = true
        tickets = append(tickets, t)
    }

    keys := make([]string, 0, len(tickets))
    for _, t := range tickets { keys = append(keys, t.Key) }
    logs, errs := s.coord.Changelogs(ctx, keys)
    if len(errs) > 0 {
        s.log.Warn().Int("failed", len(errs)).Int64("sprint", w.Sprint.ID).Msg("partial changelog coverage")
    }

    ptrs := make([]*domain.Ticket, 0, len(tickets))
    for i := range tickets {
        t := &tickets[i]
        cl, ok := logs[t.Key]
        if ok {
            s.classifier.Classify(t, cl, w)
            s.classifier.AttributePreSprint(t, cl, w.Start)
            // the scorecard reads the sprint as it ended, not as the
            // issue looks today
            if st := cl.LastStatusAtOrBefore(w.End); st != "" { t.Status = st }
        } else if slices.Contains(t.SprintIDs, w.Sprint.ID) {
            // no history available, trust the sprint field
            if t.Created.After(w.Start) { t.Added = true } else { t.Committed = true }
        } else {
            t.Excluded = true
        }
        ptrs = append(ptrs, t)
    }
    s.coord.FlagPreSprintDone(ctx, ptrs, w.Start)
    return tickets, logs, nil
}

// AnalyzeSprintScope classifies every ticket of the sprint and folds
// them into the commitment scorecard.
func (s *Service) AnalyzeSprintScope(ctx context.Context, sprintID int64) (domain.KpiSummary, []domain.Ticket, error) {
    sp, err := s.sprintByID(ctx, sprintID)
    if err != nil { return domain.KpiSummary{}, nil, err }
    w := domain.ResolveWindow(sp, time.Now())

    tickets, _, err := s.sprintTickets(ctx, w)
    if err != nil { return domain.KpiSummary{}, nil, err }
    return s.aggregator.Aggregate(sp, tickets), tickets, nil
}

func (s *Service) teamDays(ctx context.Context, sprintID int64, w domain.SprintWindow) ([]domain.Developer, map[int64][]domain.CapacityDay, error) {
    devs, err := s.repo.ListDevelopers(ctx)
    if err != nil { return nil, nil, err }
    holidays, err := s.repo.ListHolidays(ctx, w.Start, w.End)
    if err != nil { return nil, nil, err }
    absences, err := s.repo.ListAbsences(ctx, w.Start, w.End)
    if err != nil { return nil, nil, err }
    overrides, err := s.repo.AvailabilityFactors(ctx, sprintID)
    if err != nil { return nil, nil, err }

    calc := s.calculator
    if len(overrides) > 0 {
        merged := map[int64]float64{}
        for id, f := range calc.LoadFactors { merged[id] = f }
        for id, f := range overrides { merged[id] = f }
        calc.LoadFactors = merged
    }

    out := map[int64][]domain.CapacityDay{}
    kept := make([]domain.Developer, 0, len(devs))
    for _, dev := range devs {
        if slices.Contains(s.cfg.ExcludedDeveloperIDs, dev.ID) { continue }
        out[dev.ID] = calc.DeveloperDays(dev, w.Start, w.End, holidays, absences)
        kept = append(kept, dev)
    }
    return kept, out, nil
}

// BuildBurnup assembles the sprint's burnup series: done story points
// against velocity-scaled team capacity, day by day.
func (s *Service) BuildBurnup(ctx context.Context, sprintID int64) (domain.Burnup, error) {
    sp, err := s.sprintByID(ctx, sprintID)
    if err != nil { return domain.Burnup{}, err }
    w := domain.ResolveWindow(sp, time.Now())

    tickets, logs, err := s.sprintTickets(ctx, w)
    if err != nil { return domain.Burnup{}, err }

    var tps []sprint.TicketProgress
    for _, t := range tickets {
        if t.Excluded { continue }
        tps = append(tps, sprint.TicketProgress{Ticket: t, Progress: logs[t.Key].Progress})
    }

    _, days, err := s.teamDays(ctx, sprintID, w)
    if err != nil { return domain.Burnup{}, err }
    var flat []domain.CapacityDay
    for _, dd := range days { flat = append(flat, dd...) }

    // first pass resolves total done and net JH, which drive velocity
    base := s.builder.Build(w, tps, flat, 0)
    doneSp := 0.0
    if n := len(base.Points); n > 0 { doneSp = base.Points[n-1].Done }

    velocity, err := s.selector.Select(ctx, sp, doneSp, base.JH)
    if err != nil { return domain.Burnup{}, fmt.Errorf("velocity sprint %d: %w", sprintID, err) }

    b := s.builder.Build(w, tps, flat, velocity)
    if err := s.repo.SaveJH(ctx, sprintID, b.JH); err != nil {
        s.log.Warn().Err(err).Int64("sprint", sprintID).Msg("persist jh failed")
    }
    return b, nil
}

// CapacityForecast computes per-developer capacity for the sprint:
// gross points are working days scaled by the sprint's start velocity,
// net subtracts the carryover each developer drags in from the board's
// running sprint.
func (s *Service) CapacityForecast(ctx context.Context, sprintID int64) (domain.CapacityForecast, error) {
    sp, err := s.sprintByID(ctx, sprintID)
    if err != nil { return domain.CapacityForecast{}, err }
    w := domain.ResolveWindow(sp, time.Now())

    devs, days, err := s.teamDays(ctx, sprintID, w)
    if err != nil { return domain.CapacityForecast{}, err }

    velocity := s.cfg.FallbackVelocity
    if sp.VelocityStart != nil {
        velocity = *sp.VelocityStart
    } else if v, verr := s.selector.Estimate(ctx, sp.OriginBoardID, true); verr == nil {
        velocity = v
    }

    carry, err := s.carryoverByAssignee(ctx, sp)
    if err != nil { return domain.CapacityForecast{}, err }

    return assembleForecast(sprintID, w, velocity, devs, days, carry), nil
}

// carryoverByAssignee sums the remaining points of the unfinished
// tickets of the board's running sprint, keyed by assignee name. A
// board without a running sprint, or a forecast of that sprint itself,
// carries nothing over.
func (s *Service) carryoverByAssignee(ctx context.Context, next domain.Sprint) (map[string]float64, error) {
    current, err := s.repo.ActiveSprint(ctx, next.OriginBoardID)
    if err != nil { return nil, err }
    if current == nil || current.ID == next.ID { return map[string]float64{}, nil }
    tickets, err := s.jira.SearchJQL(ctx, s.jql.SprintScope(current.ID), s.cfg.JiraPageSize)
    if err != nil { return nil, err }
    carry := map[string]float64{}
    for _, t := range tickets {
        if t.Assignee == "" { continue }
        if slices.Contains(s.cfg.StatusesDone, strings.ToUpper(strings.TrimSpace(t.Status))) { continue }
        carry[t.Assignee] += remainingPoints(t)
    }
    return carry, nil
}

// remainingPoints is the share of the estimate not yet covered by the
// ticket's current progress percentage.
func remainingPoints(t domain.Ticket) float64 {
    left := t.StoryPoints * (1 - t.Progress/100)
    if left < 0 { return 0 }
    return left
}

func assembleForecast(sprintID int64, w domain.SprintWindow, velocity float64, devs []domain.Developer, days map[int64][]domain.CapacityDay, carry map[string]float64) domain.CapacityForecast {
    out := domain.CapacityForecast{SprintID: sprintID, Start: w.Start, End: w.End, Velocity: velocity}
    for _, dev := range devs {
        f := domain.DeveloperForecast{Developer: dev, Days: days[dev.ID], Carryover: round2(carry[dev.Name])}
        for _, d := range days[dev.ID] { f.TotalJH += d.Load }
        f.TotalJH = round2(f.TotalJH)
        f.Gross = round2(f.TotalJH * velocity)
        net := f.Gross - f.Carryover
        if net < 0 { net = 0 }
        f.Net = round2(net)
        out.Developers = append(out.Developers, f)
        out.TotalJH = round2(out.TotalJH + f.TotalJH)
        out.TotalNet = round2(out.TotalNet + f.Net)
    }
    return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// DeveloperCapacity computes one developer's forecast for the sprint.
func (s *Service) DeveloperCapacity(ctx context.Context, sprintID, developerID int64) (domain.DeveloperForecast, error) {
    f, err := s.CapacityForecast(ctx, sprintID)
    if err != nil { return domain.DeveloperForecast{}, err }
    for _, d := range f.Developers {
        if d.Developer.ID == developerID { return d, nil }
    }
    return domain.DeveloperForecast{}, fmt.Errorf("developer %d not in sprint %d forecast", developerID, sprintID)
}

// SyncSprints refreshes the sprint catalogue from every board of the
// configured project. Velocity columns survive the refresh.
func (s *Service) SyncSprints(ctx context.Context) (int, error) {
    boards, err := s.jira.BoardsForProject(ctx, s.cfg.JiraProject)
    if err != nil { return 0, err }
    seen := map[int64]bool{}
    var all []domain.Sprint
    for _, b := range boards {
        sprints, err := s.jira.SprintsForBoard(ctx, b)
        if err != nil { return 0, fmt.Errorf("board %d: %w", b, err) }
        for _, sp := range sprints {
            if seen[sp.ID] { continue }
            if sp.StartDate != nil && sp.StartDate.Before(s.cfg.SprintCutoff) { continue }
            seen[sp.ID] = true
            all = append(all, sp)
        }
    }
    if err := s.repo.UpsertSprints(ctx, all); err != nil { return 0, err }
    return len(all), nil
}

// CandidateBacklog lists the rank-ordered tickets groomed for the next
// sprint, whatever sprint they currently sit in.
func (s *Service) CandidateBacklog(ctx context.Context) ([]domain.Ticket, error) {
    return s.jira.SearchJQL(ctx, s.jql.Candidates(s.cfg.StatusesCandidate), s.cfg.JiraPageSize)
}

// SprintCatalogue lists stored sprints since the configured cutoff.
// Sprints without a recorded start velocity get the recent average so
// the catalogue always carries a usable figure.
func (s *Service) SprintCatalogue(ctx context.Context) ([]domain.Sprint, error) {
    sprints, err := s.repo.ListSprints(ctx, s.cfg.SprintCutoff)
    if err != nil { return nil, err }
    avg := map[int64]*float64{}
    for i := range sprints {
        if sprints[i].VelocityStart != nil { continue }
        board := sprints[i].OriginBoardID
        if avg[board] == nil {
            v, err := s.selector.Estimate(ctx, board, true)
            if err != nil { return nil, err }
            avg[board] = &v
        }
        sprints[i].VelocityStart = avg[board]
    }
    return sprints, nil
}

// SprintByID returns one sprint, enriched from the store when present.
func (s *Service) SprintByID(ctx context.Context, id int64) (domain.Sprint, error) {
    return s.sprintByID(ctx, id)
}

// Digest writes a short sprint review out of the scorecard and burnup.
func (s *Service) Digest(ctx context.Context, sprintID int64) (string, error) {
    kpis, _, err := s.AnalyzeSprintScope(ctx, sprintID)
    if err != nil { return "", err }
    burnup, err := s.BuildBurnup(ctx, sprintID)
    if err != nil { return "", err }
    ctx, cancel := context.WithTimeout(ctx, s.cfg.OpenAITimeout)
    defer cancel()
    return s.llm.SprintDigest(ctx, kpis, burnup)
}

func (s *Service) CacheStats() domain.CacheStats { return s.coord.Cache.Stats() }

func (s *Service) EvictChangelog(key string) { s.coord.Cache.Evict(key) }

// ---- availability admin ----

func (s *Service) ListDevelopers(ctx context.Context) ([]domain.Developer, error) {
    return s.repo.ListDevelopers(ctx)
}

// AvailabilityOverrides lists the per-developer availability factors
// recorded for one sprint.
func (s *Service) AvailabilityOverrides(ctx context.Context, sprintID int64) (map[int64]float64, error) {
    return s.repo.AvailabilityFactors(ctx, sprintID)
}

func (s *Service) SetAvailability(ctx context.Context, sprintID, developerID int64, factor float64) error {
    if factor < 0 || factor > 1 { return fmt.Errorf("availability factor %v out of [0,1]", factor) }
    return s.repo.UpsertAvailability(ctx, sprintID, developerID, factor)
}

func (s *Service) UpsertAbsence(ctx context.Context, a domain.Absence) error {
    if a.End.Before(a.Start) { return fmt.Errorf("absence ends before it starts") }
    return s.repo.UpsertAbsence(ctx, a)
}

func (s *Service) DeleteAbsence(ctx context.Context, developerID int64, start, end time.Time) error {
    return s.repo.DeleteAbsence(ctx, developerID, start, end)
}
