package sprint

import (
    "testing"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

func burnupWindow(t *testing.T) domain.SprintWindow {
    t.Helper()
    return domain.SprintWindow{
        Sprint: domain.Sprint{ID: 42, Name: "Sprint 42"},
        Start:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
        End:    time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC),
    }
}

func teamDays(loads ...float64) []domain.CapacityDay {
    out := make([]domain.CapacityDay, len(loads))
    for i, l := range loads {
        out[i] = domain.CapacityDay{Date: time.Date(2025, 1, 6+i, 0, 0, 0, 0, time.UTC), Load: l}
    }
    return out
}

func TestBuild_CumulativeSeries(t *testing.T) {
    w := burnupWindow(t)
    tickets := []TicketProgress{
        {
            Ticket: domain.Ticket{Key: "SAG-1", StoryPoints: 5},
            Progress: []domain.ProgressChange{
                {At: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC), From: "", To: "40"},
                {At: time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC), From: "40", To: "100"},
            },
        },
        {
            Ticket: domain.Ticket{Key: "SAG-2", StoryPoints: 3},
            Progress: []domain.ProgressChange{
                {At: time.Date(2025, 1, 9, 15, 0, 0, 0, time.UTC), From: "", To: "100"},
            },
        },
    }
    days := teamDays(2, 2, 2, 2, 2)

    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, days, 0.8)
    if len(b.Points) != 5 { t.Fatalf("expected 5 points, got %d", len(b.Points)) }

    // day 1: no progress, net JH 1.4
    if p := b.Points[0]; p.Done != 0 || p.JH != 1.4 || p.Capacity != 1.12 {
        t.Fatalf("day1: %+v", p)
    }
    // day 2: SAG-1 moves to 40% of 5sp = 2.0
    if p := b.Points[1]; p.Done != 2.0 || p.JH != 2.8 {
        t.Fatalf("day2: %+v", p)
    }
    // day 4: SAG-1 finishes (+3.0), SAG-2 finishes (+3.0)
    if p := b.Points[3]; p.Done != 8.0 {
        t.Fatalf("day4: %+v", p)
    }
    // last day keeps its full load
    if p := b.Points[4]; p.JH != 7.6 {
        t.Fatalf("last day JH: %+v", p)
    }
    if b.TotalStoryPoints != 8.0 { t.Fatalf("total sp: %v", b.TotalStoryPoints) }

    for i := 1; i < len(b.Points); i++ {
        if b.Points[i].Done < b.Points[i-1].Done || b.Points[i].JH < b.Points[i-1].JH {
            t.Fatalf("series must be monotonic: %+v", b.Points)
        }
    }
}

func TestBuild_ResetArtifactIgnored(t *testing.T) {
    w := burnupWindow(t)
    tickets := []TicketProgress{{
        Ticket: domain.Ticket{Key: "SAG-3", StoryPoints: 4},
        Progress: []domain.ProgressChange{
            // carried over from a previous sprint, first event drops from 100
            {At: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC), From: "100", To: "0"},
            {At: time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC), From: "0", To: "50"},
        },
    }}
    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, teamDays(1, 1, 1), 0.8)
    final := b.Points[len(b.Points)-1]
    if final.Done != 2.0 { t.Fatalf("expected 2.0 done, got %v", final.Done) }
}

func TestBuild_OutOfWindowProgressIgnored(t *testing.T) {
    w := burnupWindow(t)
    tickets := []TicketProgress{{
        Ticket: domain.Ticket{Key: "SAG-4", StoryPoints: 4},
        Progress: []domain.ProgressChange{
            {At: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), From: "", To: "50"},
            {At: time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC), From: "50", To: "100"},
        },
    }}
    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, teamDays(1, 1), 0.8)
    for _, p := range b.Points {
        if p.Done != 0 { t.Fatalf("out of window progress leaked: %+v", p) }
    }
}

func TestBuild_LateDoneDateKeepsLastCapacityDayWhole(t *testing.T) {
    w := burnupWindow(t)
    // progress lands the day after the team's last worked day; the
    // overhead exemption must stay on the last capacity day
    tickets := []TicketProgress{{
        Ticket: domain.Ticket{Key: "SAG-7", StoryPoints: 2},
        Progress: []domain.ProgressChange{
            {At: time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC), From: "", To: "100"},
        },
    }}
    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, teamDays(1, 1), 0.8)
    if len(b.Points) != 3 { t.Fatalf("expected 3 points, got %d", len(b.Points)) }
    if p := b.Points[1]; p.JH != 1.4 {
        t.Fatalf("last worked day must keep its full load: %+v", p)
    }
    final := b.Points[2]
    if final.JH != 1.4 || final.Done != 2.0 { t.Fatalf("final: %+v", final) }
}

func TestBuild_AttributedPointsReduceScope(t *testing.T) {
    w := burnupWindow(t)
    tickets := []TicketProgress{{
        Ticket: domain.Ticket{Key: "SAG-5", StoryPoints: 5, SpBefore: 2},
        Progress: []domain.ProgressChange{
            {At: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC), From: "", To: "100"},
        },
    }}
    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, teamDays(1, 1), 0.8)
    if b.TotalStoryPoints != 3.0 { t.Fatalf("expected scope 3.0, got %v", b.TotalStoryPoints) }
    final := b.Points[len(b.Points)-1]
    if final.Done != 3.0 { t.Fatalf("done must use remaining points: %v", final.Done) }
}

func TestBuild_VelocityToDateGuardsZeroJH(t *testing.T) {
    w := burnupWindow(t)
    tickets := []TicketProgress{{
        Ticket: domain.Ticket{Key: "SAG-6", StoryPoints: 2},
        Progress: []domain.ProgressChange{
            {At: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), From: "", To: "100"},
        },
    }}
    // single day: it is the last one, loads stay whole but a zero-load
    // day must never divide by zero
    b := BurnupBuilder{DailyOverheadJH: 0.6}.Build(w, tickets, teamDays(0), 0.8)
    if p := b.Points[0]; p.VelocityToDate != 0 { t.Fatalf("expected guarded 0, got %+v", p) }
}
