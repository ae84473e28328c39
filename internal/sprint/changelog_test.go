package sprint

import (
    "context"
    "testing"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

func parisLoc(t *testing.T) *time.Location {
    t.Helper()
    loc, err := time.LoadLocation("Europe/Paris")
    if err != nil { t.Fatalf("load location: %v", err) }
    return loc
}

func TestReconstructor_PagesUntilTotal(t *testing.T) {
    loc := parisLoc(t)
    pages := []domain.HistoryPage{
        {Total: 3, Histories: []domain.HistoryEntry{
            {Created: "2025-01-10T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "status", FromString: "A FAIRE", ToString: "ON GOING"}}},
            {Created: "2025-01-11T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "avancement", FromString: "", ToString: "30"}}},
        }},
        {Total: 3, Histories: []domain.HistoryEntry{
            {Created: "2025-01-12T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "Sprint", From: "", To: "42", FromString: "", ToString: "Sprint 42"}}},
        }},
    }
    var calls []int
    fetch := func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error) {
        calls = append(calls, startAt)
        if startAt == 0 { return pages[0], nil }
        return pages[1], nil
    }

    cl, err := Reconstructor{Loc: loc, PageSize: 2}.Build(context.Background(), "SAG-1", fetch)
    if err != nil { t.Fatalf("build: %v", err) }
    if len(calls) != 2 || calls[0] != 0 || calls[1] != 2 { t.Fatalf("unexpected paging calls %v", calls) }
    if len(cl.StatusAt) != 1 { t.Fatalf("expected 1 status entry, got %d", len(cl.StatusAt)) }
    if len(cl.Progress) != 1 || cl.Progress[0].To != "30" { t.Fatalf("unexpected progress %#v", cl.Progress) }
    if len(cl.Sprints) != 1 || cl.Sprints[0].To != "42" || cl.Sprints[0].ToNames != "Sprint 42" {
        t.Fatalf("unexpected sprints %#v", cl.Sprints)
    }
}

func TestReconstructor_ProgressLastWriteWinsAndSorted(t *testing.T) {
    loc := parisLoc(t)
    page := domain.HistoryPage{Total: 3, Histories: []domain.HistoryEntry{
        {Created: "2025-01-12T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "avancement", FromString: "30", ToString: "60"}}},
        {Created: "2025-01-10T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "avancement", FromString: "", ToString: "10"}}},
        // same raw timestamp as the first entry: overwrites it
        {Created: "2025-01-12T09:00:00.000+0100", Items: []domain.HistoryItem{{Field: "avancement", FromString: "30", ToString: "80"}}},
    }}
    fetch := func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error) { return page, nil }

    cl, err := Reconstructor{Loc: loc}.Build(context.Background(), "SAG-2", fetch)
    if err != nil { t.Fatalf("build: %v", err) }
    if len(cl.Progress) != 2 { t.Fatalf("expected 2 deduplicated entries, got %#v", cl.Progress) }
    if cl.Progress[0].To != "10" || cl.Progress[1].To != "80" {
        t.Fatalf("expected ascending [10 80], got %#v", cl.Progress)
    }
}

func TestReconstructor_StatusKeyedInLocation(t *testing.T) {
    loc := parisLoc(t)
    page := domain.HistoryPage{Total: 1, Histories: []domain.HistoryEntry{
        {Created: "2025-01-10T23:30:00.000-0500", Items: []domain.HistoryItem{{Field: "STATUS", ToString: "FAIT"}}},
    }}
    fetch := func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error) { return page, nil }

    cl, err := Reconstructor{Loc: loc}.Build(context.Background(), "SAG-3", fetch)
    if err != nil { t.Fatalf("build: %v", err) }
    want := time.Date(2025, 1, 11, 5, 30, 0, 0, loc)
    if st, ok := cl.StatusAt[want]; !ok || st != "FAIT" {
        t.Fatalf("expected FAIT at %v, got %#v", want, cl.StatusAt)
    }
}

func TestReconstructor_MalformedTimestampFails(t *testing.T) {
    page := domain.HistoryPage{Total: 1, Histories: []domain.HistoryEntry{
        {Created: "10/01/2025 09:00", Items: []domain.HistoryItem{{Field: "status", ToString: "FAIT"}}},
    }}
    fetch := func(ctx context.Context, key string, startAt int) (domain.HistoryPage, error) { return page, nil }

    _, err := Reconstructor{Loc: time.UTC}.Build(context.Background(), "SAG-4", fetch)
    if err == nil { t.Fatal("expected error for malformed timestamp") }
}

