package sprint

import (
    "testing"
    "time"

    "github.com/djtchess/jiraSages2/internal/domain"
)

func day(t *testing.T, s string) time.Time {
    t.Helper()
    ts, err := time.Parse("2006-01-02T15:04", s)
    if err != nil { t.Fatalf("parse %s: %v", s, err) }
    return ts
}

func window(t *testing.T, id int64, name, start, end string) domain.SprintWindow {
    t.Helper()
    return domain.SprintWindow{
        Sprint: domain.Sprint{ID: id, Name: name},
        Start:  day(t, start),
        End:    day(t, end),
    }
}

func sprintHistory(changes ...domain.SprintChange) domain.IssueChangelog {
    return domain.IssueChangelog{Sprints: changes}
}

func TestClassify_CommittedWhenInAtStart(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-02T10:00"), From: "", To: "42"},
    )
    tk := domain.Ticket{Key: "SAG-1"}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Committed || tk.Added || tk.Removed || tk.Excluded {
        t.Fatalf("expected committed only, got %+v", tk)
    }
}

func TestClassify_LastEventAtBoundaryWins(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-02T10:00"), From: "", To: "42"},
        // removed exactly at the start boundary: not committed
        domain.SprintChange{At: day(t, "2025-01-06T09:00"), From: "42", To: ""},
    )
    tk := domain.Ticket{Key: "SAG-2"}
    Classifier{}.Classify(&tk, cl, w)
    if tk.Committed { t.Fatalf("boundary removal should cancel commitment: %+v", tk) }
    if !tk.Excluded { t.Fatalf("expected excluded, got %+v", tk) }
}

func TestClassify_AddedDuringSprint(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-08T10:00"), From: "", To: "42"},
    )
    tk := domain.Ticket{Key: "SAG-3"}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Added || tk.Committed { t.Fatalf("expected added, got %+v", tk) }
}

func TestClassify_BracketedIDListAfterStartIsAdded(t *testing.T) {
    // the raw sprint field arrives as "[55]" while the display value is
    // the sprint name; an old ticket pulled in mid-sprint is an addition
    w := window(t, 55, "Sprint 55", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-08T10:00"), From: "", To: "[55]", ToNames: "Sprint 55"},
    )
    tk := domain.Ticket{Key: "SAG-10", Created: day(t, "2024-12-15T10:00")}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Added || tk.Committed { t.Fatalf("expected added, got %+v", tk) }
}

func TestClassify_FallsBackToDisplayNames(t *testing.T) {
    // older changelog entries carry no raw ids at all
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-02T10:00"), FromNames: "", ToNames: "Sprint 42"},
    )
    tk := domain.Ticket{Key: "SAG-11"}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Committed { t.Fatalf("expected committed via display names, got %+v", tk) }
}

func TestClassify_RemovedIsIndependent(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-02T10:00"), From: "", To: "42"},
        domain.SprintChange{At: day(t, "2025-01-09T10:00"), From: "42", To: "43"},
    )
    tk := domain.Ticket{Key: "SAG-4"}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Committed || !tk.Removed { t.Fatalf("expected committed and removed, got %+v", tk) }
}

func TestClassify_EventsPastEndIgnored(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cl := sprintHistory(
        domain.SprintChange{At: day(t, "2025-01-02T10:00"), From: "", To: "42"},
        // sprint closed, the team moved the ticket afterwards
        domain.SprintChange{At: day(t, "2025-01-20T10:00"), From: "42", To: "43"},
    )
    tk := domain.Ticket{Key: "SAG-5"}
    Classifier{}.Classify(&tk, cl, w)
    if !tk.Committed || tk.Removed { t.Fatalf("post-sprint move must not count as removal: %+v", tk) }
}

func TestClassify_FallbackOnSprintField(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    cases := []struct {
        name    string
        created string
        wantAdd bool
    }{
        {"created before start is committed", "2025-01-03T10:00", false},
        {"created after start is added", "2025-01-08T10:00", true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            tk := domain.Ticket{Key: "SAG-6", SprintIDs: []int64{42}, Created: day(t, tc.created)}
            Classifier{}.Classify(&tk, sprintHistory(), w)
            if tk.Added != tc.wantAdd || tk.Committed == tc.wantAdd {
                t.Fatalf("got %+v", tk)
            }
        })
    }
}

func TestClassify_ExcludedWithoutAnySignal(t *testing.T) {
    w := window(t, 42, "Sprint 42", "2025-01-06T09:00", "2025-01-17T18:00")
    tk := domain.Ticket{Key: "SAG-7", SprintIDs: []int64{41}}
    Classifier{}.Classify(&tk, sprintHistory(), w)
    if !tk.Excluded || tk.Committed || tk.Added { t.Fatalf("expected excluded, got %+v", tk) }
}

func TestContainsSprint(t *testing.T) {
    cases := []struct {
        raw  string
        want bool
    }{
        {"Sprint 42", true},
        {"[Sprint 41, Sprint 42]", true},
        {"Sprint 41, Sprint 42, Sprint 43", true},
        {"Sprint 421", false},
        {"Sprint 4", false},
        {"", false},
    }
    for _, tc := range cases {
        if got := containsSprint(tc.raw, "Sprint 42"); got != tc.want {
            t.Fatalf("containsSprint(%q) = %v, want %v", tc.raw, got, tc.want)
        }
    }
    idCases := []struct {
        raw  string
        want bool
    }{
        {"55", true},
        {"[55]", true},
        {"[54, 55]", true},
        {"54,55", true},
        {"[550]", false},
        {"5", false},
    }
    for _, tc := range idCases {
        if got := containsSprint(tc.raw, "55"); got != tc.want {
            t.Fatalf("containsSprint(%q, 55) = %v, want %v", tc.raw, got, tc.want)
        }
    }
}

func TestAttributePreSprint_TakesMaxProgressBeforeStart(t *testing.T) {
    start := day(t, "2025-01-06T09:00")
    cl := domain.IssueChangelog{
        StatusAt: map[time.Time]string{
            day(t, "2025-01-02T10:00"): "ON GOING",
        },
        Progress: []domain.ProgressChange{
            {At: day(t, "2025-01-03T10:00"), From: "", To: "40"},
            {At: day(t, "2025-01-04T10:00"), From: "40", To: "25"},
            // at the boundary itself: not "strictly before", ignored
            {At: start, From: "25", To: "90"},
        },
    }
    tk := domain.Ticket{Key: "SAG-8", StoryPoints: 5}
    c := Classifier{WIPStatuses: []string{"ON GOING", "PAIR REVIEW", "READY TO DEMO", "INTEGRATION PR", "DEV TERMINE"}}
    c.AttributePreSprint(&tk, cl, start)
    if tk.SpBefore != 2.0 { t.Fatalf("expected 2.0 attributed, got %v", tk.SpBefore) }
    if got := tk.RemainingSp(); got != 3.0 { t.Fatalf("expected 3.0 remaining, got %v", got) }
}

func TestAttributePreSprint_ZeroWhenNotStarted(t *testing.T) {
    start := day(t, "2025-01-06T09:00")
    cl := domain.IssueChangelog{
        StatusAt: map[time.Time]string{day(t, "2025-01-02T10:00"): "A FAIRE"},
        Progress: []domain.ProgressChange{{At: day(t, "2025-01-03T10:00"), From: "", To: "40"}},
    }
    tk := domain.Ticket{Key: "SAG-9", StoryPoints: 5}
    c := Classifier{WIPStatuses: []string{"ON GOING"}}
    c.AttributePreSprint(&tk, cl, start)
    if tk.SpBefore != 0 { t.Fatalf("expected no attribution, got %v", tk.SpBefore) }
}

func TestRemainingSp_NeverNegative(t *testing.T) {
    tk := domain.Ticket{StoryPoints: 2, SpBefore: 3}
    if got := tk.RemainingSp(); got != 0 { t.Fatalf("expected 0, got %v", got) }
}
