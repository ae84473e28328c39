package jira

import (
    "strings"
    "testing"
    "time"
)

func TestSprintScope(t *testing.T) {
    j := JQL{
        Project:           "SAG",
        IssueTypes:        []string{"Story", "Bug"},
        ExcludedAssignees: []string{"bot"},
    }
    got := j.SprintScope(42)
    for _, want := range []string{
        `project = "SAG"`,
        "sprint = 42",
        `issuetype IN ("Story", "Bug")`,
        `assignee NOT IN ("bot")`,
    } {
        if !strings.Contains(got, want) {
            t.Fatalf("missing %q in %q", want, got)
        }
    }
}

func TestSprintScope_OmitsEmptyClauses(t *testing.T) {
    got := JQL{Project: "SAG"}.SprintScope(7)
    if strings.Contains(got, "issuetype") || strings.Contains(got, "assignee") {
        t.Fatalf("unexpected clause in %q", got)
    }
}

func TestUpdatedInWindow_BoundsAndStatuses(t *testing.T) {
    j := JQL{Project: "SAG", IssueTypes: []string{"Story"}}
    start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
    end := time.Date(2025, 1, 17, 18, 0, 59, 0, time.UTC)
    got := j.UpdatedInWindow([]string{"A FAIRE", "ON GOING"}, start, end)
    for _, want := range []string{
        `project = "SAG"`,
        `status IN ("A FAIRE", "ON GOING")`,
        `updated >= "2025-01-06 09:00"`,
        `updated < "2025-01-17 18:01"`,
    } {
        if !strings.Contains(got, want) {
            t.Fatalf("missing %q in %q", want, got)
        }
    }
    if strings.Contains(got, "sprint =") { t.Fatalf("window query must not pin a sprint: %q", got) }
}

func TestCandidates_QuotesStatuses(t *testing.T) {
    got := JQL{Project: "SAG"}.Candidates([]string{"A FAIRE", "ON GOING"})
    if !strings.Contains(got, `status IN ("A FAIRE", "ON GOING")`) {
        t.Fatalf("got %q", got)
    }
    if !strings.HasSuffix(got, "ORDER BY rank ASC") { t.Fatalf("got %q", got) }
}
