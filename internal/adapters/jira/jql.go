/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "fmt"
    "strings"
    "time"
)

// JQL assembles sprint-scope queries out of the configured project
// vocabulary. Values are quoted, never interpolated raw.
type JQL struct {
    Project           string
    IssueTypes        []string
    Statuses          []string
    ExcludedAssignees []string
}

func quoteList(vals []string) string {
    q := make([]string, 0, len(vals))
    for _, v := range vals {
        q = append(q, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
    }
    return strings.Join(q, ", ")
}

// SprintScope selects every issue that ever belonged to the sprint.
func (j JQL) SprintScope(sprintID int64) string {
    var b strings.Builder
    fmt.Fprintf(&b, "project = %q AND sprint = %d", j.Project, sprintID)
    if len(j.IssueTypes) > 0 {
        fmt.Fprintf(&b, " AND issuetype IN (%s)", quoteList(j.IssueTypes))
    }
    if len(j.Statuses) > 0 {
        fmt.Fprintf(&b, " AND status IN (%s)", quoteList(j.Statuses))
    }
    if len(j.ExcludedAssignees) > 0 {
        fmt.Fprintf(&b, " AND (assignee NOT IN (%s) OR assignee IS EMPTY)", quoteList(j.ExcludedAssignees))
    }
    return b.String()
}

// UpdatedInWindow selects issues touched during the sprint window and
// still sitting in one of the given statuses; combined with SprintScope
// it recovers tickets removed from the sprint mid-way. The end bound is
// exclusive, padded by a second to keep it inclusive at minute grain.
func (j JQL) UpdatedInWindow(statuses []string, start, end time.Time) string {
    var b strings.Builder
    fmt.Fprintf(&b, "project = %q", j.Project)
    if len(j.IssueTypes) > 0 {
        fmt.Fprintf(&b, " AND issuetype IN (%s)", quoteList(j.IssueTypes))
    }
    if len(statuses) > 0 {
        fmt.Fprintf(&b, " AND status IN (%s)", quoteList(statuses))
    }
    if len(j.ExcludedAssignees) > 0 {
        fmt.Fprintf(&b, " AND (assignee NOT IN (%s) OR assignee IS EMPTY)", quoteList(j.ExcludedAssignees))
    }
    const layout = "2006-01-02 15:04"
    fmt.Fprintf(&b, " AND updated >= %q AND updated < %q",
        start.Format(layout), end.Add(time.Second).Format(layout))
    return b.String()
}

// Candidates selects backlog issues eligible for the next sprint.
func (j JQL) Candidates(statuses []string) string {
    var b strings.Builder
    fmt.Fprintf(&b, "project = %q", j.Project)
    if len(statuses) > 0 {
        fmt.Fprintf(&b, " AND status IN (%s)", quoteList(statuses))
    }
    if len(j.IssueTypes) > 0 {
        fmt.Fprintf(&b, " AND issuetype IN (%s)", quoteList(j.IssueTypes))
    }
    b.WriteString(" ORDER BY rank ASC")
    return b.String()
}
