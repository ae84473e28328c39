package domain

import (
    "fmt"
    "time"
)

// Jira emits several timestamp shapes depending on endpoint and
// instance age.
var jiraTimeLayouts = []string{
    time.RFC3339Nano,
    time.RFC3339,
    "2006-01-02T15:04:05.000-0700",
    "2006-01-02T15:04:05-0700",
}

// ParseJiraTime parses a Jira timestamp. A shape outside the known
// layouts is an error, never a silent zero value.
func ParseJiraTime(s string) (time.Time, error) {
    for _, layout := range jiraTimeLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t, nil
        }
    }
    return time.Time{}, fmt.Errorf("unparseable jira timestamp %q", s)
}
