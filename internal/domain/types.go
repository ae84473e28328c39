package domain

import (
    "strings"
    "time"
)

// Ticket is an issue scoped to one analyzed sprint, carrying the
// membership classification and the pre-sprint attribution results.
type Ticket struct {
    Key       string
    Summary   string
    Type      string
    Status    string
    Assignee  string
    Created   time.Time
    SprintIDs []int64

    StoryPoints float64
    // SpBefore is the share of StoryPoints attributed to work finished
    // before the sprint started.
    SpBefore float64
    // Progress is the current advancement percentage field value.
    Progress float64
    // Commitment is the raw value of the commitment select field.
    Commitment string

    Committed bool
    Added     bool
    Removed   bool
    Excluded  bool
    // DoneBefore marks tickets whose development was already finished
    // when the sprint started.
    DoneBefore bool
}

// RemainingSp is the story point share left for the sprint itself,
// never negative.
func (t Ticket) RemainingSp() float64 {
    r := t.StoryPoints - t.SpBefore
    if r < 0 { return 0 }
    return r
}

// ProgressChange is one advancement-percentage transition. From and To
// keep the raw changelog strings, blank meaning no prior value.
type ProgressChange struct {
    At   time.Time
    From string
    To   string
}

// SprintChange is one sprint-field transition. From and To carry the
// raw id tokens of the changelog ("55" or "[55, 56]"); FromNames and
// ToNames the display values, kept for instances that omit the ids.
type SprintChange struct {
    At        time.Time
    From      string
    To        string
    FromNames string
    ToNames   string
}

// IssueChangelog is the full reconstructed history of one issue.
type IssueChangelog struct {
    Key      string
    // StatusAt maps a local timestamp to the status entered at that time.
    StatusAt map[time.Time]string
    Progress []ProgressChange
    Sprints  []SprintChange
}

// LastStatusAtOrBefore returns the most recent status entered at or
// before t, or "" when the timeline has no earlier entry.
func (c IssueChangelog) LastStatusAtOrBefore(t time.Time) string {
    var best time.Time
    var status string
    for at, st := range c.StatusAt {
        if at.After(t) { continue }
        if status == "" || at.After(best) {
            best, status = at, st
        }
    }
    return status
}

// HistoryPage is one page of a raw Jira issue changelog.
type HistoryPage struct {
    StartAt   int
    Total     int
    Histories []HistoryEntry
}

type HistoryEntry struct {
    Created string
    Items   []HistoryItem
}

type HistoryItem struct {
    Field      string
    From       string
    To         string
    FromString string
    ToString   string
}

// Sprint is the agile sprint as reported by Jira, enriched from the store.
type Sprint struct {
    ID            int64
    Name          string
    State         string
    Goal          string
    OriginBoardID int64
    StartDate     *time.Time
    EndDate       *time.Time
    CompleteDate  *time.Time

    VelocityStart    *float64
    VelocityObserved *float64
    JH               float64
}

func (s Sprint) Closed() bool { return strings.EqualFold(s.State, "closed") }
func (s Sprint) Active() bool { return strings.EqualFold(s.State, "active") }

// SprintWindow is the resolved analysis range of one sprint.
type SprintWindow struct {
    Sprint Sprint
    Start  time.Time
    End    time.Time
}

// ResolveWindow computes the effective analysis range of a sprint:
// closed sprints stop at their completion date when known, active
// sprints never extend past today.
func ResolveWindow(s Sprint, now time.Time) SprintWindow {
    w := SprintWindow{Sprint: s}
    if s.StartDate != nil { w.Start = *s.StartDate }
    switch {
    case s.Closed() && s.CompleteDate != nil:
        w.End = *s.CompleteDate
    case s.Active() && s.EndDate != nil:
        if dateOnly(*s.EndDate).Before(dateOnly(now)) {
            w.End = now
        } else {
            w.End = *s.EndDate
        }
    case s.EndDate != nil:
        w.End = *s.EndDate
    }
    return w
}

func dateOnly(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CapacityDay is one developer's contribution on one working day.
type CapacityDay struct {
    Date time.Time `json:"date"`
    Load float64   `json:"load"`
}

// BurnupPoint is one dated point of the cumulative burnup series.
type BurnupPoint struct {
    Date           time.Time `json:"date"`
    Done           float64   `json:"done"`
    Capacity       float64   `json:"capacity"`
    JH             float64   `json:"jh"`
    VelocityToDate float64   `json:"velocityToDate"`
}

// Burnup is the full series plus its sprint-level aggregates.
type Burnup struct {
    SprintID         int64         `json:"sprintId"`
    SprintName       string        `json:"sprintName"`
    TotalStoryPoints float64       `json:"totalStoryPoints"`
    Velocity         float64       `json:"velocity"`
    JH               float64       `json:"jh"`
    Points           []BurnupPoint `json:"points"`
}

// TypeCounter aggregates ticket count and story point sum for one issue type.
type TypeCounter struct {
    Count  int     `json:"count"`
    Points float64 `json:"points"`
}

// KpiSummary is the sprint commitment scorecard.
type KpiSummary struct {
    SprintID   int64  `json:"sprintId"`
    SprintName string `json:"sprintName"`

    Committed     int `json:"committed"`
    Added         int `json:"added"`
    Removed       int `json:"removed"`
    Done          int `json:"done"`
    DoneCommitted int `json:"doneCommitted"`
    DevDoneBefore int `json:"devDoneBefore"`

    PctCommitmentRespected float64 `json:"pctCommitmentRespected"`
    PctUnplannedAdds       float64 `json:"pctUnplannedAdds"`
    PctUnfinishedCommitted float64 `json:"pctUnfinishedCommitted"`
    PctGlobalSuccess       float64 `json:"pctGlobalSuccess"`

    PointsCommitted float64 `json:"pointsCommitted"`
    PointsAdded     float64 `json:"pointsAdded"`
    PointsDone      float64 `json:"pointsDone"`

    ByType map[string]TypeCounter `json:"byType"`
}

// Developer is a team member tracked for capacity purposes.
type Developer struct {
    ID        int64      `json:"id"`
    Name      string     `json:"name"`
    StartDate *time.Time `json:"startDate,omitempty"`
    EndDate   *time.Time `json:"endDate,omitempty"`
}

// Absence is a planned developer absence, possibly a half day.
type Absence struct {
    DeveloperID int64
    Start       time.Time
    End         time.Time
    Morning     bool
    Afternoon   bool
}

// HalfDay reports whether the absence only covers part of a day.
func (a Absence) HalfDay() bool { return a.Morning != a.Afternoon }

// Holiday is a non-working public holiday.
type Holiday struct {
    Date time.Time
    Name string
}

// DeveloperForecast is one developer's capacity over a sprint. Gross
// is the day total converted to points through the sprint velocity;
// Net is gross minus the carryover dragged in from the previous
// sprint, floored at zero.
type DeveloperForecast struct {
    Developer Developer     `json:"developer"`
    Days      []CapacityDay `json:"days"`
    TotalJH   float64       `json:"totalJH"`
    Gross     float64       `json:"gross"`
    Carryover float64       `json:"carryover"`
    Net       float64       `json:"net"`
}

// CapacityForecast is the team capacity over a sprint window.
type CapacityForecast struct {
    SprintID   int64               `json:"sprintId"`
    Start      time.Time           `json:"start"`
    End        time.Time           `json:"end"`
    Velocity   float64             `json:"velocity"`
    Developers []DeveloperForecast `json:"developers"`
    TotalJH    float64             `json:"totalJH"`
    TotalNet   float64             `json:"totalNet"`
}

// CacheStats is a snapshot of changelog cache behaviour.
type CacheStats struct {
    Hits      int64 `json:"hits"`
    Misses    int64 `json:"misses"`
    Loads     int64 `json:"loads"`
    Evictions int64 `json:"evictions"`
    Entries   int   `json:"entries"`
}
