/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
    "github.com/djtchess/jiraSages2/internal/domain"
)

// Gate throttles outbound calls. Satisfied by sprint.RateGate.
type Gate interface {
    Wait(ctx context.Context) error
}

type Client struct {
    baseURL string
    token   string
    user    string
    pass    string
    http    *http.Client
    gate    Gate
    log     zerolog.Logger

    fieldStoryPoints string
    fieldProgress    string
    fieldSprints     string
    fieldCommitment  string
}

func NewClient(cfg config.Config, gate Gate, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        token:   cfg.JiraPAT,
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    &http.Client{Timeout: cfg.HTTPTimeout},
        gate:    gate,
        log:     log,

        fieldStoryPoints: cfg.JiraFieldStoryPoints,
        fieldProgress:    cfg.JiraFieldProgress,
        fieldSprints:     cfg.JiraFieldSprints,
        fieldCommitment:  cfg.JiraFieldCommitment,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

// do performs one throttled request with up to 3 attempts, retrying
// 429 and 5xx. A 429 Retry-After header wins over the default backoff.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
    if c.baseURL == "" { return errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        if c.gate != nil {
            if err := c.gate.Wait(ctx); err != nil { return err }
        }
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" {
            req.Header.Set("Authorization", "Bearer "+c.token)
        } else if c.user != "" && c.pass != "" {
            req.SetBasicAuth(c.user, c.pass)
        }

        backoff := time.Duration(300*(1<<attempt)) * time.Millisecond
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
        } else {
            func() {
                defer resp.Body.Close()
                if resp.StatusCode >= 300 {
                    b, _ := io.ReadAll(resp.Body)
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                    if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
                        err = lastErr
                        return
                    }
                    if ra := resp.Header.Get("Retry-After"); ra != "" {
                        if secs, perr := strconv.Atoi(ra); perr == nil && secs > 0 {
                            backoff = time.Duration(secs) * time.Second
                        }
                    }
                    err = nil
                    return
                }
                lastErr = nil
                if out != nil {
                    err = json.NewDecoder(resp.Body).Decode(out)
                }
            }()
            if err != nil { return err }
            if lastErr == nil { return nil }
        }
        c.log.Debug().Str("url", u).Int("attempt", attempt+1).Err(lastErr).Msg("jira retry")
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(backoff):
        }
    }
    return lastErr
}

type searchIssue struct {
    ID     string          `json:"id"`
    Key    string          `json:"key"`
    Fields json.RawMessage `json:"fields"`
}

type searchResponse struct {
    Issues        []searchIssue `json:"issues"`
    NextPageToken string        `json:"nextPageToken"`
    IsLast        bool          `json:"isLast"`
}

type issueFields struct {
    Summary   string     `json:"summary"`
    Created   string     `json:"created"`
    IssueType *namedItem `json:"issuetype"`
    Status    *namedItem `json:"status"`
    Assignee  *struct {
        DisplayName string `json:"displayName"`
    } `json:"assignee"`
}

type namedItem struct {
    Name string `json:"name"`
}

type fieldSprint struct {
    ID int64 `json:"id"`
}

// SearchJQL walks every page of an enhanced-search query and maps the
// issues into tickets, decoding the configured custom fields.
func (c *Client) SearchJQL(ctx context.Context, jql string, pageSize int) ([]domain.Ticket, error) {
    if strings.TrimSpace(jql) == "" { return nil, errors.New("jira: empty jql") }
    u := c.apiURL("/rest/api/3/search/jql", nil)
    fields := []string{"summary", "created", "issuetype", "status", "assignee",
        c.fieldStoryPoints, c.fieldProgress, c.fieldSprints, c.fieldCommitment}

    var out []domain.Ticket
    token := ""
    for {
        body := map[string]any{"jql": jql, "maxResults": pageSize, "fields": fields}
        if token != "" { body["nextPageToken"] = token }
        var page searchResponse
        if err := c.do(ctx, http.MethodPost, u, body, &page); err != nil {
            return nil, fmt.Errorf("jira search: %w", err)
        }
        for _, is := range page.Issues {
            t, err := c.mapTicket(is)
            if err != nil { return nil, fmt.Errorf("jira issue %s: %w", is.Key, err) }
            out = append(out, t)
        }
        if page.IsLast || page.NextPageToken == "" { break }
        token = page.NextPageToken
    }
    return out, nil
}

func (c *Client) mapTicket(is searchIssue) (domain.Ticket, error) {
    var f issueFields
    if err := json.Unmarshal(is.Fields, &f); err != nil { return domain.Ticket{}, err }

    t := domain.Ticket{Key: is.Key, Summary: f.Summary}
    if f.IssueType != nil { t.Type = f.IssueType.Name }
    if f.Status != nil { t.Status = f.Status.Name }
    if f.Assignee != nil { t.Assignee = f.Assignee.DisplayName }
    if f.Created != "" {
        created, err := domain.ParseJiraTime(f.Created)
        if err != nil { return domain.Ticket{}, err }
        t.Created = created
    }

    // custom fields come back under dynamic keys
    var raw map[string]json.RawMessage
    if err := json.Unmarshal(is.Fields, &raw); err != nil { return domain.Ticket{}, err }
    if v, ok := raw[c.fieldStoryPoints]; ok {
        var sp *float64
        if err := json.Unmarshal(v, &sp); err == nil && sp != nil { t.StoryPoints = *sp }
    }
    if v, ok := raw[c.fieldProgress]; ok {
        var pc *float64
        if err := json.Unmarshal(v, &pc); err == nil && pc != nil { t.Progress = *pc }
    }
    if v, ok := raw[c.fieldSprints]; ok {
        var sprints []fieldSprint
        if err := json.Unmarshal(v, &sprints); err == nil {
            for _, s := range sprints { t.SprintIDs = append(t.SprintIDs, s.ID) }
        }
    }
    if v, ok := raw[c.fieldCommitment]; ok {
        var sel *struct {
            Value string `json:"value"`
        }
        if err := json.Unmarshal(v, &sel); err == nil && sel != nil { t.Commitment = sel.Value }
    }
    return t, nil
}

type changelogResponse struct {
    StartAt   int `json:"startAt"`
    Total     int `json:"total"`
    Histories []struct {
        Created string `json:"created"`
        Items   []struct {
            Field      string `json:"field"`
            From       string `json:"from"`
            To         string `json:"to"`
            FromString string `json:"fromString"`
            ToString   string `json:"toString"`
        } `json:"items"`
    } `json:"values"`
}

// ChangelogPage fetches one page of an issue's changelog.
func (c *Client) ChangelogPage(ctx context.Context, key string, startAt, max int) (domain.HistoryPage, error) {
    if key == "" { return domain.HistoryPage{}, errors.New("jira: empty issue key") }
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", strconv.Itoa(startAt)) }
    if max > 0 { q.Set("maxResults", strconv.Itoa(max)) }
    u := c.apiURL("/rest/api/3/issue/"+url.PathEscape(key)+"/changelog", q)

    var resp changelogResponse
    if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
        return domain.HistoryPage{}, fmt.Errorf("jira changelog %s: %w", key, err)
    }
    page := domain.HistoryPage{StartAt: resp.StartAt, Total: resp.Total}
    for _, h := range resp.Histories {
        e := domain.HistoryEntry{Created: h.Created}
        for _, it := range h.Items {
            e.Items = append(e.Items, domain.HistoryItem{
                Field:      it.Field,
                From:       it.From,
                To:         it.To,
                FromString: it.FromString,
                ToString:   it.ToString,
            })
        }
        page.Histories = append(page.Histories, e)
    }
    return page, nil
}

type sprintResponse struct {
    ID            int64  `json:"id"`
    Name          string `json:"name"`
    State         string `json:"state"`
    Goal          string `json:"goal"`
    OriginBoardID int64  `json:"originBoardId"`
    StartDate     string `json:"startDate"`
    EndDate       string `json:"endDate"`
    CompleteDate  string `json:"completeDate"`
}

func (r sprintResponse) toDomain() (domain.Sprint, error) {
    s := domain.Sprint{ID: r.ID, Name: r.Name, State: r.State, Goal: r.Goal, OriginBoardID: r.OriginBoardID}
    for _, p := range []struct {
        raw string
        dst **time.Time
    }{
        {r.StartDate, &s.StartDate},
        {r.EndDate, &s.EndDate},
        {r.CompleteDate, &s.CompleteDate},
    } {
        if p.raw == "" { continue }
        t, err := domain.ParseJiraTime(p.raw)
        if err != nil { return domain.Sprint{}, err }
        *p.dst = &t
    }
    return s, nil
}

// SprintInfo fetches a single sprint through the Agile API.
func (c *Client) SprintInfo(ctx context.Context, sprintID int64) (domain.Sprint, error) {
    if sprintID <= 0 { return domain.Sprint{}, errors.New("jira: invalid sprint id") }
    u := c.apiURL("/rest/agile/1.0/sprint/"+strconv.FormatInt(sprintID, 10), nil)
    var resp sprintResponse
    if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
        return domain.Sprint{}, fmt.Errorf("jira sprint %d: %w", sprintID, err)
    }
    return resp.toDomain()
}

type boardsResponse struct {
    IsLast bool `json:"isLast"`
    Values []struct {
        ID   int64  `json:"id"`
        Name string `json:"name"`
        Location struct {
            ProjectKey string `json:"projectKey"`
        } `json:"location"`
    } `json:"values"`
}

// BoardsForProject lists the ids of every board attached to a project.
func (c *Client) BoardsForProject(ctx context.Context, projectKey string) ([]int64, error) {
    var out []int64
    start := 0
    for {
        q := url.Values{}
        q.Set("projectKeyOrId", projectKey)
        if start > 0 { q.Set("startAt", strconv.Itoa(start)) }
        var resp boardsResponse
        if err := c.do(ctx, http.MethodGet, c.apiURL("/rest/agile/1.0/board", q), nil, &resp); err != nil {
            return nil, fmt.Errorf("jira boards %s: %w", projectKey, err)
        }
        for _, b := range resp.Values { out = append(out, b.ID) }
        if resp.IsLast || len(resp.Values) == 0 { break }
        start += len(resp.Values)
    }
    return out, nil
}

type sprintsResponse struct {
    IsLast bool             `json:"isLast"`
    Values []sprintResponse `json:"values"`
}

// SprintsForBoard pages through every sprint of a board.
func (c *Client) SprintsForBoard(ctx context.Context, boardID int64) ([]domain.Sprint, error) {
    if boardID <= 0 { return nil, errors.New("jira: invalid board id") }
    var out []domain.Sprint
    start := 0
    for {
        q := url.Values{}
        if start > 0 { q.Set("startAt", strconv.Itoa(start)) }
        u := c.apiURL("/rest/agile/1.0/board/"+strconv.FormatInt(boardID, 10)+"/sprint", q)
        var resp sprintsResponse
        if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
            return nil, fmt.Errorf("jira sprints board %d: %w", boardID, err)
        }
        for _, r := range resp.Values {
            s, err := r.toDomain()
            if err != nil { return nil, err }
            if s.OriginBoardID == 0 { s.OriginBoardID = boardID }
            out = append(out, s)
        }
        if resp.IsLast || len(resp.Values) == 0 { break }
        start += len(resp.Values)
    }
    return out, nil
}
