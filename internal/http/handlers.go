/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
    "github.com/djtchess/jiraSages2/internal/domain"
)

type service interface {
    AnalyzeSprintScope(ctx context.Context, sprintID int64) (domain.KpiSummary, []domain.Ticket, error)
    BuildBurnup(ctx context.Context, sprintID int64) (domain.Burnup, error)
    CapacityForecast(ctx context.Context, sprintID int64) (domain.CapacityForecast, error)
    DeveloperCapacity(ctx context.Context, sprintID, developerID int64) (domain.DeveloperForecast, error)
    AvailabilityOverrides(ctx context.Context, sprintID int64) (map[int64]float64, error)
    SprintCatalogue(ctx context.Context) ([]domain.Sprint, error)
    CandidateBacklog(ctx context.Context) ([]domain.Ticket, error)
    SprintByID(ctx context.Context, id int64) (domain.Sprint, error)
    SyncSprints(ctx context.Context) (int, error)
    Digest(ctx context.Context, sprintID int64) (string, error)
    CacheStats() domain.CacheStats
    EvictChangelog(key string)
    ListDevelopers(ctx context.Context) ([]domain.Developer, error)
    SetAvailability(ctx context.Context, sprintID, developerID int64, factor float64) error
    UpsertAbsence(ctx context.Context, a domain.Absence) error
    DeleteAbsence(ctx context.Context, developerID int64, start, end time.Time) error
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func sprintID(c *gin.Context) (int64, bool) {
    id, err := strconv.ParseInt(c.Param("sprintID"), 10, 64)
    if err != nil || id <= 0 {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sprint id"})
        return 0, false
    }
    return id, true
}

func (h *Handlers) Burnup(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    b, err := h.svc.BuildBurnup(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, b)
}

func (h *Handlers) Sprints(c *gin.Context) {
    sprints, err := h.svc.SprintCatalogue(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, sprints)
}

func (h *Handlers) Sprint(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    s, err := h.svc.SprintByID(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, s)
}

func (h *Handlers) Candidates(c *gin.Context) {
    tickets, err := h.svc.CandidateBacklog(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, tickets)
}

func (h *Handlers) SprintScope(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    kpis, tickets, err := h.svc.AnalyzeSprintScope(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"kpis": kpis, "tickets": tickets})
}

func (h *Handlers) Capacity(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    f, err := h.svc.CapacityForecast(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, f)
}

func (h *Handlers) Digest(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    if h.cfg.OpenAIKey == "" {
        c.JSON(http.StatusServiceUnavailable, gin.H{"error": "digest disabled: no OpenAI key configured"})
        return
    }
    text, err := h.svc.Digest(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"digest": text})
}

func (h *Handlers) Developers(c *gin.Context) {
    devs, err := h.svc.ListDevelopers(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, devs)
}

func (h *Handlers) DeveloperCapacity(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    devID, err := strconv.ParseInt(c.Param("developerID"), 10, 64)
    if err != nil || devID <= 0 {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid developer id"})
        return
    }
    f, err := h.svc.DeveloperCapacity(c.Request.Context(), id, devID)
    if err != nil {
        c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, f)
}

func (h *Handlers) Availability(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    overrides, err := h.svc.AvailabilityOverrides(c.Request.Context(), id)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, overrides)
}

func (h *Handlers) SetAvailability(c *gin.Context) {
    id, ok := sprintID(c)
    if !ok { return }
    devID, err := strconv.ParseInt(c.Param("developerID"), 10, 64)
    if err != nil || devID <= 0 {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid developer id"})
        return
    }
    var body struct {
        Factor float64 `json:"factor"`
    }
    if err := c.ShouldBindJSON(&body); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    if err := h.svc.SetAvailability(c.Request.Context(), id, devID, body.Factor); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

type absenceBody struct {
    Start     string `json:"start"`
    End       string `json:"end"`
    Morning   bool   `json:"morning"`
    Afternoon bool   `json:"afternoon"`
}

func (b absenceBody) dates() (time.Time, time.Time, error) {
    start, err := time.Parse("2006-01-02", b.Start)
    if err != nil { return time.Time{}, time.Time{}, err }
    end, err := time.Parse("2006-01-02", b.End)
    if err != nil { return time.Time{}, time.Time{}, err }
    return start, end, nil
}

func (h *Handlers) UpsertAbsence(c *gin.Context) {
    devID, err := strconv.ParseInt(c.Param("developerID"), 10, 64)
    if err != nil || devID <= 0 {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid developer id"})
        return
    }
    var body absenceBody
    if err := c.ShouldBindJSON(&body); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    start, end, err := body.dates()
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    a := domain.Absence{DeveloperID: devID, Start: start, End: end, Morning: body.Morning, Afternoon: body.Afternoon}
    if err := h.svc.UpsertAbsence(c.Request.Context(), a); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) DeleteAbsence(c *gin.Context) {
    devID, err := strconv.ParseInt(c.Param("developerID"), 10, 64)
    if err != nil || devID <= 0 {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid developer id"})
        return
    }
    var body absenceBody
    if err := c.ShouldBindJSON(&body); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    start, end, err := body.dates()
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    if err := h.svc.DeleteAbsence(c.Request.Context(), devID, start, end); err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) CacheStats(c *gin.Context) {
    c.JSON(http.StatusOK, h.svc.CacheStats())
}

func (h *Handlers) SyncSprints(c *gin.Context) {
    // detach from the request so a slow Jira walk survives disconnects
    go func() {
        n, err := h.svc.SyncSprints(context.Background())
        if err != nil {
            h.log.Error().Err(err).Msg("sprint sync failed")
            return
        }
        h.log.Info().Int("sprints", n).Msg("sprint sync done")
    }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) EvictChangelog(c *gin.Context) {
    key := c.Param("key")
    if key == "" {
        c.JSON(http.StatusBadRequest, gin.H{"error": "missing issue key"})
        return
    }
    h.svc.EvictChangelog(key)
    c.JSON(http.StatusOK, gin.H{"ok": true})
}
