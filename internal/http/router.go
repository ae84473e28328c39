/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)

    api := r.Group("/api")
    {
        api.GET("/jira/burnup/:sprintID", h.Burnup)
        api.GET("/jira/sprints", h.Sprints)
        api.GET("/jira/sprints/:sprintID", h.Sprint)
        api.GET("/jira/candidates", h.Candidates)
        api.GET("/sprints/:sprintID/scope", h.SprintScope)
        api.GET("/sprints/:sprintID/capacity", h.Capacity)
        api.GET("/sprints/:sprintID/capacity/:developerID", h.DeveloperCapacity)
        api.GET("/sprints/:sprintID/availability", h.Availability)
        api.GET("/sprints/:sprintID/digest", h.Digest)
        api.GET("/developers", h.Developers)
        api.PUT("/sprints/:sprintID/availability/:developerID", h.SetAvailability)
        api.PUT("/developers/:developerID/absences", h.UpsertAbsence)
        api.DELETE("/developers/:developerID/absences", h.DeleteAbsence)
    }

    admin := r.Group("/admin")
    {
        admin.GET("/cache-stats", h.CacheStats)
        admin.POST("/sync-sprints", h.SyncSprints)
        admin.DELETE("/changelog/:key", h.EvictChangelog)
    }

    return r
}
