/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/djtchess/jiraSages2/internal/adapters/jira"
    "github.com/djtchess/jiraSages2/internal/adapters/openai"
    "github.com/djtchess/jiraSages2/internal/config"
    httpx "github.com/djtchess/jiraSages2/internal/http"
    "github.com/djtchess/jiraSages2/internal/jobs"
    "github.com/djtchess/jiraSages2/internal/logger"
    "github.com/djtchess/jiraSages2/internal/repo"
    "github.com/djtchess/jiraSages2/internal/services"
    "github.com/djtchess/jiraSages2/internal/sprint"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    repository := repo.NewRepository(db, log)

    // Adapters
    gate := sprint.NewRateGate(cfg.JiraMinInterval)
    jc := jira.NewClient(cfg, gate, log)
    llm := openai.NewClient(cfg, log)

    // Services
    svc := services.New(cfg, log, repository, jc, llm)

    // Warm the sprint catalogue on startup; the cron keeps it fresh afterwards.
    go func(){
        ctx2, cancel2 := context.WithTimeout(ctx, 2*time.Minute); defer cancel2()
        n, err := svc.SyncSprints(ctx2)
        if err != nil { log.Error().Err(err).Msg("startup sprint sync failed"); return }
        log.Info().Int("sprints", n).Msg("startup sprint sync done")
    }()

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    // HTTP server (Gin)
    router := httpx.NewRouter(cfg, log, svc)

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
