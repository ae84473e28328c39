package repo

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
    "github.com/djtchess/jiraSages2/internal/domain"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// ---- sprints ----

// UpsertSprints refreshes sprint rows from Jira while preserving the
// locally computed velocity columns.
func (r *Repository) UpsertSprints(ctx context.Context, sprints []domain.Sprint) error {
    if len(sprints) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO sprint_info(id, name, state, goal, origin_board_id, start_date, end_date, complete_date)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT(id) DO UPDATE SET
            name=EXCLUDED.name,
            state=EXCLUDED.state,
            goal=EXCLUDED.goal,
            origin_board_id=EXCLUDED.origin_board_id,
            start_date=EXCLUDED.start_date,
            end_date=EXCLUDED.end_date,
            complete_date=EXCLUDED.complete_date`
    for _, s := range sprints {
        batch.Queue(q, s.ID, s.Name, s.State, s.Goal, s.OriginBoardID, s.StartDate, s.EndDate, s.CompleteDate)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range sprints { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) GetSprint(ctx context.Context, id int64) (*domain.Sprint, error) {
    const q = `SELECT id, name, COALESCE(state,''), COALESCE(goal,''), COALESCE(origin_board_id,0),
        start_date, end_date, complete_date, velocity_start, velocity_observed, COALESCE(jh,0)
        FROM sprint_info WHERE id=$1`
    var s domain.Sprint
    row := r.db.Pool.QueryRow(ctx, q, id)
    if err := row.Scan(&s.ID, &s.Name, &s.State, &s.Goal, &s.OriginBoardID,
        &s.StartDate, &s.EndDate, &s.CompleteDate, &s.VelocityStart, &s.VelocityObserved, &s.JH); err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
        return nil, err
    }
    return &s, nil
}

func (r *Repository) ListSprints(ctx context.Context, since time.Time) ([]domain.Sprint, error) {
    const q = `SELECT id, name, COALESCE(state,''), COALESCE(goal,''), COALESCE(origin_board_id,0),
        start_date, end_date, complete_date, velocity_start, velocity_observed, COALESCE(jh,0)
        FROM sprint_info WHERE start_date IS NULL OR start_date >= $1
        ORDER BY start_date DESC NULLS LAST`
    rows, err := r.db.Pool.Query(ctx, q, since)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Sprint
    for rows.Next() {
        var s domain.Sprint
        if err := rows.Scan(&s.ID, &s.Name, &s.State, &s.Goal, &s.OriginBoardID,
            &s.StartDate, &s.EndDate, &s.CompleteDate, &s.VelocityStart, &s.VelocityObserved, &s.JH); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// ActiveSprint returns the most recently started active sprint of a
// board, or nil when the board has none.
func (r *Repository) ActiveSprint(ctx context.Context, boardID int64) (*domain.Sprint, error) {
    const q = `SELECT id, name, COALESCE(state,''), COALESCE(goal,''), COALESCE(origin_board_id,0),
        start_date, end_date, complete_date, velocity_start, velocity_observed, COALESCE(jh,0)
        FROM sprint_info WHERE lower(state)='active' AND origin_board_id=$1
        ORDER BY start_date DESC NULLS LAST LIMIT 1`
    var s domain.Sprint
    row := r.db.Pool.QueryRow(ctx, q, boardID)
    if err := row.Scan(&s.ID, &s.Name, &s.State, &s.Goal, &s.OriginBoardID,
        &s.StartDate, &s.EndDate, &s.CompleteDate, &s.VelocityStart, &s.VelocityObserved, &s.JH); err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
        return nil, err
    }
    return &s, nil
}

// RecentVelocities returns recorded velocities of recent sprints of one
// board, newest first. Closed sprints contribute their observed
// velocity; when includeActive is set, running sprints contribute
// their start estimate.
func (r *Repository) RecentVelocities(ctx context.Context, boardID int64, includeActive bool, limit int) ([]float64, error) {
    const q = `SELECT CASE WHEN lower(state)='closed' THEN velocity_observed ELSE velocity_start END
        FROM sprint_info
        WHERE origin_board_id=$1
          AND ((lower(state)='closed' AND velocity_observed IS NOT NULL)
           OR ($2 AND lower(state)='active' AND velocity_start IS NOT NULL))
        ORDER BY start_date DESC NULLS LAST
        LIMIT $3`
    rows, err := r.db.Pool.Query(ctx, q, boardID, includeActive, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []float64
    for rows.Next() {
        var v *float64
        if err := rows.Scan(&v); err != nil { return nil, err }
        if v != nil { out = append(out, *v) }
    }
    return out, rows.Err()
}

func (r *Repository) SaveVelocityStart(ctx context.Context, sprintID int64, v float64) error {
    _, err := r.db.Pool.Exec(ctx, `UPDATE sprint_info SET velocity_start=$2 WHERE id=$1`, sprintID, v)
    return err
}

func (r *Repository) SaveVelocityObserved(ctx context.Context, sprintID int64, v float64) error {
    _, err := r.db.Pool.Exec(ctx, `UPDATE sprint_info SET velocity_observed=$2 WHERE id=$1`, sprintID, v)
    return err
}

func (r *Repository) SaveJH(ctx context.Context, sprintID int64, jh float64) error {
    _, err := r.db.Pool.Exec(ctx, `UPDATE sprint_info SET jh=$2 WHERE id=$1`, sprintID, jh)
    return err
}

// ---- team ----

func (r *Repository) ListDevelopers(ctx context.Context) ([]domain.Developer, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, name, start_date, end_date FROM developper ORDER BY name`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Developer
    for rows.Next() {
        var d domain.Developer
        if err := rows.Scan(&d.ID, &d.Name, &d.StartDate, &d.EndDate); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (r *Repository) ListHolidays(ctx context.Context, from, to time.Time) ([]domain.Holiday, error) {
    rows, err := r.db.Pool.Query(ctx,
        `SELECT date, COALESCE(name,'') FROM jours_feries WHERE date BETWEEN $1 AND $2 ORDER BY date`, from, to)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Holiday
    for rows.Next() {
        var h domain.Holiday
        if err := rows.Scan(&h.Date, &h.Name); err != nil { return nil, err }
        out = append(out, h)
    }
    return out, rows.Err()
}

// ListAbsences returns every absence overlapping the given range.
func (r *Repository) ListAbsences(ctx context.Context, from, to time.Time) ([]domain.Absence, error) {
    const q = `SELECT developper_id, start_date, end_date, morning, afternoon
        FROM event WHERE start_date <= $2 AND end_date >= $1
        ORDER BY developper_id, start_date`
    rows, err := r.db.Pool.Query(ctx, q, from, to)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Absence
    for rows.Next() {
        var a domain.Absence
        if err := rows.Scan(&a.DeveloperID, &a.Start, &a.End, &a.Morning, &a.Afternoon); err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

func (r *Repository) UpsertAbsence(ctx context.Context, a domain.Absence) error {
    const q = `INSERT INTO event(developper_id, start_date, end_date, morning, afternoon)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT(developper_id, start_date, end_date) DO UPDATE SET
            morning=EXCLUDED.morning, afternoon=EXCLUDED.afternoon`
    _, err := r.db.Pool.Exec(ctx, q, a.DeveloperID, a.Start, a.End, a.Morning, a.Afternoon)
    return err
}

func (r *Repository) DeleteAbsence(ctx context.Context, developerID int64, start, end time.Time) error {
    _, err := r.db.Pool.Exec(ctx,
        `DELETE FROM event WHERE developper_id=$1 AND start_date=$2 AND end_date=$3`, developerID, start, end)
    return err
}

// ---- per-sprint availability overrides ----

// AvailabilityFactors returns the per-developer availability override
// of one sprint, keyed by developer id.
func (r *Repository) AvailabilityFactors(ctx context.Context, sprintID int64) (map[int64]float64, error) {
    rows, err := r.db.Pool.Query(ctx,
        `SELECT developper_id, factor FROM sprint_developper_availability WHERE sprint_id=$1`, sprintID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[int64]float64{}
    for rows.Next() {
        var id int64
        var f float64
        if err := rows.Scan(&id, &f); err != nil { return nil, err }
        out[id] = f
    }
    return out, rows.Err()
}

func (r *Repository) UpsertAvailability(ctx context.Context, sprintID, developerID int64, factor float64) error {
    const q = `INSERT INTO sprint_developper_availability(sprint_id, developper_id, factor)
        VALUES($1,$2,$3)
        ON CONFLICT(sprint_id, developper_id) DO UPDATE SET factor=EXCLUDED.factor`
    _, err := r.db.Pool.Exec(ctx, q, sprintID, developerID, factor)
    return err
}
