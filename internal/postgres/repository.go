package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			kind VARCHAR(20) NOT NULL DEFAULT 'registered',
			avatar TEXT NOT NULL DEFAULT '',
			role VARCHAR(20) NOT NULL DEFAULT 'both',
			kicker_skills TEXT[] NOT NULL DEFAULT '{}',
			goalkeeper_skills TEXT[] NOT NULL DEFAULT '{}',
			total_kicked BIGINT NOT NULL DEFAULT 0,
			kicked_win BIGINT NOT NULL DEFAULT 0,
			total_keep BIGINT NOT NULL DEFAULT 0,
			keep_win BIGINT NOT NULL DEFAULT 0,
			total_point BIGINT NOT NULL DEFAULT 0 CHECK (total_point >= 0),
			available_skill_points BIGINT NOT NULL DEFAULT 0 CHECK (available_skill_points >= 0),
			remaining_matches BIGINT NOT NULL DEFAULT 0 CHECK (remaining_matches >= 0),
			level INT NOT NULL DEFAULT 1,
			legend_level INT NOT NULL DEFAULT 0,
			vip_amount BIGINT NOT NULL DEFAULT 0,
			is_pro BOOLEAN NOT NULL DEFAULT FALSE,
			is_vip BOOLEAN NOT NULL DEFAULT FALSE,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			week_history JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (kicked_win <= total_kicked),
			CHECK (keep_win <= total_keep)
		)`,
		`CREATE TABLE IF NOT EXISTS skills (
			name VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			point_cost BIGINT NOT NULL DEFAULT 0,
			counter VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id VARCHAR(64) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			kicker_id VARCHAR(64) NOT NULL,
			goalkeeper_id VARCHAR(64) NOT NULL,
			kicker_skill VARCHAR(64) NOT NULL,
			goalkeeper_skill VARCHAR(64) NOT NULL,
			winner_id VARCHAR(64) NOT NULL,
			loser_id VARCHAR(64) NOT NULL,
			winner_role VARCHAR(20) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS challenges_audit (
			id VARCHAR(64) PRIMARY KEY,
			from_id VARCHAR(64) NOT NULL,
			to_id VARCHAR(64) NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_created ON matches(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_kicker ON matches(kicker_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_goalkeeper ON matches(goalkeeper_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_users_total_point ON users(total_point DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_audit_created ON challenges_audit(created_at)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

const userColumns = `id, name, kind, avatar, role, kicker_skills, goalkeeper_skills,
	total_kicked, kicked_win, total_keep, keep_win, total_point,
	available_skill_points, remaining_matches, level, legend_level, vip_amount,
	is_pro, is_vip, verified, active, week_history, created_at, updated_at, last_active_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Kind, &u.Avatar, &u.Role,
		&u.KickerSkills, &u.GoalkeeperSkills,
		&u.TotalKicked, &u.KickedWin, &u.TotalKeep, &u.KeepWin, &u.TotalPoint,
		&u.AvailableSkillPoints, &u.RemainingMatches, &u.Level, &u.LegendLevel,
		&u.VIPAmount, &u.IsPro, &u.IsVIP, &u.Verified, &u.Active,
		&u.WeekHistory, &u.CreatedAt, &u.UpdatedAt, &u.LastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves one user by id
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, userID))
}

// GetUsersByIDs retrieves many users at once, keyed by id
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	if len(ids) == 0 {
		return map[string]*domain.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*domain.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

// CreateUser inserts a new user row
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, name, kind, avatar, role, kicker_skills, goalkeeper_skills,
			total_point, available_skill_points, remaining_matches, level, vip_amount,
			is_vip, verified, active, week_history, created_at, updated_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17, $17)
	`
	now := time.Now()
	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, u.Kind, u.Avatar, u.Role,
		u.KickerSkills, u.GoalkeeperSkills,
		u.TotalPoint, u.AvailableSkillPoints, u.RemainingMatches,
		u.Level, u.VIPAmount, u.IsVIP, u.Verified, u.Active, u.WeekHistory,
		now,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// TouchLastActive records lobby activity for a user
func (r *Repository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_active_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("touching last active: %w", err)
	}
	return nil
}

// ApplyMatchOutcome issues the single-row conditional update for one
// participant of a settled match. The quota guard makes the update a
// no-op when the user has no remaining matches; that surfaces as
// ErrNoQuota so the caller can reconcile.
func (r *Repository) ApplyMatchOutcome(ctx context.Context, userID string, role domain.MatchRole, won bool, at time.Time) (*domain.User, error) {
	attemptCol := "total_kicked"
	winCol := "kicked_win"
	if role == domain.MatchRoleGoalkeeper {
		attemptCol = "total_keep"
		winCol = "keep_win"
	}

	var query string
	if won {
		query = fmt.Sprintf(`
			UPDATE users SET
				%s = %s + 1,
				%s = %s + 1,
				total_point = total_point + 1,
				available_skill_points = available_skill_points + 1,
				remaining_matches = remaining_matches - 1,
				updated_at = $2,
				last_active_at = $2
			WHERE id = $1 AND remaining_matches > 0
			RETURNING `+userColumns,
			winCol, winCol, attemptCol, attemptCol)
	} else {
		query = fmt.Sprintf(`
			UPDATE users SET
				%s = %s + 1,
				remaining_matches = remaining_matches - 1,
				updated_at = $2,
				last_active_at = $2
			WHERE id = $1 AND remaining_matches > 0
			RETURNING `+userColumns,
			attemptCol, attemptCol)
	}

	u, err := scanUser(r.pool.QueryRow(ctx, query, userID, at))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Row exists but the quota guard refused it, or the user is
			// gone; distinguish for the reconciliation log.
			if _, getErr := r.GetUser(ctx, userID); getErr == nil {
				return nil, domain.ErrNoQuota
			}
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// SetUserLevel persists a recomputed level for a user
func (r *Repository) SetUserLevel(ctx context.Context, userID string, level, legend int, isPro bool) error {
	query := `UPDATE users SET level = $2, legend_level = $3, is_pro = $4, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, userID, level, legend, isPro)
	if err != nil {
		return fmt.Errorf("setting user level: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListSkills retrieves the full skill catalog
func (r *Repository) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	query := `SELECT name, kind, point_cost, COALESCE(counter, ''), created_at FROM skills ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing skills: %w", err)
	}
	defer rows.Close()

	var skills []domain.Skill
	for rows.Next() {
		var s domain.Skill
		if err := rows.Scan(&s.Name, &s.Kind, &s.PointCost, &s.Counter, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// SeedSkills inserts the default skill catalog, skipping rows that exist
func (r *Repository) SeedSkills(ctx context.Context, skills []domain.Skill) error {
	if len(skills) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO skills (name, kind, point_cost, counter, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (name) DO NOTHING
	`
	now := time.Now()
	for _, s := range skills {
		batch.Queue(query, s.Name, s.Kind, s.PointCost, s.Counter, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range skills {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("seeding skills: %w", err)
		}
	}
	return nil
}

// InsertMatch appends a match record. The record is the settlement
// idempotence key: a second insert with the same match id returns
// ErrDuplicateMatch and must not be settled again.
func (r *Repository) InsertMatch(ctx context.Context, m *domain.MatchRecord) error {
	query := `
		INSERT INTO matches (match_id, created_at, kicker_id, goalkeeper_id,
			kicker_skill, goalkeeper_skill, winner_id, loser_id, winner_role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		m.MatchID, m.Timestamp, m.KickerID, m.GoalkeeperID,
		m.KickerSkill, m.GoalkeeperSkill, m.WinnerID, m.LoserID, m.WinnerRole,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrDuplicateMatch
	}
	return nil
}

// InsertChallengeAudit records a challenge outcome, best effort
func (r *Repository) InsertChallengeAudit(ctx context.Context, a *domain.ChallengeAudit) error {
	query := `
		INSERT INTO challenges_audit (id, from_id, to_id, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, a.ID, a.FromID, a.ToID, a.Outcome, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting challenge audit: %w", err)
	}
	return nil
}

// TopByPoints returns the n highest-point users for the leaderboard
func (r *Repository) TopByPoints(ctx context.Context, n int) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY total_point DESC, id LIMIT $1`
	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("getting top users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AllPoints returns every user's total_point, for the projection sync
func (r *Repository) AllPoints(ctx context.Context) (map[string]int64, error) {
	query := `SELECT id, total_point FROM users WHERE active`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting all points: %w", err)
	}
	defer rows.Close()

	points := make(map[string]int64)
	for rows.Next() {
		var id string
		var point int64
		if err := rows.Scan(&id, &point); err != nil {
			return nil, fmt.Errorf("scanning points: %w", err)
		}
		points[id] = point
	}
	return points, rows.Err()
}

// IsTransient reports whether a store error is worth a single retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; 40001/40P01: serialization
		// failure and deadlock, both safe to retry.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
