package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/config"
	pg "smartqr-backend/internal/infra/db/postgres"
	"smartqr-backend/internal/infra/api"
	"smartqr-backend/internal/infra/logging"
	red "smartqr-backend/internal/infra/redis"
	"smartqr-backend/internal/infra/security"
	"smartqr-backend/internal/usecase"
)

// Seeds a predictable local state: one user with a candidate profile and a
// private event, both protected by known access codes. Prints a bearer token
// for the user.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "truncate all tables and flush redis first")
	email := flag.String("email", "demo@smartqr.local", "email of the seeded user")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if *reset {
		logger.Info().Msg("[1/3] wiping database")
		if _, err := pool.Exec(ctx, `
			TRUNCATE users, candidates, portfolios, events, mission_proposals, payments, payment_sessions
			RESTART IDENTITY CASCADE;`); err != nil {
			logger.Fatal().Err(err).Msg("truncate")
		}
		if cfg.Redis.URL != "" {
			rc, err := red.NewClient(ctx, &cfg.Redis)
			if err != nil {
				logger.Fatal().Err(err).Msg("redis")
			}
			if err := rc.FlushDB(ctx); err != nil {
				logger.Fatal().Err(err).Msg("flush redis")
			}
			_ = rc.Close()
		}
	}

	logger.Info().Msg("[2/3] seeding profile and event")
	userID, err := seedProfile(ctx, pool, *email)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}

	logger.Info().Msg("[3/3] setting access codes")
	access := usecase.NewAccessUseCase(
		pg.NewEventRepo(pool),
		pg.NewCandidateRepo(pool),
		pg.NewAccessCodeRepo(pool),
		security.NewAccessCodeHasher(cfg.Security.AccessCodeCost),
		logger,
	)
	if _, err := access.RotateAccessCode(ctx, userID, "demo", string(usecase.ResourceCandidate), "DEMO01"); err != nil {
		logger.Fatal().Err(err).Msg("candidate access code")
	}
	if _, err := access.RotateAccessCode(ctx, userID, "launch_demo", string(usecase.ResourceEvent), "EVENT1"); err != nil {
		logger.Fatal().Err(err).Msg("event access code")
	}

	token, err := api.NewAuthManager(cfg.Security.JWTSecret, 7*24*time.Hour).Mint(userID, *email)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint token")
	}

	fmt.Printf("user:       %s (%s)\n", userID, *email)
	fmt.Println("candidate:  /candidate/access/demo          X-Api-Key: DEMO01")
	fmt.Println("event:      /event/access/launch/demo       X-Api-Key: EVENT1")
	fmt.Printf("bearer:     %s\n", token)
}

// seedProfile inserts the demo rows unless the user already exists and
// returns the user id.
func seedProfile(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err == nil {
		return userID, nil
	}

	userID = uuid.NewString()
	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (id, email, firstname, lastname) VALUES ($1, $2, 'Demo', 'User')`,
		userID, email); err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO candidates (id, user_id, slug, firstname, lastname, is_private)
		 VALUES ($1, $2, 'demo', 'Demo', 'User', TRUE)`,
		uuid.NewString(), userID); err != nil {
		return "", fmt.Errorf("insert candidate: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO events (id, user_id, category, slug, title, is_private)
		 VALUES ($1, $2, 'launch', 'demo', 'Launch party', TRUE)`,
		uuid.NewString(), userID); err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return userID, tx.Commit(ctx)
}
