// token-gen mints a signed access token for a user id. Development
// tool for exercising the WebSocket endpoint; -register also creates
// the user row so the token works against a fresh database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/kickin-server/internal/auth"
	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/postgres"
)

func main() {
	userID := flag.String("user", "", "User id to put in the token subject")
	key := flag.String("key", os.Getenv("JWT_KEY"), "HMAC signing key (defaults to JWT_KEY)")
	lifetime := flag.Duration("lifetime", 24*time.Hour, "Token lifetime")
	register := flag.Bool("register", false, "Create the user row before minting")
	configPath := flag.String("config", "config.yaml", "Configuration file, used with -register")
	name := flag.String("name", "", "Display name when registering (defaults to the user id)")
	matches := flag.Int64("matches", 10, "Starting match quota when registering")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	if *register {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if *key == "" {
			*key = cfg.Auth.JWTKey
		}
		registerUser(cfg, *userID, *name, *matches)
	}

	if *key == "" {
		log.Fatal("signing key required: set -key or JWT_KEY")
	}

	verifier, err := auth.NewJWTVerifier(*key)
	if err != nil {
		log.Fatalf("Failed to initialize signer: %v", err)
	}

	token, err := verifier.Sign(*userID, *lifetime)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}

// registerUser inserts a playable user row with the default skill
// pools.
func registerUser(cfg *config.Config, userID, name string, matches int64) {
	if name == "" {
		name = userID
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer store.Close()

	var kicker, goalkeeper []string
	for _, s := range postgres.DefaultSkills() {
		if s.Kind == domain.SkillKindKicker {
			kicker = append(kicker, s.Name)
		} else {
			goalkeeper = append(goalkeeper, s.Name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = store.CreateUser(ctx, &domain.User{
		ID:               userID,
		Name:             name,
		Kind:             domain.UserKindRegistered,
		Role:             domain.RoleBoth,
		KickerSkills:     kicker,
		GoalkeeperSkills: goalkeeper,
		RemainingMatches: matches,
		Level:            1,
		Verified:         true,
		Active:           true,
		WeekHistory:      []domain.WeekStat{},
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	log.Printf("Created user %s with %d matches", userID, matches)
}
