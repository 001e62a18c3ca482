package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/database"
	"github.com/fluentz/placement-backend/internal/logger"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/repository"
	"github.com/fluentz/placement-backend/internal/service"
	"golang.org/x/term"
)

// create-learner registers a verified learner and prints an access token for
// exercising the assessment API locally.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	learnerRepo := repository.NewLearnerRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Learner ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// The token must verify against the server's secret; ask for it rather
	// than silently signing with the development default.
	if os.Getenv("JWT_SECRET") == "" {
		fmt.Print("Enter JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Println("Error reading secret")
			return
		}
		if len(secret) > 0 {
			cfg.JWTSecret = string(secret)
		}
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	learner := &model.Learner{
		FullName:         name,
		Email:            email,
		OnboardingStatus: model.OnboardingVerified,
	}
	if err := learnerRepo.Create(ctx, learner); err != nil {
		log.Fatal().Err(err).Msg("Failed to create learner")
	}

	tok, err := service.NewAuthService(cfg).GenerateToken(learner.ID, service.RoleLearner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Printf("\nSuccess! Learner '%s' (%s) created with ID: %d\n", learner.FullName, learner.Email, learner.ID)
	fmt.Printf("Access token (valid %s):\n%s\n", cfg.JWTExpiry, tok)
}
