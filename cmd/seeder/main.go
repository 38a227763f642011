package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/quocanhngo/reelsync/internal/catalog"
	"github.com/quocanhngo/reelsync/internal/config"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	applog "github.com/quocanhngo/reelsync/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg := config.Load()
	log := applog.New(cfg.App.Env, cfg.App.LogLevel)

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	log.Info().Msg("✅ Connected to Database")

	ctx := context.Background()
	seedUsers(ctx, repository.NewUserRepository(db), log)
	seedTitles(ctx, repository.NewTitleRepository(db), log)

	log.Info().Msg("🎉 Seeding completed!")
}

func seedUsers(ctx context.Context, users *repository.UserRepository, log zerolog.Logger) {
	// Common password for all users
	password := "password123"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to hash password")
	}

	log.Info().Msg("🌱 Seeding 5 users...")
	for i := 1; i <= 5; i++ {
		email := fmt.Sprintf("viewer%d@reelsync.local", i)
		user := &model.User{
			Name:     fmt.Sprintf("Viewer %d", i),
			Email:    email,
			Password: string(hashedPassword),
		}

		err := users.Create(ctx, user)
		switch {
		case err == nil:
			log.Info().Str("email", email).Str("password", password).Msg("✅ Created user")
		case errors.Is(err, repository.ErrDuplicate):
			log.Info().Str("email", email).Msg("⏭️  User exists")
		default:
			log.Error().Err(err).Str("email", email).Msg("❌ Failed to create user")
		}
	}
}

func seedTitles(ctx context.Context, titles *repository.TitleRepository, log zerolog.Logger) {
	log.Info().Int("count", len(catalog.DemoTitles)).Msg("🌱 Seeding titles...")
	for i := range catalog.DemoTitles {
		title := catalog.DemoTitles[i]
		if err := titles.Save(ctx, &title); err != nil {
			log.Error().Err(err).Uint("title_id", title.ID).Msg("❌ Failed to save title")
			continue
		}
		log.Info().Uint("title_id", title.ID).Str("name", title.Name).Int("duration_seconds", title.DurationSeconds).Msg("🎬 Title saved")
	}
}
