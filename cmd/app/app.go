// Package app provisions a jurypad data directory: it opens the store,
// makes sure the seed admin account exists and optionally creates demo
// evaluations. Serving the API over HTTP (routing, sessions, role checks)
// is a separate deployment concern that consumes the service layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mhartmann/jurypad/internal/config"
	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/logger"
	"github.com/mhartmann/jurypad/internal/repository"
	"github.com/mhartmann/jurypad/internal/service"
	"github.com/mhartmann/jurypad/internal/store"
)

const bcryptCost = 12

func Start() error {
	configPath := os.Getenv("JURYPAD_CONFIG")
	if configPath == "" {
		configPath = "./cmd/app/config.yml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.App.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}

	st, err := store.Open(conf.Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store -> %w", err)
	}

	users, err := repository.NewUserRepository(st)
	if err != nil {
		return fmt.Errorf("failed to initialize user repository -> %w", err)
	}
	evals, err := repository.NewEvaluationRepository(st)
	if err != nil {
		return fmt.Errorf("failed to initialize evaluation repository -> %w", err)
	}
	subs, err := repository.NewSubmissionRepository(st)
	if err != nil {
		return fmt.Errorf("failed to initialize submission repository -> %w", err)
	}

	ctx := context.Background()
	userSvc := service.NewUserService(users)
	evalSvc := service.NewEvaluationService(evals, users, subs)

	zap.L().Info("store opened", zap.String("data_dir", st.Dir()))

	admin, err := seedAdmin(ctx, users, userSvc, conf.Seed)
	if err != nil {
		return fmt.Errorf("failed to seed admin -> %w", err)
	}

	if conf.Seed.Demo {
		if err := seedDemo(ctx, users, evals, userSvc, evalSvc); err != nil {
			return fmt.Errorf("failed to seed demo data -> %w", err)
		}
	}

	zap.L().Info("provisioning complete",
		zap.String("admin_username", admin.Username),
		zap.String("admin_id", admin.ID),
	)

	return nil
}

// seedAdmin makes sure the configured admin account exists. An existing
// username is left untouched so re-running provisioning is safe.
func seedAdmin(ctx context.Context, users *repository.UserRepository, svc *service.UserService, seed config.SeedConfig) (domain.User, error) {
	existing, err := users.FindByUsername(ctx, seed.AdminUsername)
	if err == nil {
		zap.L().Info("admin user already exists, skipping", zap.String("username", existing.Username))
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return domain.User{}, err
	}

	password := seed.AdminPassword
	if password == "" {
		return domain.User{}, errors.New("seed.admin_password is required on first run")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	created, err := svc.CreateUser(ctx, service.CreateUserInput{
		Username:     seed.AdminUsername,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Name:         seed.AdminName,
	})
	if err != nil {
		return domain.User{}, err
	}

	zap.L().Info("created admin user", zap.String("username", created.Username))
	zap.L().Warn("change the seed admin password after first login")

	return created, nil
}

// seedDemo creates three jury accounts and two candidate-mode evaluations —
// one currently open with audience voting, one upcoming. Skipped entirely
// when any evaluation already exists.
func seedDemo(ctx context.Context, users *repository.UserRepository, evals *repository.EvaluationRepository, userSvc *service.UserService, evalSvc *service.EvaluationService) error {
	existing, err := evals.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		zap.L().Info("evaluations already present, skipping demo seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("jury123"), bcryptCost)
	if err != nil {
		return err
	}

	var juryIDs []string
	for _, j := range []struct{ username, name string }{
		{"jury1", "Maria Huber"},
		{"jury2", "Thomas Müller"},
		{"jury3", "Sophie Wagner"},
	} {
		user, err := userSvc.CreateUser(ctx, service.CreateUserInput{
			Username:     j.username,
			PasswordHash: string(hash),
			Role:         domain.RoleJury,
			Name:         j.name,
		})
		if err != nil {
			if errors.Is(err, service.ErrUsernameTaken) {
				existing, ferr := users.FindByUsername(ctx, j.username)
				if ferr != nil {
					return ferr
				}
				juryIDs = append(juryIDs, existing.ID)
				continue
			}
			return err
		}
		juryIDs = append(juryIDs, user.ID)
	}

	now := time.Now()

	open, err := evalSvc.CreateEvaluation(ctx, service.CreateEvaluationInput{
		Title:       "Kunstpreis 2026 – Finale",
		Description: "Finalrunde mit drei Kandidaten. Bitte alle Kategorien vollständig ausfüllen.",
		Candidates: []service.CandidateInput{
			{Name: "Anna Schmidt", Description: "Violine, klassisches Repertoire"},
			{Name: "Ben Fischer", Description: "Klavier, zeitgenössische Komposition"},
			{Name: "Clara Hoffmann", Description: "Gesang, Crossover Pop/Klassik"},
		},
		Categories: []service.CategoryInput{
			{Name: "Technik", Description: "Technische Ausführung und Präzision", MaxScore: 10},
			{Name: "Ausdruck", Description: "Musikalischer Ausdruck und Interpretation", MaxScore: 10},
			{Name: "Bühnenpräsenz", Description: "Auftreten und Ausstrahlung auf der Bühne", MaxScore: 5},
			{Name: "Originalität", Description: "Kreativität und eigene Note", MaxScore: 5},
		},
		SubmissionOpenAt:  now.Add(-1 * time.Hour),
		SubmissionCloseAt: now.Add(6 * time.Hour),
		ResultsPublishAt:  now.Add(7 * time.Hour),
		AudienceEnabled:   true,
		AudienceMaxScore:  10,
	})
	if err != nil {
		return err
	}
	if _, err := evalSvc.AssignJury(ctx, open.ID, juryIDs); err != nil {
		return err
	}

	upcoming, err := evalSvc.CreateEvaluation(ctx, service.CreateEvaluationInput{
		Title:       "Nachwuchswettbewerb 2026",
		Description: "Vorrunde, Bewertung startet morgen.",
		Candidates: []service.CandidateInput{
			{Name: "David Keller", Description: "Gitarre"},
			{Name: "Emma Brandt", Description: "Querflöte"},
		},
		Categories: []service.CategoryInput{
			{Name: "Technik", Description: "Technische Ausführung", MaxScore: 10},
			{Name: "Gesamteindruck", Description: "Gesamtwirkung des Vortrags", MaxScore: 10},
		},
		SubmissionOpenAt:  now.Add(24 * time.Hour),
		SubmissionCloseAt: now.Add(72 * time.Hour),
		ResultsPublishAt:  now.Add(80 * time.Hour),
	})
	if err != nil {
		return err
	}
	if _, err := evalSvc.AssignJury(ctx, upcoming.ID, juryIDs); err != nil {
		return err
	}

	zap.L().Info("demo data created",
		zap.String("open_evaluation", open.ID),
		zap.String("upcoming_evaluation", upcoming.ID),
	)

	return nil
}
