package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/config"
	"github.com/noah-isme/campus-hostel-api/pkg/database"
	"github.com/noah-isme/campus-hostel-api/pkg/logger"
)

// operator creates a back-office account, typically the first admin.
// The password is read from OPERATOR_PASSWORD so it stays out of shell history.
func main() {
	email := flag.String("email", "", "operator email")
	name := flag.String("name", "", "full name")
	role := flag.String("role", string(models.RoleAdmin), "ADMIN or STAFF")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database, logger.Named(logr, "postgres"))
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	svc := service.NewUserService(repository.NewUserRepository(db), nil, logr, cfg.Timeouts.Store)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := svc.Create(ctx, service.CreateUserRequest{
		Email:    *email,
		FullName: *name,
		Role:     models.UserRole(strings.ToUpper(*role)),
		Password: os.Getenv("OPERATOR_PASSWORD"),
	})
	if err != nil {
		logr.Fatal("create operator failed", zap.Error(err))
	}
	fmt.Printf("created %s operator %s (%s)\n", user.Role, user.Email, user.ID)
}
