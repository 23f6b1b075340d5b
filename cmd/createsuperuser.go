package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fajarnugraha/identity-service/internal/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	superuserEmail    string
	superuserPassword string
	superuserUsername string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a superuser account",
	Long:  `Create an active, verified superuser account that bypasses permission checks.`,
	Run: func(cmd *cobra.Command, args []string) {
		if superuserEmail == "" || superuserPassword == "" {
			fmt.Fprintln(os.Stderr, "both --email and --password are required")
			os.Exit(1)
		}

		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		_, db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		var exists int
		if err := db.Raw("SELECT 1 FROM users WHERE email = ?", superuserEmail).Row().Scan(&exists); err == nil {
			log.Fatalf("a user with email %s already exists", superuserEmail)
		}

		hash, err := auth.HashPassword(superuserPassword, cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		id := uuid.New().String()

		var username interface{}
		if superuserUsername != "" {
			if err := db.Raw("SELECT 1 FROM users WHERE username = ?", superuserUsername).Row().Scan(&exists); err == nil {
				log.Fatalf("a user with username %s already exists", superuserUsername)
			}
			username = superuserUsername
		}

		if err := db.Exec(
			"INSERT INTO users (id, email, username, hashed_password, is_active, is_verified, is_superuser, created_at, updated_at) VALUES (?, ?, ?, ?, true, true, true, now(), now())",
			id, superuserEmail, username, hash,
		).Error; err != nil {
			log.Fatalf("failed to insert superuser: %v", err)
		}

		fmt.Println("Created superuser:", superuserEmail)
		fmt.Println("User ID:", id)
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "Email address for the superuser (required)")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "Password for the superuser (required)")
	createSuperuserCmd.Flags().StringVar(&superuserUsername, "username", "", "Optional username for the superuser")
}
