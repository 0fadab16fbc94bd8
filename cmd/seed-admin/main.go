package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/playshuffle/backend/internal/admin"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
		log.Printf("Using default admin username: %s", username)
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "change-me-in-production"
		log.Printf("WARNING: Using default admin token. Set ADMIN_TOKEN env var in production!")
	}

	displayName := os.Getenv("ADMIN_DISPLAY_NAME")
	if displayName == "" {
		displayName = "Admin"
	}

	roles := []string{admin.RoleViewer, admin.RoleOperator}
	if r := os.Getenv("ADMIN_ROLES"); r != "" {
		roles = strings.Split(r, ",")
	}

	if err := admin.CreateAdminAccount(db, username, displayName, adminToken, roles); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("Admin account created/updated successfully")
	log.Printf("  Username: %s", username)
	log.Printf("  Display Name: %s", displayName)
	log.Printf("  Roles: %v", roles)
	log.Println("\nLog in at POST /api/v1/admin/login with the username and token.")
}
