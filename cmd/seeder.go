package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"audit_logs", "asset_assignments", "assets", "asset_counters", "users"} {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		users := []struct {
			Email      string
			Name       string
			Role       string
			Department string
		}{
			{"root@assetops.local", "Root", "super_admin", "it"},
			{"admin@assetops.local", "Asset Admin", "admin", "it"},
			{"manager@assetops.local", "IT Manager", "manager", "it"},
			{"finance.manager@assetops.local", "Finance Manager", "manager", "finance"},
			{"dev@assetops.local", "Developer", "user", "engineering"},
			{"viewer@assetops.local", "Auditor", "viewer", "finance"},
		}

		for _, u := range users {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM users WHERE email = $1", u.Email).Scan(&exists); err == nil {
				fmt.Println("user already exists:", u.Email)
				continue
			}
			_, err := db.Exec(
				"INSERT INTO users (email, name, password_hash, role, department, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, true, now(), now())",
				u.Email, u.Name, string(hash), u.Role, u.Department)
			if err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email)
		}

		assets := []struct {
			Tag      string
			Name     string
			Category string
		}{
			{"IT-LAP-0001", "ThinkPad T14", "laptop"},
			{"IT-LAP-0002", "MacBook Pro 14", "laptop"},
			{"IT-MON-0001", "Dell U2723QE", "monitor"},
			{"IT-PHN-0001", "Pixel 8", "phone"},
		}

		for _, a := range assets {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM assets WHERE asset_tag = $1", a.Tag).Scan(&exists); err == nil {
				fmt.Println("asset already exists:", a.Tag)
				continue
			}
			_, err := db.Exec(
				"INSERT INTO assets (asset_tag, name, category, status, created_at, updated_at) VALUES ($1, $2, $3, 'available', now(), now())",
				a.Tag, a.Name, a.Category)
			if err != nil {
				log.Fatalf("failed to insert asset %s: %v", a.Tag, err)
			}
			fmt.Println("Seeded asset:", a.Tag)
		}

		// Counters must start past the seeded tags so allocation never
		// collides with them.
		counters := map[string]int64{"laptop": 3, "monitor": 2, "phone": 2}
		for category, next := range counters {
			_, err := db.Exec(
				"INSERT INTO asset_counters (category, next_number) VALUES ($1, $2) ON CONFLICT (category) DO NOTHING",
				category, next)
			if err != nil {
				log.Fatalf("failed to seed counter %s: %v", category, err)
			}
		}

		fmt.Println("Seeding complete")
	},
}
