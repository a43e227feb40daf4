// Command migrate applies the order store schema to DATABASE_URL.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/grosir-api/internal/order"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := order.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	log.Println("Migrations applied")
}
