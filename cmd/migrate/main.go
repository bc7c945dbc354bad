// Command migrate applies the database schema without starting the server.
package main

import (
	"fmt"
	"log"

	"warelic/internal/config"
	"warelic/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Connect runs AutoMigrate plus the partial unique indexes.
	if _, err := database.Connect(cfg); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	log.Println("schema applied")
	return nil
}
