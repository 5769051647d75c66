package main

import (
	"log"
	"os"

	"github.com/modelzoo/backend/internal/config"
	"github.com/modelzoo/backend/pkg/server"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	configPath := os.Getenv("MODELZOO_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	srv := server.New(cfg)

	log.Println("Starting ModelZoo backend...")
	if err := srv.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
