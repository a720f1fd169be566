package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	approuters "github.com/Stevy64/Kongossa/internal/app_routers"
	"github.com/Stevy64/Kongossa/internal/configuration"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	configPath := os.Getenv("KONGOSSA_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}

	container, err := configuration.BuildContainer(configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
