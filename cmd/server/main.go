package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/facturaPE/invoice-intake-service/api"
	"github.com/facturaPE/invoice-intake-service/internal/auth"
	"github.com/facturaPE/invoice-intake-service/internal/db"
	"github.com/facturaPE/invoice-intake-service/internal/models"
	"github.com/facturaPE/invoice-intake-service/internal/storage"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in stateless intake mode (no review queue)")
	} else {
		defer db.Close()
		log.Println("Database connection pool initialized")
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Source documents will not be archived")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create API handler
	handler := api.NewHandler(config)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Invoice Intake Service v%s on %s", api.Version, addr)
	log.Printf("Detracción PEN threshold: %s", umbralOrDefault(config))
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login                 - Authenticate", addr)
	log.Printf("  POST http://%s/api/recepcion             - Process XML + PDFs (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/conciliaciones        - Review queue (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/conciliaciones/{id}   - Single record (requires JWT)", addr)
	log.Printf("  DELETE http://%s/api/conciliaciones/{id} - Delete record (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/stats                 - Monthly stats (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                    - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if umbral := os.Getenv("DETRACCION_UMBRAL_PEN"); umbral != "" {
		config.Detraccion.UmbralPEN = umbral
	}

	return &config, nil
}

func umbralOrDefault(config *models.Config) string {
	if config.Detraccion.UmbralPEN != "" {
		return config.Detraccion.UmbralPEN
	}
	return "700.00 (default)"
}
