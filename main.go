package main

import (
	"log"
	"os"

	"shipcompliance-backend/service"

	"github.com/gin-gonic/gin"
)

// Minimal bootstrap kept for quick smoke runs; the full server with every
// endpoint wired lives in cmd/server.
func main() {
	keyring, err := service.NewKeyringFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize API keyring:", err)
	}
	log.Printf("Keyring initialized with %d credential(s)", keyring.Size())

	// Setup Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
