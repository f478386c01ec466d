package main

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"shorts-factory/pipeline"
)

// serve exposes the pipeline behind a small HTTP surface so a scheduler
// (Cloud Scheduler, cron-over-HTTP) can trigger batches remotely.
func serve(port string, orch *pipeline.Orchestrator) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	var running sync.Mutex

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/run", func(c *gin.Context) {
		if !running.TryLock() {
			c.JSON(http.StatusConflict, gin.H{"error": "a batch is already running"})
			return
		}
		go func() {
			defer running.Unlock()
			summary, err := orch.Run(context.Background())
			if err != nil {
				log.Printf("[server] batch aborted: %v", err)
				return
			}
			log.Printf("[server] batch complete: %d uploaded, %d failed", summary.Succeeded, summary.Failed)
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "batch started"})
	})

	log.Printf("[server] listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
