package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/silenteh/GeoSpatialIndex/api"
	pb "github.com/silenteh/GeoSpatialIndex/proto"
	"github.com/silenteh/GeoSpatialIndex/runner"

	log "github.com/sirupsen/logrus"
)

// Standalone server: the HTTP API with an in-process index runner.
func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	dataDir := flag.String("data-dir", "data/indexes", "Directory holding index record files")
	numPoints := flag.Int("points", 0, "Generate an index with this many records on startup")
	region := flag.String("region", "us", "Region for generated records (us, prague)")
	maxEntries := flag.Int("max-entries", 50, "Node capacity for new indexes")
	maxIndexes := flag.Int("max-indexes", 10, "Maximum number of indexes to keep in memory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)

	indexRunner, err := runner.NewIndexRunner(runner.Options{
		DataDir:    *dataDir,
		MaxIndexes: *maxIndexes,
		MaxEntries: *maxEntries,
	})
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}
	defer indexRunner.Close()

	client := runner.NewLocalClient(indexRunner)
	server := api.NewServer(client, log.StandardLogger())

	if *numPoints > 0 {
		start := time.Now()
		resp, err := client.CreateIndex(context.Background(), &pb.CreateIndexRequest{
			NumRecords: int32(*numPoints),
			MaxEntries: int32(*maxEntries),
			Region:     *region,
		})
		if err != nil {
			log.Fatalf("Failed to create initial index: %v", err)
		}
		log.WithFields(log.Fields{
			"id":       resp.Index.Id,
			"records":  resp.Index.NumRecords,
			"height":   resp.Index.Height,
			"duration": time.Since(start),
		}).Info("Initial index created")
	}
	server.UseLatestIndex(context.Background())

	srv := &http.Server{
		Addr:    *addr,
		Handler: server.Router(),
	}

	// Create a channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.WithField("addr", *addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Server stopped")
}
