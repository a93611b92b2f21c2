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
	"github.com/silenteh/GeoSpatialIndex/proto"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	runnerAddr := flag.String("runner", "localhost:50051", "Address of the index runner")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)
	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to index runner
	conn, err := grpc.NewClient(*runnerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect to index runner: %v", err)
	}
	defer conn.Close()

	server := api.NewServer(proto.NewIndexServiceClient(conn), log.StandardLogger())

	// Use the most recent index as default, if any
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	server.UseLatestIndex(ctx)
	cancel()

	srv := &http.Server{
		Addr:    *addr,
		Handler: server.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.WithField("addr", *addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
}
