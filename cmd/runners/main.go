package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/silenteh/GeoSpatialIndex/proto"
	"github.com/silenteh/GeoSpatialIndex/runner"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 50051, "The gRPC server port")
	dataDir := flag.String("data-dir", "data/indexes", "Directory holding index record files")
	maxIndexes := flag.Int("max-indexes", 5, "Maximum number of indexes to keep in memory")
	maxEntries := flag.Int("max-entries", 50, "Node capacity for new indexes")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)

	// Create listener
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	indexRunner, err := runner.NewIndexRunner(runner.Options{
		DataDir:    *dataDir,
		MaxIndexes: *maxIndexes,
		MaxEntries: *maxEntries,
	})
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}
	defer indexRunner.Close()

	// Create gRPC server
	s := grpc.NewServer()
	proto.RegisterIndexServiceServer(s, indexRunner)

	// Enable reflection for debugging
	reflection.Register(s)

	// Handle shutdown gracefully
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down gRPC server...")
		s.GracefulStop()
	}()

	// Start server
	log.WithFields(log.Fields{"port": *port, "dataDir": *dataDir}).Info("Starting gRPC server")
	if err := s.Serve(lis); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}
