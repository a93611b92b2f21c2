package main

import (
	"bufio"
	"flag"
	"os"

	"github.com/silenteh/GeoSpatialIndex/cli"
	"github.com/silenteh/GeoSpatialIndex/dataset"
	"github.com/silenteh/GeoSpatialIndex/rtree"

	log "github.com/sirupsen/logrus"
)

var (
	maxEntries = flag.Int("max-entries", rtree.DefaultMaxEntries, "Node capacity of the tree")
	workers    = flag.Int("workers", 0, "Search workers (0 means one per CPU plus one)")
	logLevel   = flag.String("log-level", "warn", "Log level (debug shows splits and root growth)")
)

func main() {
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)

	tree := rtree.NewWithOptions[dataset.Record](rtree.Options{
		MaxEntries: *maxEntries,
		Workers:    *workers,
		Logger:     log.StandardLogger(),
	})
	defer tree.Close()

	scanner := bufio.NewScanner(os.Stdin)
	cli.NewCli(scanner, os.Stdout, tree).Start()
}
