package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	"github.com/silenteh/GeoSpatialIndex/rtree"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to file")
	heapprofile = flag.String("heapprofile", "", "write heap profile to file")
	numPoints   = flag.Int("points", 100000, "number of points to generate")
	maxEntries  = flag.Int("max-entries", rtree.DefaultMaxEntries, "node capacity to profile")
	queries     = flag.Int("queries", 10000, "number of searches to run")
	testall     = flag.Bool("testall", false, "test all configurations")
)

type result struct {
	height     int
	insert     time.Duration
	search     time.Duration
	found      int
	allocMB    float64
	gcRuns     uint32
	checkError error
}

func profile(records []dataset.Record, capacity, numQueries int) result {
	var memStatsBefore, memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	tree := rtree.New[dataset.Record](capacity)
	defer tree.Close()

	start := time.Now()
	for _, rec := range records {
		tree.Insert(rec, rec.X, rec.Y)
	}
	insertTime := time.Since(start)

	// Query existing coordinates so every search has a hit
	ctx := context.Background()
	found := 0
	start = time.Now()
	for i := 0; i < numQueries; i++ {
		rec := records[i%len(records)]
		hits, err := tree.Search(ctx, rec.X, rec.Y)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			break
		}
		found += len(hits)
	}
	searchTime := time.Since(start)

	runtime.ReadMemStats(&memStatsAfter)

	return result{
		height:     tree.Height(),
		insert:     insertTime,
		search:     searchTime,
		found:      found,
		allocMB:    float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024,
		gcRuns:     memStatsAfter.NumGC - memStatsBefore.NumGC,
		checkError: tree.Check(),
	}
}

func runSingleProfile(numPoints, capacity, numQueries int) {
	fmt.Printf("Profiling with %d points, node capacity %d\n", numPoints, capacity)

	// Generate random points in the US region
	records := dataset.Generate(numPoints, dataset.USBounds, 42)

	r := profile(records, capacity, numQueries)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fmt.Printf("Tree height: %d\n", r.height)
	fmt.Printf("Inserts completed in %v (%v per insert)\n", r.insert, r.insert/time.Duration(numPoints))
	if numQueries > 0 {
		fmt.Printf("%d searches completed in %v (%v per search, %d hits)\n",
			numQueries, r.search, r.search/time.Duration(numQueries), r.found)
	}
	fmt.Printf("Memory allocated: %.2f MB\n", r.allocMB)
	fmt.Printf("Memory usage: %.2f MB\n", float64(memStats.Alloc)/1024/1024)
	if r.checkError != nil {
		fmt.Printf("Structure check failed: %v\n", r.checkError)
	}
}

func runProfileBattery(numQueries int) {
	pointCounts := []int{1000, 10000, 50000, 100000}
	capacities := []int{8, 16, 50, 100, 200}

	fmt.Println("Running comprehensive profile battery...")
	fmt.Println("=======================================")

	// Table header
	fmt.Printf("%-10s | %-8s | %-6s | %-15s | %-15s | %-11s | %-8s\n",
		"Points", "Capacity", "Height", "Insert", "Search", "Memory (MB)", "GC Runs")
	fmt.Printf("%s\n", "-----------------------------------------------------------------------------------------")

	for _, points := range pointCounts {
		records := dataset.Generate(points, dataset.USBounds, 42)
		for _, capacity := range capacities {
			r := profile(records, capacity, numQueries)
			fmt.Printf("%-10d | %-8d | %-6d | %-15s | %-15s | %-11.2f | %-8d\n",
				points, capacity, r.height, r.insert, r.search, r.allocMB, r.gcRuns)
			if r.checkError != nil {
				fmt.Printf("  structure check failed: %v\n", r.checkError)
			}
		}

		// Add separator between point counts
		fmt.Printf("%s\n", "-----------------------------------------------------------------------------------------")
	}
}

func main() {
	flag.Parse()

	if *numPoints <= 0 {
		fmt.Fprintln(os.Stderr, "points must be positive")
		os.Exit(1)
	}

	// Set up CPU profiling if requested
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		fmt.Println("Starting CPU profiling...")
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	if *testall {
		runProfileBattery(*queries)
	} else {
		runSingleProfile(*numPoints, *maxEntries, *queries)
	}

	// Write memory profile if requested
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}

	// Write heap profile if requested
	if *heapprofile != "" {
		f, err := os.Create(*heapprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create heap profile: %v\n", err)
			return
		}
		defer f.Close()

		if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write heap profile: %v\n", err)
		}
	}
}
