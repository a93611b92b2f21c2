package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	pb "github.com/silenteh/GeoSpatialIndex/proto"
	"github.com/silenteh/GeoSpatialIndex/rtree"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Options struct {
	// DataDir holds one record file per index.
	DataDir string
	// MaxIndexes bounds how many trees are kept in memory.
	MaxIndexes int
	// MaxEntries is the node capacity for indexes created without one.
	MaxEntries int
	// InactiveAfter evicts trees nobody touched for this long.
	InactiveAfter time.Duration
	// CleanupEvery is the eviction sweep interval.
	CleanupEvery time.Duration
	Logger       log.FieldLogger
}

func (o *Options) normalize() {
	if o.DataDir == "" {
		o.DataDir = "data/indexes"
	}
	if o.MaxIndexes <= 0 {
		o.MaxIndexes = 10
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = rtree.DefaultMaxEntries
	}
	if o.InactiveAfter <= 0 {
		o.InactiveAfter = 30 * time.Minute
	}
	if o.CleanupEvery <= 0 {
		o.CleanupEvery = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
}

// index is a loaded tree together with the records it was built from.
type index struct {
	id         string
	path       string
	created    time.Time
	maxEntries int
	tree       *rtree.Tree[dataset.Record]
	// written only while holding the index's file lock
	records []dataset.Record
}

type IndexRunner struct {
	pb.UnimplementedIndexServiceServer
	opts         Options
	indexes      map[string]*index
	indexLock    sync.RWMutex
	lastAccessed map[string]time.Time
	// fileLocks serialize reading and rewriting a record file. Entries
	// outlive eviction so a reload never races an insert's save.
	fileLocks    map[string]*sync.Mutex
	fileLocksMu  sync.Mutex
	now          func() time.Time
	save         func(filename string, records []dataset.Record) error
	log          log.FieldLogger
	quit         chan struct{}
	closeOnce    sync.Once
}

func NewIndexRunner(opts Options) (*IndexRunner, error) {
	opts.normalize()
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	runner := &IndexRunner{
		opts:         opts,
		indexes:      make(map[string]*index),
		lastAccessed: make(map[string]time.Time),
		fileLocks:    make(map[string]*sync.Mutex),
		now:          time.Now,
		save:         dataset.Save,
		log:          opts.Logger.WithField("component", "runner"),
		quit:         make(chan struct{}),
	}

	go runner.cleanupInactiveIndexes()

	return runner, nil
}

// Close stops the cleanup loop and releases every loaded tree.
func (r *IndexRunner) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
	})

	r.indexLock.Lock()
	defer r.indexLock.Unlock()
	for id := range r.indexes {
		r.unloadLocked(id)
	}
}

func (r *IndexRunner) cleanupInactiveIndexes() {
	ticker := time.NewTicker(r.opts.CleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictInactive()
		case <-r.quit:
			return
		}
	}
}

// evictInactive unloads indexes not accessed within InactiveAfter.
func (r *IndexRunner) evictInactive() int {
	r.indexLock.Lock()
	defer r.indexLock.Unlock()

	now := r.now()
	var toRemove []string
	for id, lastAccess := range r.lastAccessed {
		if now.Sub(lastAccess) > r.opts.InactiveAfter {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		r.unloadLocked(id)
		r.log.WithField("index", id).Info("Unloaded inactive index")
	}
	return len(toRemove)
}

func (r *IndexRunner) unloadLocked(id string) {
	if idx, exists := r.indexes[id]; exists {
		idx.tree.Close()
		delete(r.indexes, id)
	}
	delete(r.lastAccessed, id)
}

// evictOldestLocked makes room for one more index by unloading the least
// recently used one.
func (r *IndexRunner) evictOldestLocked() {
	if len(r.indexes) < r.opts.MaxIndexes {
		return
	}

	var oldestID string
	var oldestTime time.Time
	first := true
	for id, accessTime := range r.lastAccessed {
		if first || accessTime.Before(oldestTime) {
			oldestID = id
			oldestTime = accessTime
			first = false
		}
	}

	if oldestID != "" {
		r.unloadLocked(oldestID)
		r.log.WithField("index", oldestID).Info("Evicted least recently used index")
	}
}

// Format: index-{maxEntries}m-{timestamp}-{id}.zst
func (r *IndexRunner) indexFilename(maxEntries int, created time.Time, id string) string {
	return filepath.Join(r.opts.DataDir,
		fmt.Sprintf("index-%dm-%s-%s.zst", maxEntries, created.Format("20060102-150405"), id))
}

type indexFile struct {
	id         string
	path       string
	maxEntries int
	created    time.Time
	size       int64
}

func parseIndexFilename(name string) (indexFile, error) {
	parts := strings.Split(strings.TrimSuffix(name, ".zst"), "-")
	if len(parts) != 5 || parts[0] != "index" || !strings.HasSuffix(name, ".zst") {
		return indexFile{}, fmt.Errorf("invalid filename format: %s", name)
	}
	maxEntries, err := strconv.Atoi(strings.TrimSuffix(parts[1], "m"))
	if err != nil {
		return indexFile{}, fmt.Errorf("invalid capacity in %s: %w", name, err)
	}
	created, err := time.ParseInLocation("20060102-150405", parts[2]+"-"+parts[3], time.Local)
	if err != nil {
		return indexFile{}, fmt.Errorf("invalid timestamp in %s: %w", name, err)
	}
	return indexFile{id: parts[4], maxEntries: maxEntries, created: created}, nil
}

// listIndexFiles returns the record files in the data directory, newest first.
func (r *IndexRunner) listIndexFiles() ([]indexFile, error) {
	entries, err := os.ReadDir(r.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read index directory: %w", err)
	}

	var files []indexFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := parseIndexFilename(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f.path = filepath.Join(r.opts.DataDir, entry.Name())
		f.size = info.Size()
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].created.Equal(files[j].created) {
			return files[i].created.After(files[j].created)
		}
		return files[i].id < files[j].id
	})
	return files, nil
}

func (r *IndexRunner) findIndexFile(id string) (indexFile, error) {
	files, err := r.listIndexFiles()
	if err != nil {
		return indexFile{}, err
	}
	for _, f := range files {
		if f.id == id {
			return f, nil
		}
	}
	return indexFile{}, status.Errorf(codes.NotFound, "no index found with id %s", id)
}

func (r *IndexRunner) buildIndex(id, path string, maxEntries int, created time.Time, records []dataset.Record) *index {
	tree := rtree.NewWithOptions[dataset.Record](rtree.Options{
		MaxEntries: maxEntries,
		Logger:     r.log.WithField("index", id),
	})
	tree.Load(toItems(records))
	return &index{
		id:         id,
		path:       path,
		created:    created,
		maxEntries: tree.MaxEntries(),
		tree:       tree,
		records:    records,
	}
}

func (r *IndexRunner) fileLock(id string) *sync.Mutex {
	r.fileLocksMu.Lock()
	defer r.fileLocksMu.Unlock()
	l, ok := r.fileLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.fileLocks[id] = l
	}
	return l
}

func (r *IndexRunner) forgetFileLock(id string) {
	r.fileLocksMu.Lock()
	delete(r.fileLocks, id)
	r.fileLocksMu.Unlock()
}

// loadIndexIfNeeded returns the index, reading it back from its record file
// when it is not in memory.
func (r *IndexRunner) loadIndexIfNeeded(id string) (*index, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "missing index id")
	}

	r.indexLock.Lock()
	if idx, exists := r.indexes[id]; exists {
		r.lastAccessed[id] = r.now()
		r.indexLock.Unlock()
		return idx, nil
	}
	r.indexLock.Unlock()

	fl := r.fileLock(id)
	fl.Lock()
	defer fl.Unlock()
	return r.loadFileLocked(id)
}

// loadFileLocked is loadIndexIfNeeded for callers holding the file lock of id.
// Lock order is file lock, then indexLock.
func (r *IndexRunner) loadFileLocked(id string) (*index, error) {
	r.indexLock.Lock()
	defer r.indexLock.Unlock()

	if idx, exists := r.indexes[id]; exists {
		r.lastAccessed[id] = r.now()
		return idx, nil
	}

	f, err := r.findIndexFile(id)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			r.forgetFileLock(id)
		}
		return nil, err
	}

	start := time.Now()
	records, err := dataset.Load(f.path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to load index %s: %v", id, err)
	}

	r.evictOldestLocked()
	idx := r.buildIndex(id, f.path, f.maxEntries, f.created, records)
	r.indexes[id] = idx
	r.lastAccessed[id] = r.now()

	r.log.WithFields(log.Fields{
		"index":    id,
		"records":  len(records),
		"height":   idx.tree.Height(),
		"duration": time.Since(start),
	}).Info("Loaded index")
	return idx, nil
}

func (r *IndexRunner) info(idx *index) *pb.IndexInfo {
	var size int64
	if fi, err := os.Stat(idx.path); err == nil {
		size = fi.Size()
	}
	return &pb.IndexInfo{
		Id:         idx.id,
		NumRecords: int32(idx.tree.Len()),
		MaxEntries: int32(idx.maxEntries),
		Height:     int32(idx.tree.Height()),
		Timestamp:  idx.created.Format(time.RFC3339),
		FileSize:   size,
		Loaded:     true,
	}
}

func (r *IndexRunner) CreateIndex(ctx context.Context, req *pb.CreateIndexRequest) (*pb.CreateIndexResponse, error) {
	if req.NumRecords < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid record count %d", req.NumRecords)
	}
	bounds, err := regionBounds(req.Region)
	if err != nil {
		return nil, err
	}
	maxEntries := int(req.MaxEntries)
	if maxEntries <= 0 {
		maxEntries = r.opts.MaxEntries
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r.log.WithFields(log.Fields{
		"records":    req.NumRecords,
		"maxEntries": maxEntries,
		"region":     req.Region,
	}).Info("Creating new index")

	records := dataset.Generate(int(req.NumRecords), bounds, seed)

	// Use first 8 chars of a UUID for brevity
	id := uuid.New().String()[:8]
	created := r.now()
	idx := r.buildIndex(id, "", maxEntries, created, records)
	idx.path = r.indexFilename(idx.maxEntries, created, id)

	if err := r.save(idx.path, records); err != nil {
		idx.tree.Close()
		return nil, status.Errorf(codes.Internal, "failed to save index: %v", err)
	}

	r.indexLock.Lock()
	r.evictOldestLocked()
	r.indexes[id] = idx
	r.lastAccessed[id] = r.now()
	r.indexLock.Unlock()

	return &pb.CreateIndexResponse{Index: r.info(idx)}, nil
}

func (r *IndexRunner) ListIndexes(ctx context.Context, req *pb.ListIndexesRequest) (*pb.ListIndexesResponse, error) {
	files, err := r.listIndexFiles()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	r.indexLock.RLock()
	defer r.indexLock.RUnlock()

	infos := make([]*pb.IndexInfo, 0, len(files))
	for _, f := range files {
		if idx, loaded := r.indexes[f.id]; loaded {
			infos = append(infos, r.info(idx))
			continue
		}
		count, err := dataset.Count(f.path)
		if err != nil {
			r.log.WithError(err).WithField("file", f.path).Warn("Skipping unreadable index file")
			continue
		}
		infos = append(infos, &pb.IndexInfo{
			Id:         f.id,
			NumRecords: int32(count),
			MaxEntries: int32(f.maxEntries),
			Timestamp:  f.created.Format(time.RFC3339),
			FileSize:   f.size,
		})
	}
	return &pb.ListIndexesResponse{Indexes: infos}, nil
}

func (r *IndexRunner) LoadIndex(ctx context.Context, req *pb.LoadIndexRequest) (*pb.LoadIndexResponse, error) {
	idx, err := r.loadIndexIfNeeded(req.IndexId)
	if err != nil {
		return nil, err
	}
	return &pb.LoadIndexResponse{Index: r.info(idx)}, nil
}

func (r *IndexRunner) DropIndex(ctx context.Context, req *pb.DropIndexRequest) (*pb.DropIndexResponse, error) {
	if req.IndexId == "" {
		return nil, status.Error(codes.InvalidArgument, "missing index id")
	}

	// an insert in flight finishes its save before the file goes away
	fl := r.fileLock(req.IndexId)
	fl.Lock()
	defer fl.Unlock()

	r.indexLock.Lock()
	defer r.indexLock.Unlock()

	f, err := r.findIndexFile(req.IndexId)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			r.forgetFileLock(req.IndexId)
		}
		return nil, err
	}
	r.unloadLocked(req.IndexId)
	if err := os.Remove(f.path); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to remove index file: %v", err)
	}
	r.forgetFileLock(req.IndexId)

	r.log.WithField("index", req.IndexId).Info("Dropped index")
	return &pb.DropIndexResponse{}, nil
}

func (r *IndexRunner) Insert(ctx context.Context, req *pb.InsertRequest) (*pb.InsertResponse, error) {
	if len(req.Records) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no records to insert")
	}
	for _, rec := range req.Records {
		if rec == nil {
			return nil, status.Error(codes.InvalidArgument, "nil record")
		}
		if err := validateCoordinate(rec.X, rec.Y); err != nil {
			return nil, err
		}
	}

	if req.IndexId == "" {
		return nil, status.Error(codes.InvalidArgument, "missing index id")
	}

	// Held across load and save: the index may be evicted meanwhile, but
	// nobody can reload it from a file that is about to be rewritten.
	fl := r.fileLock(req.IndexId)
	fl.Lock()
	defer fl.Unlock()

	idx, err := r.loadFileLocked(req.IndexId)
	if err != nil {
		return nil, err
	}

	nextID := uint32(0)
	for _, rec := range idx.records {
		nextID = max(nextID, rec.ID)
	}
	added := make([]dataset.Record, len(req.Records))
	for i, rec := range req.Records {
		added[i] = fromProtoRecord(rec)
		if added[i].ID == 0 {
			nextID++
			added[i].ID = nextID
		}
	}

	records := append(idx.records[:len(idx.records):len(idx.records)], added...)
	if err := r.save(idx.path, records); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to save index: %v", err)
	}
	idx.records = records
	idx.tree.Load(toItems(added))

	return &pb.InsertResponse{
		Inserted:   int32(len(added)),
		NumRecords: int32(idx.tree.Len()),
	}, nil
}

func (r *IndexRunner) Search(ctx context.Context, req *pb.SearchRequest) (*pb.SearchResponse, error) {
	if err := validateCoordinate(req.X, req.Y); err != nil {
		return nil, err
	}
	idx, err := r.loadIndexIfNeeded(req.IndexId)
	if err != nil {
		return nil, err
	}

	found, err := idx.tree.Search(ctx, req.X, req.Y)
	if err != nil {
		return nil, searchStatus(err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	records := make([]*pb.Record, len(found))
	for i, rec := range found {
		records[i] = toProtoRecord(rec)
	}
	return &pb.SearchResponse{Records: records}, nil
}

func regionBounds(region string) (dataset.Bounds, error) {
	switch strings.ToLower(region) {
	case "", "us":
		return dataset.USBounds, nil
	case "prague":
		return dataset.PragueBounds, nil
	default:
		return dataset.Bounds{}, status.Errorf(codes.InvalidArgument, "unknown region %q", region)
	}
}

// validateCoordinate rejects values the tree cannot key: scaled coordinates
// have to fit the integer grid.
func validateCoordinate(x, y float64) error {
	for _, v := range []float64{x, y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 180 {
			return status.Errorf(codes.InvalidArgument, "invalid coordinate (%v, %v)", x, y)
		}
	}
	return nil
}

func searchStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, rtree.ErrClosed):
		return status.Error(codes.Unavailable, "index was unloaded during the search, retry")
	default:
		return status.Errorf(codes.Internal, "search failed: %v", err)
	}
}
