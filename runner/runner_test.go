package runner

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	pb "github.com/silenteh/GeoSpatialIndex/proto"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRunner(t *testing.T, maxIndexes int) *IndexRunner {
	t.Helper()
	r, err := NewIndexRunner(Options{
		DataDir:    t.TempDir(),
		MaxIndexes: maxIndexes,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func createIndex(t *testing.T, r *IndexRunner, n int32) *pb.IndexInfo {
	t.Helper()
	resp, err := r.CreateIndex(context.Background(), &pb.CreateIndexRequest{NumRecords: n, MaxEntries: 8, Seed: 42, Region: "prague"})
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	return resp.Index
}

func TestCreateAndSearch(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 200)

	if info.NumRecords != 200 || info.MaxEntries != 8 || !info.Loaded {
		t.Errorf("Expected a loaded index of 200 records with capacity 8, got %+v", info)
	}
	if info.Height < 2 {
		t.Errorf("Expected the tree to have split, got height %d", info.Height)
	}
	if _, err := os.Stat(r.indexes[info.Id].path); err != nil {
		t.Errorf("Expected record file to exist: %v", err)
	}

	target := r.indexes[info.Id].records[17]
	resp, err := r.Search(context.Background(), &pb.SearchRequest{IndexId: info.Id, X: target.X, Y: target.Y})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Id != target.ID {
		t.Errorf("Expected record %d, got %+v", target.ID, resp.Records)
	}

	resp, err = r.Search(context.Background(), &pb.SearchRequest{IndexId: info.Id, X: 99, Y: 99})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Records) != 0 {
		t.Errorf("Expected no records, got %+v", resp.Records)
	}
}

func TestInvalidRequests(t *testing.T) {
	r := newTestRunner(t, 4)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"negative count", func() error {
			_, err := r.CreateIndex(ctx, &pb.CreateIndexRequest{NumRecords: -1})
			return err
		}, codes.InvalidArgument},
		{"unknown region", func() error {
			_, err := r.CreateIndex(ctx, &pb.CreateIndexRequest{NumRecords: 1, Region: "mars"})
			return err
		}, codes.InvalidArgument},
		{"missing id", func() error {
			_, err := r.Search(ctx, &pb.SearchRequest{X: 1, Y: 1})
			return err
		}, codes.InvalidArgument},
		{"unknown index", func() error {
			_, err := r.LoadIndex(ctx, &pb.LoadIndexRequest{IndexId: "deadbeef"})
			return err
		}, codes.NotFound},
		{"out of range coordinate", func() error {
			_, err := r.Search(ctx, &pb.SearchRequest{IndexId: "deadbeef", X: 500, Y: 1})
			return err
		}, codes.InvalidArgument},
		{"empty insert", func() error {
			_, err := r.Insert(ctx, &pb.InsertRequest{IndexId: "deadbeef"})
			return err
		}, codes.InvalidArgument},
		{"drop unknown", func() error {
			_, err := r.DropIndex(ctx, &pb.DropIndexRequest{IndexId: "deadbeef"})
			return err
		}, codes.NotFound},
	}
	for _, c := range cases {
		if got := status.Code(c.call()); got != c.code {
			t.Errorf("%s: expected %s, got %s", c.name, c.code, got)
		}
	}
}

func TestInsertPersists(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 10)
	ctx := context.Background()

	resp, err := r.Insert(ctx, &pb.InsertRequest{
		IndexId: info.Id,
		Records: []*pb.Record{
			{Name: "Old Town Square", X: 14.42076, Y: 50.08804},
			{Id: 500, Name: "Charles Bridge", X: 14.41139, Y: 50.08650},
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Inserted != 2 || resp.NumRecords != 12 {
		t.Errorf("Expected 2 inserted and 12 total, got %+v", resp)
	}

	// reload from disk
	r.indexLock.Lock()
	r.unloadLocked(info.Id)
	r.indexLock.Unlock()

	found, err := r.Search(ctx, &pb.SearchRequest{IndexId: info.Id, X: 14.42076, Y: 50.08804})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(found.Records) != 1 || found.Records[0].Name != "Old Town Square" || found.Records[0].Id != 11 {
		t.Errorf("Expected Old Town Square with id 11, got %+v", found.Records)
	}

	found, _ = r.Search(ctx, &pb.SearchRequest{IndexId: info.Id, X: 14.41139, Y: 50.08650})
	if len(found.Records) != 1 || found.Records[0].Id != 500 {
		t.Errorf("Expected Charles Bridge with id 500, got %+v", found.Records)
	}
}

func TestLRUEviction(t *testing.T) {
	r := newTestRunner(t, 2)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	a := createIndex(t, r, 5)
	b := createIndex(t, r, 5)
	if _, err := r.LoadIndex(context.Background(), &pb.LoadIndexRequest{IndexId: a.Id}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	c := createIndex(t, r, 5)

	if len(r.indexes) != 2 {
		t.Fatalf("Expected 2 loaded indexes, got %d", len(r.indexes))
	}
	if _, loaded := r.indexes[b.Id]; loaded {
		t.Errorf("Expected least recently used index %s to be evicted", b.Id)
	}
	for _, id := range []string{a.Id, c.Id} {
		if _, loaded := r.indexes[id]; !loaded {
			t.Errorf("Expected index %s to stay loaded", id)
		}
	}

	list, err := r.ListIndexes(context.Background(), &pb.ListIndexesRequest{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(list.Indexes) != 3 {
		t.Fatalf("Expected 3 indexes on disk, got %d", len(list.Indexes))
	}
	for _, info := range list.Indexes {
		if info.Id == b.Id && (info.Loaded || info.NumRecords != 5) {
			t.Errorf("Expected evicted index listed with 5 records and not loaded, got %+v", info)
		}
	}

	resp, err := r.LoadIndex(context.Background(), &pb.LoadIndexRequest{IndexId: b.Id})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.Index.Loaded || resp.Index.NumRecords != 5 || resp.Index.MaxEntries != 8 {
		t.Errorf("Expected reloaded index with 5 records and capacity 8, got %+v", resp.Index)
	}
}

func TestEvictInactive(t *testing.T) {
	r := newTestRunner(t, 4)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	r.now = func() time.Time { return clock }

	info := createIndex(t, r, 5)
	clock = clock.Add(10 * time.Minute)
	if n := r.evictInactive(); n != 0 {
		t.Errorf("Expected no evictions after 10 minutes, got %d", n)
	}

	clock = clock.Add(time.Hour)
	if n := r.evictInactive(); n != 1 {
		t.Errorf("Expected 1 eviction after an hour, got %d", n)
	}
	if _, loaded := r.indexes[info.Id]; loaded {
		t.Error("Expected the inactive index to be unloaded")
	}
}

func TestDropIndex(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 5)
	path := r.indexes[info.Id].path

	if _, err := r.DropIndex(context.Background(), &pb.DropIndexRequest{IndexId: info.Id}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected record file to be removed, got %v", err)
	}
	_, err := r.LoadIndex(context.Background(), &pb.LoadIndexRequest{IndexId: info.Id})
	if status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound after drop, got %v", err)
	}
}

// interruptFirstSave makes the next record-file save run fn in the background
// and give it time to reach the runner before the file is written.
func interruptFirstSave(r *IndexRunner, fn func()) *sync.WaitGroup {
	var (
		once sync.Once
		wg   sync.WaitGroup
	)
	wg.Add(1)
	r.save = func(filename string, records []dataset.Record) error {
		once.Do(func() {
			go func() {
				defer wg.Done()
				fn()
			}()
			time.Sleep(50 * time.Millisecond)
		})
		return dataset.Save(filename, records)
	}
	return &wg
}

func TestInsertEvictedBeforeSave(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 10)
	ctx := context.Background()

	var secondErr error
	wg := interruptFirstSave(r, func() {
		r.indexLock.Lock()
		r.unloadLocked(info.Id)
		r.indexLock.Unlock()
		_, secondErr = r.Insert(ctx, &pb.InsertRequest{
			IndexId: info.Id,
			Records: []*pb.Record{{Name: "Vysehrad", X: 14.41806, Y: 50.06472}},
		})
	})

	_, err := r.Insert(ctx, &pb.InsertRequest{
		IndexId: info.Id,
		Records: []*pb.Record{{Name: "Old Town Square", X: 14.42076, Y: 50.08804}},
	})
	wg.Wait()
	if err != nil || secondErr != nil {
		t.Fatalf("Unexpected errors: %v, %v", err, secondErr)
	}

	// Read back what is on disk
	r.indexLock.Lock()
	r.unloadLocked(info.Id)
	r.indexLock.Unlock()
	resp, err := r.LoadIndex(ctx, &pb.LoadIndexRequest{IndexId: info.Id})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Index.NumRecords != 12 {
		t.Errorf("Expected 12 records on disk, got %d", resp.Index.NumRecords)
	}
	for _, p := range []struct{ x, y float64 }{{14.42076, 50.08804}, {14.41806, 50.06472}} {
		found, err := r.Search(ctx, &pb.SearchRequest{IndexId: info.Id, X: p.x, Y: p.y})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(found.Records) != 1 {
			t.Errorf("Expected one record at (%v, %v), got %+v", p.x, p.y, found.Records)
		}
	}
}

func TestDropWaitsForInsert(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 10)
	path := r.indexes[info.Id].path
	ctx := context.Background()

	var dropErr error
	wg := interruptFirstSave(r, func() {
		_, dropErr = r.DropIndex(ctx, &pb.DropIndexRequest{IndexId: info.Id})
	})

	_, err := r.Insert(ctx, &pb.InsertRequest{
		IndexId: info.Id,
		Records: []*pb.Record{{Name: "Old Town Square", X: 14.42076, Y: 50.08804}},
	})
	wg.Wait()
	if err != nil || dropErr != nil {
		t.Fatalf("Unexpected errors: %v, %v", err, dropErr)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected record file to stay removed, got %v", err)
	}
	_, err = r.LoadIndex(ctx, &pb.LoadIndexRequest{IndexId: info.Id})
	if status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound after drop, got %v", err)
	}
}

func TestSearchCancelled(t *testing.T) {
	r := newTestRunner(t, 4)
	info := createIndex(t, r, 500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Search(ctx, &pb.SearchRequest{IndexId: info.Id, X: 14.4, Y: 50.08})
	if status.Code(err) != codes.Canceled {
		t.Errorf("Expected Canceled, got %v", err)
	}
}

func TestParseIndexFilename(t *testing.T) {
	f, err := parseIndexFilename("index-50m-20240501-120000-abcd1234.zst")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.id != "abcd1234" || f.maxEntries != 50 || f.created.Hour() != 12 {
		t.Errorf("Expected id abcd1234, capacity 50 at noon, got %+v", f)
	}

	for _, name := range []string{
		"index-50m-20240501-abcd1234.zst",
		"cluster-50m-20240501-120000-abcd1234.zst",
		"index-xm-20240501-120000-abcd1234.zst",
		"index-50m-20240501-120000-abcd1234.sz",
	} {
		if _, err := parseIndexFilename(name); err == nil {
			t.Errorf("Expected %s to be rejected", name)
		}
	}
}

func TestLocalClient(t *testing.T) {
	r := newTestRunner(t, 4)
	client := NewLocalClient(r)

	created, err := client.CreateIndex(context.Background(), &pb.CreateIndexRequest{NumRecords: 3, Seed: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	list, err := client.ListIndexes(context.Background(), &pb.ListIndexesRequest{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(list.Indexes) != 1 || list.Indexes[0].Id != created.Index.Id {
		t.Errorf("Expected [%s], got %+v", created.Index.Id, list.Indexes)
	}
}
