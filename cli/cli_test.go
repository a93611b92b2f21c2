package cli

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	"github.com/silenteh/GeoSpatialIndex/rtree"
)

func run(t *testing.T, tree *rtree.Tree[dataset.Record], script string) string {
	t.Helper()
	var out bytes.Buffer
	c := NewCli(bufio.NewScanner(strings.NewReader(script)), &out, tree)
	c.Start()
	return out.String()
}

func TestInsertAndSearch(t *testing.T) {
	tree := rtree.New[dataset.Record](0)
	defer tree.Close()

	out := run(t, tree, `
INSERT 14.42076 50.08804 Old Town Square
insert 14.41139 50.08650 Charles Bridge
SEARCH 14.42076 50.08804
search 99 99
`)

	if !strings.Contains(out, "#1 Old Town Square (14.42076, 50.08804)") {
		t.Errorf("Expected the first record in the output, got:\n%s", out)
	}
	if !strings.Contains(out, "1 record(s)") {
		t.Errorf("Expected a single search match, got:\n%s", out)
	}
	if !strings.Contains(out, "No records found.") {
		t.Errorf("Expected an empty search, got:\n%s", out)
	}
	if tree.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", tree.Len())
	}
}

func TestUsageAndErrors(t *testing.T) {
	tree := rtree.New[dataset.Record](0)
	defer tree.Close()

	out := run(t, tree, `
INSERT 1
SEARCH a b
GENERATE -3
GENERATE 5 mars
FLY
`)
	for _, expected := range []string{
		"Usage: INSERT <x> <y> [name]",
		`invalid x "a"`,
		`invalid count "-3"`,
		`unknown region "mars"`,
		`Unknown command "fly"`,
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("Expected %q in output, got:\n%s", expected, out)
		}
	}
	if tree.Len() != 0 {
		t.Errorf("Expected no records, got %d", tree.Len())
	}
}

func TestExitStopsReading(t *testing.T) {
	tree := rtree.New[dataset.Record](0)
	defer tree.Close()

	run(t, tree, "INSERT 1 1\nEXIT\nINSERT 2 2\n")
	if tree.Len() != 1 {
		t.Errorf("Expected commands after EXIT to be ignored, got %d records", tree.Len())
	}
}

func TestGenerateSaveLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "records.sz")
	bitmap := filepath.Join(dir, "tree.bmp")

	tree := rtree.New[dataset.Record](8)
	defer tree.Close()
	out := run(t, tree, "GENERATE 100 prague\nSAVE "+file+"\nSTATS\nDUMP\nRENDER "+bitmap+" 64\n")

	if !strings.Contains(out, "Saved 100 records") || !strings.Contains(out, "(snappy)") {
		t.Errorf("Expected save confirmation, got:\n%s", out)
	}
	if !strings.Contains(out, "records:  100") || !strings.Contains(out, "check:    ok") {
		t.Errorf("Expected stats for 100 records, got:\n%s", out)
	}
	if !strings.Contains(out, "internal") {
		t.Errorf("Expected a dump of a split tree, got:\n%s", out)
	}
	if info, err := os.Stat(bitmap); err != nil || info.Size() == 0 {
		t.Errorf("Expected a bitmap at %s, got %v", bitmap, err)
	}

	other := rtree.New[dataset.Record](8)
	defer other.Close()
	out = run(t, other, "LOAD "+file+"\n")
	if !strings.Contains(out, "Inserted 100 records") {
		t.Errorf("Expected load confirmation, got:\n%s", out)
	}
	if other.Len() != 100 {
		t.Errorf("Expected 100 records, got %d", other.Len())
	}
}
