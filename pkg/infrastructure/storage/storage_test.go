package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

func testKey(domain string) string {
	return strings.TrimPrefix(strings.ToLower(domain), "www.")
}

func TestBloomFilter_Basic(t *testing.T) {
	filter := NewBloomFilter(Config{
		Size:              1000,
		FalsePositiveRate: 0.01,
	})

	testDomain := "example.com"

	if filter.Contains(testDomain) {
		t.Errorf("Filter should not contain %s initially", testDomain)
	}

	filter.Add(testDomain)

	if !filter.Contains(testDomain) {
		t.Errorf("Filter should contain %s after Add", testDomain)
	}
}

func TestTaskQueue_Basic(t *testing.T) {
	queue := NewTaskQueue(2)

	if queue.Len() != 0 {
		t.Errorf("New queue should be empty, got length %d", queue.Len())
	}

	first := &entity.Task{Target: entity.Target{Domain: "example.com"}}
	second := &entity.Task{Target: entity.Target{Domain: "blocked.com"}}

	if !queue.Enqueue(first) || !queue.Enqueue(second) {
		t.Fatal("Enqueue should succeed while there is room")
	}
	if queue.Enqueue(&entity.Task{}) {
		t.Error("Enqueue should fail when the queue is full")
	}
	if queue.Len() != 2 {
		t.Errorf("Len() = %d, want 2", queue.Len())
	}

	got, ok := queue.Dequeue()
	if !ok || got.Target.Domain != "example.com" {
		t.Errorf("Dequeue() = %v, %v; want example.com", got, ok)
	}

	queue.Close()
	if queue.Enqueue(first) {
		t.Error("Enqueue should fail after Close")
	}

	// remaining items drain before ok turns false
	if got, ok := queue.Dequeue(); !ok || got.Target.Domain != "blocked.com" {
		t.Errorf("Dequeue() after close = %v, %v; want blocked.com", got, ok)
	}
	if _, ok := queue.Dequeue(); ok {
		t.Error("Dequeue() on drained closed queue should report !ok")
	}
	queue.Close()
}

func TestResultQueue_SendReceive(t *testing.T) {
	queue := NewResultQueue(1)
	queue.Send(&entity.Result{Domain: "example.com", State: entity.StateAcquired})

	got, ok := queue.Receive()
	if !ok || got.Domain != "example.com" {
		t.Fatalf("Receive() = %v, %v", got, ok)
	}

	queue.Close()
	queue.Send(&entity.Result{Domain: "dropped.com"})
	if _, ok := queue.Receive(); ok {
		t.Error("Receive() after Close should report !ok")
	}
}

func TestWriters_AppendJSONLines(t *testing.T) {
	dir := t.TempDir()
	resultsPath := filepath.Join(dir, "results.jsonl")
	attemptsPath := filepath.Join(dir, "attempts.jsonl")

	for run := 0; run < 2; run++ {
		rw, err := NewResultWriter(resultsPath)
		if err != nil {
			t.Fatalf("NewResultWriter() error = %v", err)
		}
		if err := rw.Write(&entity.Result{Domain: "example.com", State: entity.StateAcquired}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if err := rw.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		rw.Close()
	}

	lw, err := NewLogWriter(attemptsPath)
	if err != nil {
		t.Fatalf("NewLogWriter() error = %v", err)
	}
	attempt := &entity.FetchAttempt{
		Domain:  "blocked.com",
		URL:     "https://blocked.com/logo.png",
		Tier:    entity.TierBrowser,
		Proxy:   "gb-1",
		Outcome: entity.OutcomeFailed,
		Kind:    entity.KindTransport,
	}
	if err := lw.WriteAttempt(attempt); err != nil {
		t.Fatalf("WriteAttempt() error = %v", err)
	}
	lw.Close()

	if n := countLines(t, resultsPath); n != 2 {
		t.Errorf("results lines = %d, want 2 across runs", n)
	}

	data, err := os.ReadFile(attemptsPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("attempt line is not JSON: %v", err)
	}
	for _, field := range []string{"domain", "url", "tier", "proxy", "outcome", "kind"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("attempt line missing %q: %s", field, data)
		}
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n
}

func setupTestStore(t *testing.T) (*AssetStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "assets")
	store, err := NewAssetStore(dir, testKey, NewBloomFilter(Config{Size: 1000}))
	if err != nil {
		t.Fatalf("NewAssetStore() error = %v", err)
	}
	return store, dir
}

func TestAssetStore_SaveAndLookup(t *testing.T) {
	store, dir := setupTestStore(t)

	if _, ok, err := store.Lookup("example.com"); err != nil || ok {
		t.Fatalf("Lookup() on empty store = %v, %v", ok, err)
	}

	asset, err := store.Save("www.Example.com", &entity.Download{Extension: ".png", Body: []byte("png")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(dir, "example.com.png"); asset.Path != want {
		t.Errorf("Save() path = %q, want %q", asset.Path, want)
	}

	got, ok, err := store.Lookup("example.com")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if got.Extension != ".png" {
		t.Errorf("Lookup() extension = %q, want .png", got.Extension)
	}

	existing, err := store.Save("example.com", &entity.Download{Extension: ".svg", Body: []byte("<svg/>")})
	if !errors.Is(err, entity.ErrAlreadyAcquired) {
		t.Fatalf("second Save() error = %v, want ErrAlreadyAcquired", err)
	}
	if existing.Path != asset.Path {
		t.Errorf("second Save() returned %q, want existing %q", existing.Path, asset.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "example.com.svg")); !os.IsNotExist(err) {
		t.Error("second Save() must not create another file")
	}
}

func TestAssetStore_LookupMatchesWholeStem(t *testing.T) {
	store, dir := setupTestStore(t)

	if err := os.WriteFile(filepath.Join(dir, "example.com.au.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	store.index.Add("example.com")

	if _, ok, _ := store.Lookup("example.com"); ok {
		t.Error("example.com must not match example.com.au.png")
	}
}

func TestAssetStore_SeedsIndexFromDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "www.retailer.co.uk.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewAssetStore(dir, testKey, NewBloomFilter(Config{Size: 1000}))
	if err != nil {
		t.Fatalf("NewAssetStore() error = %v", err)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "retailer.co.uk" {
		t.Errorf("Keys() = %v, want [retailer.co.uk]", keys)
	}

	asset, ok, err := store.Lookup("retailer.co.uk")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if filepath.Base(asset.Path) != "www.retailer.co.uk.jpg" {
		t.Errorf("Lookup() path = %q", asset.Path)
	}
}

func TestAssetStore_ConcurrentSaveCreatesOneFile(t *testing.T) {
	store, dir := setupTestStore(t)

	const writers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		existing int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ext := ".png"
			if i%2 == 1 {
				ext = ".svg"
			}
			_, err := store.Save("example.com", &entity.Download{Extension: ext, Body: []byte("img")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, entity.ErrAlreadyAcquired):
				existing++
			default:
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || existing != writers-1 {
		t.Errorf("created = %d, existing = %d; want 1 and %d", created, existing, writers-1)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("asset directory holds %d files, want 1", len(entries))
	}
}

func TestAssetStore_SaveRejectsEmpty(t *testing.T) {
	store, _ := setupTestStore(t)
	if _, err := store.Save("example.com", &entity.Download{Extension: ".png"}); err == nil {
		t.Error("Save() of empty body should fail")
	}
	if _, err := store.Save("", &entity.Download{Body: []byte("x")}); err == nil {
		t.Error("Save() with empty domain should fail")
	}
}

func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := NewLedger(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestLedger_PutGet(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	if _, ok, err := ledger.Get(ctx, "blocked.com"); err != nil || ok {
		t.Fatalf("Get() on empty ledger = %v, %v", ok, err)
	}

	entry := &entity.LedgerEntry{
		Domain: "blocked.com",
		State:  entity.StateNoAssetFound,
		Reason: "exhausted_tiers",
	}
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := ledger.Get(ctx, "blocked.com")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.State != entity.StateNoAssetFound || got.Reason != "exhausted_tiers" {
		t.Errorf("Get() = %+v", got)
	}

	entry.State = entity.StateAcquired
	entry.AssetPath = "assets/blocked.com.png"
	entry.Tier = entity.TierSecondaryDirectory
	entry.UpdatedAt = time.Now()
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatalf("Put() upsert error = %v", err)
	}

	got, _, _ = ledger.Get(ctx, "blocked.com")
	if got.State != entity.StateAcquired || got.Tier != entity.TierSecondaryDirectory || got.AssetPath == "" {
		t.Errorf("Get() after upsert = %+v", got)
	}
}

func TestLedger_Reset(t *testing.T) {
	tests := []struct {
		name         string
		onlyNotFound bool
		wantRemoved  int64
		wantKept     []string
	}{
		{"not found only", true, 2, []string{"example.com"}},
		{"everything", false, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := setupTestLedger(t)
			ctx := context.Background()

			seed := map[string]entity.State{
				"example.com": entity.StateAcquired,
				"blocked.com": entity.StateNoAssetFound,
				"gone.org":    entity.StateNoAssetFound,
			}
			for domain, state := range seed {
				if err := ledger.Put(ctx, &entity.LedgerEntry{Domain: domain, State: state}); err != nil {
					t.Fatal(err)
				}
			}

			removed, err := ledger.Reset(ctx, tt.onlyNotFound)
			if err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			if removed != tt.wantRemoved {
				t.Errorf("Reset() removed %d, want %d", removed, tt.wantRemoved)
			}

			for _, domain := range tt.wantKept {
				if _, ok, _ := ledger.Get(ctx, domain); !ok {
					t.Errorf("%s should survive Reset", domain)
				}
			}
		})
	}
}
