package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestMemoryStore exercises MemoryStore the way fakeserver.storeFor uses it:
// one instance per namespace+set, keyed by hex-encoded digest, holding
// JSON-marshaled storedRecord bytes.
func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore()

		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store, got %d keys", len(keys))
		}

		_, err := store.Get("deadbeefdeadbeefdeadbeefdeadbeef")
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("put and get values", func(t *testing.T) {
		store := NewMemoryStore()
		digest := "aa00000000000000000000000000001"

		err := store.Put(digest, []byte(`{"bins":{"a":1}}`))
		if err != nil {
			t.Fatalf("Failed to put value: %v", err)
		}

		value, err := store.Get(digest)
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}

		if !bytes.Equal(value, []byte(`{"bins":{"a":1}}`)) {
			t.Errorf("Expected record bytes back, got %s", string(value))
		}
	})

	t.Run("overwrite existing key bumps stored bytes", func(t *testing.T) {
		store := NewMemoryStore()
		digest := "bb00000000000000000000000000001"

		err := store.Put(digest, []byte(`{"generation":1}`))
		if err != nil {
			t.Fatalf("Failed to put initial value: %v", err)
		}

		err = store.Put(digest, []byte(`{"generation":2}`))
		if err != nil {
			t.Fatalf("Failed to overwrite value: %v", err)
		}

		value, err := store.Get(digest)
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}

		if !bytes.Equal(value, []byte(`{"generation":2}`)) {
			t.Errorf("Expected generation 2 record, got %s", string(value))
		}
	})

	t.Run("delete values", func(t *testing.T) {
		store := NewMemoryStore()
		digest := "cc00000000000000000000000000001"

		err := store.Put(digest, []byte(`{"bins":{}}`))
		if err != nil {
			t.Fatalf("Failed to put value: %v", err)
		}

		err = store.Delete(digest)
		if err != nil {
			t.Fatalf("Failed to delete value: %v", err)
		}

		_, err = store.Get(digest)
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
		}

		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store after delete, got %d keys", len(keys))
		}
	})

	t.Run("delete non-existent digest", func(t *testing.T) {
		store := NewMemoryStore()

		// Mirrors fakeserver's delete-on-miss handling being surfaced as its
		// own result code rather than a storage-layer error.
		err := store.Delete("ddeadbeefdeadbeefdeadbeefdeadbe")
		if err != nil {
			t.Errorf("Delete of non-existent digest should not error, got %v", err)
		}
	})

	t.Run("list digests", func(t *testing.T) {
		store := NewMemoryStore()

		records := map[string][]byte{
			"11111111111111111111111111111111": []byte(`{"bins":{"a":1}}`),
			"22222222222222222222222222222222": []byte(`{"bins":{"b":2}}`),
			"33333333333333333333333333333333": []byte(`{"bins":{"c":3}}`),
		}

		for digest, rec := range records {
			if err := store.Put(digest, rec); err != nil {
				t.Fatalf("Failed to put %s: %v", digest, err)
			}
		}

		keys := store.List()
		if len(keys) != len(records) {
			t.Errorf("Expected %d digests, got %d", len(records), len(keys))
		}

		seen := make(map[string]bool)
		for _, k := range keys {
			seen[k] = true
		}
		for digest := range records {
			if !seen[digest] {
				t.Errorf("Expected digest %s in list", digest)
			}
		}
	})

	t.Run("empty and nil record bytes", func(t *testing.T) {
		store := NewMemoryStore()

		err := store.Put("empty-record-digest", []byte{})
		if err != nil {
			t.Fatalf("Failed to put empty value: %v", err)
		}

		value, err := store.Get("empty-record-digest")
		if err != nil {
			t.Fatalf("Failed to get empty value: %v", err)
		}

		if len(value) != 0 {
			t.Errorf("Expected empty value, got %d bytes", len(value))
		}

		err = store.Put("nil-record-digest", nil)
		if err != nil {
			t.Fatalf("Failed to put nil value: %v", err)
		}

		value, err = store.Get("nil-record-digest")
		if err != nil {
			t.Fatalf("Failed to get nil value: %v", err)
		}

		if value == nil || len(value) != 0 {
			t.Errorf("Expected empty byte slice for nil value, got %v", value)
		}
	})

	t.Run("empty digest key handling", func(t *testing.T) {
		store := NewMemoryStore()

		// fakeserver never hands MemoryStore an empty key in practice (every
		// digest is DigestSize bytes hex-encoded), but the interface itself
		// places no constraint on key shape.
		err := store.Put("", []byte("empty-key-value"))
		if err != nil {
			t.Fatalf("Failed to put with empty key: %v", err)
		}

		value, err := store.Get("")
		if err != nil {
			t.Fatalf("Failed to get empty key: %v", err)
		}

		if !bytes.Equal(value, []byte("empty-key-value")) {
			t.Errorf("Expected 'empty-key-value', got %s", string(value))
		}

		keys := store.List()
		found := false
		for _, k := range keys {
			if k == "" {
				found = true
				break
			}
		}
		if !found {
			t.Error("Empty key should appear in list")
		}

		err = store.Delete("")
		if err != nil {
			t.Fatalf("Failed to delete empty key: %v", err)
		}
	})
}

// TestMemoryStoreConcurrency exercises the same concurrent-access guarantees
// fakeserver relies on: many connections hitting one namespace+set's store
// (put/get/delete/list) at once, via a single *MemoryStore.
func TestMemoryStoreConcurrency(t *testing.T) {
	t.Run("concurrent writes", func(t *testing.T) {
		store := NewMemoryStore()

		numGoroutines := 100
		numOps := 100

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOps; j++ {
					digest := fmt.Sprintf("conn-%d-digest-%d", id, j)
					value := []byte(fmt.Sprintf(`{"generation":%d}`, j))
					if err := store.Put(digest, value); err != nil {
						t.Errorf("Failed to put: %v", err)
					}
				}
			}(i)
		}

		wg.Wait()

		keys := store.List()
		expectedKeys := numGoroutines * numOps
		if len(keys) != expectedKeys {
			t.Errorf("Expected %d digests, got %d", expectedKeys, len(keys))
		}
	})

	t.Run("concurrent reads", func(t *testing.T) {
		store := NewMemoryStore()

		numKeys := 100
		for i := 0; i < numKeys; i++ {
			digest := fmt.Sprintf("digest-%d", i)
			value := []byte(fmt.Sprintf(`{"generation":%d}`, i))
			store.Put(digest, value)
		}

		numReaders := 100
		numReads := 1000

		var wg sync.WaitGroup
		wg.Add(numReaders)

		for i := 0; i < numReaders; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numReads; j++ {
					digest := fmt.Sprintf("digest-%d", j%numKeys)
					expectedValue := []byte(fmt.Sprintf(`{"generation":%d}`, j%numKeys))

					value, err := store.Get(digest)
					if err != nil {
						t.Errorf("Reader %d failed to get %s: %v", id, digest, err)
						continue
					}

					if !bytes.Equal(value, expectedValue) {
						t.Errorf("Reader %d got wrong value for %s", id, digest)
					}
				}
			}(i)
		}

		wg.Wait()
	})

	t.Run("concurrent mixed operations", func(t *testing.T) {
		store := NewMemoryStore()

		var wg sync.WaitGroup
		numGoroutines := 50
		wg.Add(numGoroutines * 4) // writers, readers, deleters, listers

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					digest := fmt.Sprintf("digest-%d", j)
					value := []byte(fmt.Sprintf(`{"writer":%d,"seq":%d}`, id, j))
					store.Put(digest, value)
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					digest := fmt.Sprintf("digest-%d", j)
					store.Get(digest) // may or may not exist yet
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if j%10 == 0 {
						digest := fmt.Sprintf("digest-%d", j)
						store.Delete(digest)
					}
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					store.List()
					time.Sleep(time.Microsecond)
				}
			}(i)
		}

		wg.Wait()

		err := store.Put("final-digest", []byte(`{"bins":{}}`))
		if err != nil {
			t.Errorf("Store not functional after concurrent ops: %v", err)
		}

		value, err := store.Get("final-digest")
		if err != nil {
			t.Errorf("Failed to get final digest: %v", err)
		}

		if !bytes.Equal(value, []byte(`{"bins":{}}`)) {
			t.Error("Final value incorrect after concurrent ops")
		}
	})

	t.Run("concurrent overwrites of the same digest", func(t *testing.T) {
		store := NewMemoryStore()

		digest := "contested-digest"
		numWriters := 100
		numWrites := 100

		var wg sync.WaitGroup
		wg.Add(numWriters)

		for i := 0; i < numWriters; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numWrites; j++ {
					value := []byte(fmt.Sprintf(`{"writer":%d,"iteration":%d}`, id, j))
					if err := store.Put(digest, value); err != nil {
						t.Errorf("Writer %d failed: %v", id, err)
					}
				}
			}(i)
		}

		wg.Wait()

		value, err := store.Get(digest)
		if err != nil {
			t.Errorf("Digest should exist after concurrent writes: %v", err)
		}

		if len(value) == 0 {
			t.Error("Value should not be empty after concurrent writes")
		}
	})
}

// TestStoreInterface verifies MemoryStore satisfies Store and that the
// interface's contract holds through a live instance, the same shape
// fakeserver.storeFor depends on.
func TestStoreInterface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)

	var store Store = NewMemoryStore()

	err := store.Put("interface-digest", []byte(`{"bins":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("Interface Put failed: %v", err)
	}

	value, err := store.Get("interface-digest")
	if err != nil {
		t.Fatalf("Interface Get failed: %v", err)
	}

	if !bytes.Equal(value, []byte(`{"bins":{"k":"v"}}`)) {
		t.Error("Interface Get returned wrong value")
	}

	keys := store.List()
	if len(keys) != 1 {
		t.Errorf("Interface List returned wrong count: %d", len(keys))
	}

	err = store.Delete("interface-digest")
	if err != nil {
		t.Fatalf("Interface Delete failed: %v", err)
	}
}

// TestMemoryStoreStats tests the Stats bookkeeping a future per-namespace
// size/record-count metric could read without walking the whole map.
func TestMemoryStoreStats(t *testing.T) {
	t.Run("stats tracking", func(t *testing.T) {
		store := NewMemoryStore()

		stats := store.Stats()
		if stats.Keys != 0 || stats.Bytes != 0 {
			t.Errorf("Initial stats should be zero, got keys=%d bytes=%d", stats.Keys, stats.Bytes)
		}

		records := map[string][]byte{
			"digest-1": []byte("value1"),   // 6 bytes
			"digest-2": []byte("value22"),  // 7 bytes
			"digest-3": []byte("value333"), // 8 bytes
		}

		for digest, v := range records {
			store.Put(digest, v)
		}

		stats = store.Stats()
		if stats.Keys != 3 {
			t.Errorf("Expected 3 keys, got %d", stats.Keys)
		}

		expectedBytes := 6 + 7 + 8
		if stats.Bytes != expectedBytes {
			t.Errorf("Expected %d bytes, got %d", expectedBytes, stats.Bytes)
		}

		store.Delete("digest-2")

		stats = store.Stats()
		if stats.Keys != 2 {
			t.Errorf("Expected 2 keys after delete, got %d", stats.Keys)
		}

		expectedBytes = 6 + 8
		if stats.Bytes != expectedBytes {
			t.Errorf("Expected %d bytes after delete, got %d", expectedBytes, stats.Bytes)
		}
	})
}
