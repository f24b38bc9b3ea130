package doctesting

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/document"
)

// BackendFactory creates a backend for one test. Collections used by the suite are
// prefixed with a unique name, so backends shared between tests work as well.
type BackendFactory func(t *testing.T) document.Backend

const idField = "id"

// RunBackendTests runs the conformance suite for a document.Backend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Find", func(t *testing.T) {
			testInsertFind(t, factory(t), collection(t))
		})

		t.Run("FindAll&Count", func(t *testing.T) {
			testFindAllCount(t, factory(t), collection(t))
		})

		t.Run("Replace", func(t *testing.T) {
			testReplace(t, factory(t), collection(t))
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory(t), collection(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t), collection(t))
		})

		t.Run("Rename&Drop", func(t *testing.T) {
			testRenameDrop(t, factory(t), collection(t))
		})
	})
}

// collection derives a collection name from the test name
func collection(t *testing.T) string {
	name := []byte(t.Name())
	for i, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			name[i] = '_'
		}
	}
	return string(name)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertFind(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()

	if _, found, err := b.FindOne(ctx, coll, idField, "missing"); err != nil || found {
		t.Fatalf("FindOne(missing) = found %v, err %v; want not found without error", found, err)
	}

	doc := document.Document{
		idField:  "a",
		"name":   "Ann",
		"tags":   []any{"x", "y"},
		"nested": map[string]any{"city": "Berlin"},
	}
	if err := b.InsertOne(ctx, coll, doc); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	got, found, err := b.FindOne(ctx, coll, idField, "a")
	if err != nil || !found {
		t.Fatalf("FindOne(a) = found %v, err %v", found, err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("FindOne(a) = %v, want %v", got, doc)
	}

	// the returned document is a copy
	got["name"] = "changed"
	again, _, _ := b.FindOne(ctx, coll, idField, "a")
	if again["name"] != "Ann" {
		t.Errorf("modifying a returned document changed the stored one: %v", again)
	}
}

func testFindAllCount(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()

	docs, err := b.FindAll(ctx, coll)
	if err != nil || len(docs) != 0 {
		t.Fatalf("FindAll(empty) = %v, %v; want no documents", docs, err)
	}
	if n, err := b.Count(ctx, coll); err != nil || n != 0 {
		t.Fatalf("Count(empty) = %d, %v; want 0", n, err)
	}

	batch := []document.Document{
		{idField: "a", "n": "1"},
		{idField: "b", "n": "2"},
		{idField: "c", "n": "3"},
	}
	if err := b.InsertMany(ctx, coll, batch); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	if n, err := b.Count(ctx, coll); err != nil || n != 3 {
		t.Fatalf("Count = %d, %v; want 3", n, err)
	}
	docs, err = b.FindAll(ctx, coll)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d[idField].(string))
	}
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("FindAll returned ids %v, want [a b c]", ids)
	}
}

func testReplace(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()

	matched, err := b.ReplaceOne(ctx, coll, idField, "a", document.Document{idField: "a"})
	if err != nil || matched {
		t.Fatalf("ReplaceOne(missing) = %v, %v; want no match", matched, err)
	}

	if err := b.InsertOne(ctx, coll, document.Document{idField: "a", "old": "x"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	replacement := document.Document{idField: "a", "new": "y"}
	matched, err = b.ReplaceOne(ctx, coll, idField, "a", replacement)
	if err != nil || !matched {
		t.Fatalf("ReplaceOne = %v, %v; want match", matched, err)
	}

	got, _, _ := b.FindOne(ctx, coll, idField, "a")
	if !reflect.DeepEqual(got, replacement) {
		t.Errorf("after ReplaceOne got %v, want %v", got, replacement)
	}
}

func testUpdate(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()

	if _, matched, err := b.UpdateOne(ctx, coll, idField, "a", document.Document{"x": "1"}); err != nil || matched {
		t.Fatalf("UpdateOne(missing) = %v, %v; want no match", matched, err)
	}

	if err := b.InsertOne(ctx, coll, document.Document{idField: "a", "keep": "k", "x": "0"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	updated, matched, err := b.UpdateOne(ctx, coll, idField, "a", document.Document{"x": "1", "y": "2"})
	if err != nil || !matched {
		t.Fatalf("UpdateOne = %v, %v; want match", matched, err)
	}

	want := document.Document{idField: "a", "keep": "k", "x": "1", "y": "2"}
	if !reflect.DeepEqual(updated, want) {
		t.Errorf("UpdateOne returned %v, want %v", updated, want)
	}
	got, _, _ := b.FindOne(ctx, coll, idField, "a")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after UpdateOne got %v, want %v", got, want)
	}
}

func testDelete(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()

	if deleted, err := b.DeleteOne(ctx, coll, idField, "a"); err != nil || deleted {
		t.Fatalf("DeleteOne(missing) = %v, %v; want nothing deleted", deleted, err)
	}

	batch := []document.Document{
		{idField: "a", "n": "1"},
		{idField: "a", "n": "2"},
		{idField: "a", "n": "3"},
		{idField: "b", "n": "4"},
	}
	if err := b.InsertMany(ctx, coll, batch); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	deleted, err := b.DeleteOne(ctx, coll, idField, "a")
	if err != nil || !deleted {
		t.Fatalf("DeleteOne = %v, %v; want deleted", deleted, err)
	}
	n, err := b.DeleteMany(ctx, coll, idField, "a")
	if err != nil || n != 2 {
		t.Fatalf("DeleteMany = %d, %v; want 2", n, err)
	}
	if count, _ := b.Count(ctx, coll); count != 1 {
		t.Errorf("Count after deletes = %d, want 1", count)
	}
	if _, found, _ := b.FindOne(ctx, coll, idField, "b"); !found {
		t.Errorf("document b should not have been deleted")
	}
}

func testRenameDrop(t *testing.T, b document.Backend, coll string) {
	ctx := context.Background()
	renamed := coll + "_renamed"

	if err := b.InsertOne(ctx, coll, document.Document{idField: "a"}); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}
	if err := b.Rename(ctx, coll, renamed); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Drop(context.Background(), renamed) })

	if n, _ := b.Count(ctx, coll); n != 0 {
		t.Errorf("old collection still has %d documents", n)
	}
	if _, found, _ := b.FindOne(ctx, renamed, idField, "a"); !found {
		t.Errorf("document missing in renamed collection")
	}

	if err := b.Drop(ctx, renamed); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if n, err := b.Count(ctx, renamed); err != nil || n != 0 {
		t.Errorf("Count after Drop = %d, %v; want 0", n, err)
	}

	// the source no longer exists
	if err := b.Rename(ctx, renamed, coll); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Rename of a missing collection = %v; want a NotFoundError", err)
	}
}
