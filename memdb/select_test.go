package memdb

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/outfield-ai/outfield/document"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	_, err := s.Insert("docs", []document.Document{
		{"_id": "1", "x": 1},
		{"_id": "2", "x": 2},
		{"_id": "3", "x": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInsertGeneratesIDs(t *testing.T) {
	s := NewStore()
	ids, err := s.Insert("docs", []document.Document{{"x": 1}, {"x": 2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("expected distinct generated ids, got %v", ids)
	}
	if _, ok := s.Get("docs", ids[0]); !ok {
		t.Error("inserted row not retrievable")
	}
}

func TestExecuteInsertionOrder(t *testing.T) {
	sel := NewSelect(seededStore(t), "docs")
	rows, err := sel.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "3"}) {
		t.Errorf("expected insertion order, got %v", ids)
	}
}

func TestSelectUsingIDsPreservesIDOrder(t *testing.T) {
	sel := NewSelect(seededStore(t), "docs")
	rows, err := sel.SelectUsingIDs([]string{"3", "1"}).Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "3" || rows[1].ID != "1" {
		t.Errorf("expected id order, got %v", rows)
	}
}

func TestModelUpdateAndMissingOutputsFilter(t *testing.T) {
	s := seededStore(t)
	sel := NewSelect(s, "docs")

	err := sel.ModelUpdate(context.Background(), []string{"1", "3"}, "x", "add2", 0, []any{3, 5})
	if err != nil {
		t.Fatal(err)
	}

	d, _ := s.Get("docs", "1")
	v, ok := d.Get("_outputs.x.add2.0")
	if !ok || v != 3 {
		t.Errorf("expected stored output 3, got %v", v)
	}

	field := document.OutputField("x", "add2", 0)
	rows, err := sel.SelectIDsOfMissingOutputs(field).Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "2" {
		t.Errorf("expected only row 2 missing outputs, got %v", rows)
	}
}

// Documents handed out by Get and Execute must not alias the stored
// nested output maps: readers walk them without holding the collection
// lock while ModelUpdate writes other models' outputs in place.
func TestConcurrentReadsAndOutputWrites(t *testing.T) {
	s := seededStore(t)
	sel := NewSelect(s, "docs")
	ctx := context.Background()

	if err := sel.ModelUpdate(ctx, []string{"1", "2", "3"}, "x", "m1", 0, []any{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			d, ok := s.Get("docs", "1")
			if !ok {
				continue
			}
			d.Get("_outputs.x.m1.0")
			rows, err := sel.Execute(ctx)
			if err != nil {
				return
			}
			for _, r := range rows {
				r.Doc.Get("_outputs.x.m1.0")
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := sel.ModelUpdate(ctx, []string{"1", "2", "3"}, "x", "m2", i, []any{i, i, i}); err != nil {
				return
			}
		}
	}()
	wg.Wait()

	d, _ := s.Get("docs", "1")
	if v, ok := d.Get("_outputs.x.m1.0"); !ok || v != 1 {
		t.Errorf("expected m1 output to survive concurrent writes, got %v %v", v, ok)
	}
}

func TestModelUpdateLengthMismatch(t *testing.T) {
	sel := NewSelect(seededStore(t), "docs")
	err := sel.ModelUpdate(context.Background(), []string{"1", "2"}, "x", "m", 0, []any{1})
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestVariables(t *testing.T) {
	s := seededStore(t)
	sel := NewSelect(s, "$collection")

	if got := sel.Variables(); !reflect.DeepEqual(got, []string{"collection"}) {
		t.Fatalf("expected [collection], got %v", got)
	}
	if _, err := sel.Execute(context.Background()); err == nil {
		t.Fatal("expected execute of unresolved select to fail")
	}

	bound, err := sel.SetVariables(resolverFunc(func(name string) (string, bool) {
		if name == "collection" {
			return "docs", true
		}
		return "", false
	}))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := bound.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}

	_, err = sel.SetVariables(resolverFunc(func(string) (string, bool) { return "", false }))
	if err == nil {
		t.Error("expected unresolvable variable to fail")
	}
}

type resolverFunc func(name string) (string, bool)

func (f resolverFunc) Variable(name string) (string, bool) { return f(name) }

func TestModelCleanup(t *testing.T) {
	s := seededStore(t)
	sel := NewSelect(s, "docs")

	if err := sel.ModelUpdate(context.Background(), []string{"1"}, "x", "add2", 0, []any{3}); err != nil {
		t.Fatal(err)
	}
	if err := sel.ModelCleanup(context.Background(), "add2", document.NewKey("x")); err != nil {
		t.Fatal(err)
	}

	d, _ := s.Get("docs", "1")
	if d.Has("_outputs.x.add2") {
		t.Error("expected model outputs removed")
	}
}

func TestDownloadUpdate(t *testing.T) {
	s := seededStore(t)
	sel := NewSelect(s, "docs")

	if err := sel.DownloadUpdate(context.Background(), "2", "bytes", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	d, _ := s.Get("docs", "2")
	v, _ := d.Get("bytes")
	if !reflect.DeepEqual(v, []byte("payload")) {
		t.Errorf("expected payload stored, got %v", v)
	}
}
