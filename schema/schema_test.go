package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

type recorded []string

func (r *recorded) Record(index string, key any, value *record.RID, op indexlog.Operation) error {
	*r = append(*r, fmt.Sprintf("%s %s %v %s", index, op, key, value))
	return nil
}

func getter(properties map[string]any) func(name string) (any, bool) {
	return func(name string) (any, bool) {
		v, ok := properties[name]
		return v, ok
	}
}

func TestIndexDefinition_Keys(t *testing.T) {

	single := &IndexDefinition{Name: "by-tag", Container: "posts", Fields: []string{"tag"}, Semantics: "non-unique"}

	keys, err := single.Keys(getter(map[string]any{"tag": "go"}))
	AssertNil(err)
	AssertEqual(keys, []any{"go"})

	keys, err = single.Keys(getter(map[string]any{"tag": record.NewList("go", "db", "go")}))
	AssertNil(err)
	AssertEqual(keys, []any{"go", "db"})

	keys, err = single.Keys(getter(map[string]any{}))
	AssertNil(err)
	AssertEqual(keys, []any{nil})

	single.Sparse = true
	keys, err = single.Keys(getter(map[string]any{}))
	AssertNil(err)
	AssertEqual(len(keys), 0)

	composite := &IndexDefinition{Name: "by-author-tag", Container: "posts", Fields: []string{"author", "tag"}, Semantics: "unique"}

	keys, err = composite.Keys(getter(map[string]any{"author": "fulanez", "tag": "go"}))
	AssertNil(err)
	AssertEqual(keys, []any{indexlog.Composite{"fulanez", "go"}})

	keys, err = composite.Keys(getter(map[string]any{"author": "fulanez"}))
	AssertNil(err)
	AssertEqual(keys, []any{indexlog.Composite{"fulanez", nil}})

	_, err = composite.Keys(getter(map[string]any{"author": "fulanez", "tag": []any{"go", "db"}}))
	AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
}

func TestIndexDefinition_Validate(t *testing.T) {

	AssertNil((&IndexDefinition{Name: "a", Container: "c", Fields: []string{"f"}, Semantics: "dictionary"}).Validate())

	invalid := []*IndexDefinition{
		{Container: "c", Fields: []string{"f"}, Semantics: "unique"},
		{Name: "a", Fields: []string{"f"}, Semantics: "unique"},
		{Name: "a", Container: "c", Semantics: "unique"},
		{Name: "a", Container: "c", Fields: []string{"f"}, Semantics: "sometimes"},
	}
	for _, def := range invalid {
		AssertTrue(errors.Is(def.Validate(), txerror.ErrIllegalOperation))
	}
}

func TestRegistry_IndexChanges(t *testing.T) {

	ctx := context.Background()

	registry := NewRegistry()
	AssertNil(registry.AddIndex(&IndexDefinition{Name: "by-email", Container: "users", Fields: []string{"email"}, Semantics: "unique", Sparse: true}))
	AssertNil(registry.AddIndex(&IndexDefinition{Name: "by-tag", Container: "users", Fields: []string{"tags"}, Semantics: "non-unique", Sparse: true}))
	AssertNil(registry.AddIndex(&IndexDefinition{Name: "by-title", Container: "posts", Fields: []string{"title"}, Semantics: "unique"}))

	err := registry.AddIndex(&IndexDefinition{Name: "by-email", Container: "users", Fields: []string{"email"}, Semantics: "unique"})
	AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))

	semantics, found := registry.Semantics("by-tag")
	AssertTrue(found)
	AssertEqual(semantics.String(), "nonunique")

	rec := record.Load(record.RID{Container: 1, Position: 4}, "users", 1, map[string]any{
		"email": "a@example.com",
		"tags":  []any{"x", "y"},
	})
	rec.TrackMultiValues()

	r := &recorded{}
	AssertNil(registry.AfterCreate(ctx, rec, r))
	AssertEqual([]string(*r), []string{
		"by-email put a@example.com #1:4",
		"by-tag put x #1:4",
		"by-tag put y #1:4",
	})

	rec.Set("email", "b@example.com")
	rec.Get("tags").(*record.List).RemoveAt(0)
	rec.Get("tags").(*record.List).Add("z")

	r = &recorded{}
	AssertNil(registry.AfterUpdate(ctx, rec, r))
	AssertEqual([]string(*r), []string{
		"by-email remove a@example.com #1:4",
		"by-email put b@example.com #1:4",
		"by-tag remove x #1:4",
		"by-tag put z #1:4",
	})

	// nothing changed since the last check
	r = &recorded{}
	AssertNil(registry.AfterUpdate(ctx, rec, r))
	AssertEqual(len(*r), 0)

	r = &recorded{}
	AssertNil(registry.AfterDelete(ctx, rec, r))
	AssertEqual([]string(*r), []string{
		"by-email remove b@example.com #1:4",
		"by-tag remove y #1:4",
		"by-tag remove z #1:4",
	})

	AssertTrue(registry.DropIndex("by-tag"))
	AssertFalse(registry.DropIndex("by-tag"))
	AssertEqual(len(registry.Indexes("users")), 1)
	AssertEqual(len(registry.Indexes("")), 2)
}

func TestRegistry_Rules(t *testing.T) {

	ctx := context.Background()

	registry := NewRegistry()
	AssertNil(registry.SetRule(&Rule{
		Name:      "adults",
		Container: "users",
		Condition: map[string]any{"age": map[string]any{"$gt": 17}},
	}))
	AssertNil(registry.SetRule(&Rule{
		Name:      "humans",
		Container: "users",
		Condition: map[string]any{"kind": "human"},
	}))

	adult := record.New("users")
	adult.Set("age", 30)
	adult.Set("kind", "human")
	AssertNil(registry.Validate(ctx, adult))

	child := record.New("users")
	child.Set("age", 12)
	child.Set("kind", "human")
	err := registry.Validate(ctx, child)
	AssertTrue(errors.Is(err, txerror.ErrValidationFailed))

	robot := record.New("users")
	robot.Set("age", 30)
	robot.Set("kind", "robot")
	err = registry.Validate(ctx, robot)
	AssertTrue(errors.Is(err, txerror.ErrValidationFailed))

	// rules of other containers do not apply
	post := record.New("posts")
	post.Set("age", 1)
	AssertNil(registry.Validate(ctx, post))

	AssertTrue(registry.DeleteRule("users", "adults"))
	AssertNil(registry.Validate(ctx, child))
	AssertEqual(len(registry.Rules("users")), 1)

	err = registry.SetRule(&Rule{Name: "empty", Container: "users"})
	AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
}
