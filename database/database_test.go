package database

import (
	"context"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/schema"
)

func TestDatabase_Reopen(t *testing.T) {

	ctx := context.Background()
	dir := t.TempDir()

	db := NewDatabase(&Config{Dir: dir, Codec: "msgpack"})
	AssertEqual(db.GetStatus(), StatusOpening)
	AssertNil(db.Load())
	AssertEqual(db.GetStatus(), StatusOperating)

	id, err := db.CreateContainer(ctx, "users")
	AssertNil(err)
	AssertEqual(id, int32(1))

	AssertNil(db.CreateIndex(ctx, &schema.IndexDefinition{
		Name:      "by-email",
		Container: "users",
		Fields:    []string{"email"},
		Semantics: "unique",
	}))
	AssertNil(db.SetRule(ctx, &schema.Rule{
		Name:      "named",
		Container: "users",
		Condition: map[string]any{"name": map[string]any{"$ne": ""}},
	}))

	AssertNil(db.Stop())
	AssertEqual(db.GetStatus(), StatusClosing)

	reopened := NewDatabase(&Config{Dir: dir, Codec: "msgpack"})
	AssertNil(reopened.Load())
	defer reopened.Stop()

	id, found := reopened.Storage.ContainerID("users")
	AssertTrue(found)
	AssertEqual(id, int32(1))
	AssertEqual(len(reopened.Registry.Indexes("users")), 1)
	AssertEqual(len(reopened.Registry.Rules("users")), 1)

	AssertNil(reopened.DropIndex(ctx, "by-email"))
	AssertNil(reopened.DeleteRule(ctx, "users", "named"))
	AssertEqual(len(reopened.Registry.Indexes("users")), 0)
	AssertEqual(len(reopened.Registry.Rules("users")), 0)
}

func TestDatabase_InMemory(t *testing.T) {

	db := NewDatabase(&Config{})
	AssertNil(db.Load())
	AssertEqual(db.GetStatus(), StatusOperating)

	_, err := db.CreateContainer(context.Background(), "things")
	AssertNil(err)
	AssertEqual(db.Storage.Containers(), []string{"things"})
}

func TestDatabase_UnknownCodec(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir(), Codec: "xml"})
	AssertNotNil(db.Load())
	AssertEqual(db.GetStatus(), StatusClosing)
}
