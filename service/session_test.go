package service

import (
	"context"
	"errors"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/database"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/transaction"
	"github.com/fulldump/inceptiontx/txerror"
)

func newTestService(t *testing.T) *Service {

	db := database.NewDatabase(&database.Config{})
	AssertNil(db.Load())

	s := NewService(db, nil)

	ctx := context.Background()
	_, err := s.CreateContainer(ctx, "users")
	AssertNil(err)
	AssertNil(s.CreateIndex(ctx, &schema.IndexDefinition{
		Name:      "by-email",
		Container: "users",
		Fields:    []string{"email"},
		Semantics: "unique",
		Sparse:    true,
	}))

	return s
}

func newUser(email string) *record.Record {
	rec := record.New("users")
	rec.Set("email", email)
	return rec
}

func TestSession(t *testing.T) {

	ctx := context.Background()

	Alternative("Save outside a transaction commits", func(a *A) {
		s := newTestService(t)
		session := s.NewSession(nil)
		defer session.Close(ctx)

		alice := newUser("alice@example.com")
		AssertNil(session.Save(ctx, alice))

		AssertEqual(alice.RID.String(), "#1:0")
		AssertEqual(alice.Version, int64(1))
		AssertFalse(session.Transaction().Active())

		stored, err := s.Get(ctx, *alice.RID)
		AssertNil(err)
		AssertEqual(stored.Get("email"), "alice@example.com")

		a.Alternative("Load is served from the cache", func(a *A) {
			loaded, err := session.Load(ctx, *alice.RID)
			AssertNil(err)
			AssertTrue(loaded == alice)
		})

		a.Alternative("Update bumps the version", func(a *A) {
			alice.Set("email", "alicia@example.com")
			AssertNil(session.Save(ctx, alice))
			AssertEqual(alice.Version, int64(2))

			found, err := s.Lookup(ctx, "by-email", "alicia@example.com")
			AssertNil(err)
			AssertEqual(len(found), 1)

			found, err = s.Lookup(ctx, "by-email", "alice@example.com")
			AssertNil(err)
			AssertEqual(len(found), 0)
		})

		a.Alternative("Delete", func(a *A) {
			AssertNil(session.Delete(ctx, alice))

			_, err := s.Get(ctx, record.RID{Container: 1, Position: 0})
			AssertTrue(errors.Is(err, ErrorRecordNotFound))

			_, err = session.Load(ctx, record.RID{Container: 1, Position: 0})
			AssertTrue(errors.Is(err, ErrorRecordNotFound))
		})

		a.Alternative("Unique conflict", func(a *A) {
			err := session.Save(ctx, newUser("alice@example.com"))
			AssertTrue(errors.Is(err, txerror.ErrIndexConstraintViolated))

			c, err := s.GetContainer("users")
			AssertNil(err)
			AssertEqual(c.Total, 1)
		})
	})

	Alternative("Pending changes are visible inside the transaction", func(a *A) {
		s := newTestService(t)
		session := s.NewSession(nil)
		defer session.Close(ctx)

		AssertNil(session.Begin(ctx))

		bob := newUser("bob@example.com")
		AssertNil(session.Save(ctx, bob))
		AssertTrue(bob.RID.IsTemporary())
		AssertEqual(session.Transaction().Level(), 1)

		loaded, err := session.Load(ctx, *bob.RID)
		AssertNil(err)
		AssertTrue(loaded == bob)

		_, err = s.Get(ctx, *bob.RID)
		AssertNotNil(err)

		AssertNil(session.Commit(ctx))
		AssertTrue(bob.RID.IsPersistent())
		AssertEqual(bob.RID.String(), "#1:0")
	})

	Alternative("Nested rollback makes the transaction rollback only", func(a *A) {
		s := newTestService(t)
		session := s.NewSession(nil)
		defer session.Close(ctx)

		AssertNil(session.Begin(ctx))
		AssertNil(session.Save(ctx, newUser("carol@example.com")))

		AssertNil(session.Begin(ctx))
		AssertNil(session.Save(ctx, newUser("dave@example.com")))
		session.Rollback(ctx)

		AssertEqual(session.Transaction().Status(), transaction.StatusRollbacking)

		err := session.Commit(ctx)
		AssertTrue(errors.Is(err, txerror.ErrInvalidState))

		c, err := s.GetContainer("users")
		AssertNil(err)
		AssertEqual(c.Total, 0)
	})

	Alternative("Hooks run until records settle", func(a *A) {
		s := newTestService(t)

		session := s.NewSession(&transaction.HookFuncs{
			BeforeCreate: func(ctx context.Context, rec *record.Record) error {
				rec.Set("active", true)
				return nil
			},
			AfterCreate: func(ctx context.Context, rec *record.Record) error {
				if !rec.Has("welcome") {
					rec.Set("welcome", "hello "+rec.Get("email").(string))
				}
				return nil
			},
		})
		defer session.Close(ctx)

		erin := newUser("erin@example.com")
		AssertNil(session.Save(ctx, erin))
		AssertEqual(session.Transaction().Passes(), 2)

		stored, err := s.Get(ctx, *erin.RID)
		AssertNil(err)
		AssertEqual(stored.Get("active"), true)
		AssertEqual(stored.Get("welcome"), "hello erin@example.com")
	})

	Alternative("Missing container", func(a *A) {
		s := newTestService(t)
		session := s.NewSession(nil)
		defer session.Close(ctx)

		err := session.Save(ctx, record.New("ghosts"))
		AssertTrue(errors.Is(err, ErrorContainerNotFound))
	})
}
