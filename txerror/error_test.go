package txerror

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/fulldump/biff"
)

func TestError(t *testing.T) {

	Alternative("Match by code", func(a *A) {
		err := Newf(IllegalOperation, "record %s already deleted", "#1:2")
		AssertTrue(errors.Is(err, ErrIllegalOperation))
		AssertFalse(errors.Is(err, ErrInvalidState))
		AssertEqual(err.Error(), "illegal operation: record #1:2 already deleted")

		a.Alternative("Wrapped", func(a *A) {
			wrapped := fmt.Errorf("commit: %w", err)
			AssertTrue(errors.Is(wrapped, ErrIllegalOperation))
			AssertEqual(CodeOf(wrapped), IllegalOperation)
		})
	})

	Alternative("User data", func(a *A) {
		err := New(IndexConstraintViolated, errors.New("key taken")).WithUserData("email")
		AssertEqual(err.Error(), "index constraint violated: key taken (email)")
	})

	Alternative("Unknown", func(a *A) {
		AssertEqual(CodeOf(errors.New("plain")), Unknown)
		AssertEqual(CodeOf(nil), Unknown)
	})
}
