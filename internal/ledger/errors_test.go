package ledger

import (
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestStorageErr(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{sqlite3.Error{Code: sqlite3.ErrBusy}, ErrConcurrencyConflict},
		{sqlite3.Error{Code: sqlite3.ErrLocked}, ErrConcurrencyConflict},
		{sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrDuplicateReference},
		{errors.New("disk full"), ErrPersistence},
	}
	for _, tc := range cases {
		got := storageErr(tc.err)
		if !errors.Is(got, tc.want) {
			t.Errorf("storageErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
		if !errors.Is(got, tc.err) {
			t.Errorf("storageErr(%v) dropped the cause", tc.err)
		}
	}
	if storageErr(nil) != nil {
		t.Error("nil must stay nil")
	}
}
