package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKey(t *testing.T) {
	t.Parallel()
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_bookings_active_slot'"}
	cases := map[string]struct {
		err  error
		want bool
	}{
		"duplicate":         {dup, true},
		"wrapped duplicate": {fmt.Errorf("insert booking: %w", dup), true},
		"other mysql error": {&mysql.MySQLError{Number: 1452}, false},
		"plain error":       {errors.New("boom"), false},
		"nil":               {nil, false},
	}
	for name, tc := range cases {
		if got := isDuplicateKey(tc.err); got != tc.want {
			t.Fatalf("%s: got %v, want %v", name, got, tc.want)
		}
	}
}
