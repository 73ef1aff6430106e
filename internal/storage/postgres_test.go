package storage

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{name: "serialization failure", err: &pq.Error{Code: pgerrcode.SerializationFailure}, conflict: true},
		{name: "deadlock", err: &pq.Error{Code: pgerrcode.DeadlockDetected}, conflict: true},
		{name: "duplicate marker", err: &pq.Error{Code: pgerrcode.UniqueViolation}, conflict: true},
		{name: "check violation", err: &pq.Error{Code: pgerrcode.CheckViolation}, conflict: false},
		{name: "not a postgres error", err: other, conflict: false},
		{name: "no rows", err: ErrNoRows, conflict: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, ErrConflict))

			if !tt.conflict {
				assert.Same(t, tt.err, got)
			}
		})
	}

	assert.NoError(t, mapPostgresError(nil))
}
