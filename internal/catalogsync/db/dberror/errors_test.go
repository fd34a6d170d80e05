package dberror

import (
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/assert"
)

func TestFromPg(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, ErrAlreadyExists},
		{"foreign key", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, ErrInvalidReference},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation}, ErrInvalidInput},
		{"other pg", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, ErrDatabase},
		{"plain", errors.New("connection reset"), ErrDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromPg(tt.err, "dataset")
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.NotErrorIs(t, FromPg(errors.New("x"), "dataset"), ErrAlreadyExists)
	assert.Contains(t, FromPg(&pgconn.PgError{Code: pgerrcode.UniqueViolation}, "dataset").Error(), "dataset already exists")
}
