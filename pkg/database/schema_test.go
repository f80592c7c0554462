package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for _, stmt := range schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt.query)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	assert.NoError(t, InitSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchemaStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(schema[0].query)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(schema[1].query)).
		WillReturnError(errors.New("permission denied"))

	err = InitSchema(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create research_logs table")
	assert.NoError(t, mock.ExpectationsWereMet())
}
