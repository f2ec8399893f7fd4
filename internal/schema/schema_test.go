package schema

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreNoChange(t *testing.T) {
	assert.NoError(t, ignoreNoChange(nil))
	assert.NoError(t, ignoreNoChange(migrate.ErrNoChange))

	boom := errors.New("boom")
	assert.ErrorIs(t, ignoreNoChange(boom), boom)
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open("../../migrations", "host=127.0.0.1 port=1 user=u dbname=d sslmode=disable connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
}
