package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cogwheel-Validator/spectra-lease/store/postgres"
	"github.com/Cogwheel-Validator/spectra-lease/store/storetest"
)

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("ORCHESTRATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ORCHESTRATOR_TEST_POSTGRES_DSN not set")
	}

	s, err := postgres.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()

	storetest.RunContract(t, s)
}
