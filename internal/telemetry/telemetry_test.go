package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaminalder/timetravel-tic-tac-toe/internal/config"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.Telemetry{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}
