package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringwire/streamserver/registry"
)

func TestStreamAllowedEmptyPatternAdmitsEverything(t *testing.T) {
	require.True(t, StreamAllowed("", "anything"))
}

func TestStreamAllowedMatchesPattern(t *testing.T) {
	require.True(t, StreamAllowed("^FOO.*", "FOOBAR"))
	require.False(t, StreamAllowed("^FOO.*", "BAZ"))
}

func TestStreamAllowedTreatsInvalidPatternAsAdmit(t *testing.T) {
	require.True(t, StreamAllowed("(unterminated", "anything"))
}

func TestFinishLifecycleReachesClosed(t *testing.T) {
	record := &registry.ClientRecord{Lifecycle: registry.NewLifecycle()}
	record.Lifecycle.SetActive()
	FinishLifecycle(record)
	require.Equal(t, registry.Closed, record.Lifecycle.State())
}
