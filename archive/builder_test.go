package archive_test

import (
	"errors"
	"testing"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	store, err := archive.NewBuilder().
		URI("memory://builder").
		Backend(archive.KindMemory).
		Datastore("lasr_archive").
		Build()
	require.NoError(t, err)

	assert.Equal(t, archive.KindMemory, store.Kind())
	assert.Equal(t, "lasr_archive", store.Datastore())
	assert.Equal(t, archive.PolicyPerCall, store.Policy())
}

func TestBuilder_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		builder *archive.Builder
		missing string
	}{
		{"nothing set", archive.NewBuilder(), "uri, backend, datastore"},
		{"no uri", archive.NewBuilder().Backend(archive.KindMemory).Datastore("d"), "uri"},
		{"no backend", archive.NewBuilder().URI("memory://x").Datastore("d"), "backend"},
		{"no datastore", archive.NewBuilder().URI("memory://x").Backend(archive.KindMemory), "datastore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.builder.Build()
			require.Error(t, err)
			assert.Nil(t, store)
			assert.True(t, errors.Is(err, archive.ErrConfigMissing))
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestBuilder_EmptyValuesArePresent(t *testing.T) {
	_, err := archive.NewBuilder().
		URI("").
		Backend(archive.KindMemory).
		Datastore("").
		Build()
	assert.NoError(t, err)
}

func TestBuilder_UnregisteredBackend(t *testing.T) {
	_, err := archive.NewBuilder().
		URI("x").
		Backend(archive.Kind("cassandra")).
		Datastore("d").
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, archive.ErrBackendUnavailable))
}
