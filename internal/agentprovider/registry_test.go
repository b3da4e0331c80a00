package agentprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(context.Background(), "does-not-exist", Config{})
	assert.Error(t, err)
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func(ctx context.Context, cfg Config) (Session, error) {
		return NewMockSession(4), nil
	})

	sess, err := r.Create(context.Background(), "mock", Config{})
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, []string{"mock"}, r.Providers())
}

func TestDefaultRegistryHasBothBackends(t *testing.T) {
	r := Default()
	providers := r.Providers()
	assert.Contains(t, providers, "claude-code")
	assert.Contains(t, providers, "opencode")
}
