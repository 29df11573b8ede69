package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"", "local", "development", "production"} {
		t.Run(env, func(t *testing.T) {
			logger, err := New(env)
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("hello")
		})
	}

	_, err := New("staging")
	assert.Error(t, err)
}
