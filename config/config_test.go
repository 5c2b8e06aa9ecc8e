package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tasklab/tasklab/config"
)

type sample struct {
	N int `validate:"required,gte=1"`
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, config.Validate(sample{N: 1}))
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	err := config.Validate(sample{N: 0})
	require.ErrorIs(t, err, config.ErrConfig)
}
