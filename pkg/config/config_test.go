package config

import (
	"testing"

	"github.com/Compdog-inc/pico-radio/pkg/ntserr"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsEmptyListenAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.ListenAddr = ""
	err := cfg.Validate()
	require.Error(t, err)
	var ve *ntserr.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, ntserr.CodeInvalidArgument, ve.Code())
}

func TestValidateRejectsNonPositiveCacheLengths(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxBinaryCacheLength = 0
	require.Error(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("NT_LISTEN_ADDR", ":9999")
	t.Setenv("NT_MAX_CLIENTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.ListenAddr)
	require.Equal(t, 7, cfg.Server.MaxClients)
}
