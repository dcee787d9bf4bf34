package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autonmap/scan-orchestrator/utils"
)

func TestComputeHMACSHA256(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"abc","status":"succeeded"}`)
	sig := utils.ComputeHMACSHA256("secret", body)
	require.Len(t, sig, 64)

	// Deterministic for the same key and bytes.
	require.Equal(t, sig, utils.ComputeHMACSHA256("secret", body))

	// Different key or any mutated byte changes the signature.
	require.NotEqual(t, sig, utils.ComputeHMACSHA256("other", body))
	mutated := append([]byte(nil), body...)
	mutated[len(mutated)-1] ^= 0x01
	require.NotEqual(t, sig, utils.ComputeHMACSHA256("secret", mutated))
}

func TestSecureCompare(t *testing.T) {
	t.Parallel()
	require.True(t, utils.SecureCompare("deadbeef", "deadbeef"))
	require.False(t, utils.SecureCompare("deadbeef", "deadbeee"))
	require.False(t, utils.SecureCompare("deadbeef", "deadbee"))
}
