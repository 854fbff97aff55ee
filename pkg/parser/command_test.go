package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/types"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	t.Run("with swap prefix", func(t *testing.T) {
		req, err := ParseCommand("swap 1 EVMOS to WEVMOS")
		require.NoError(t, err)
		require.Equal(t, &types.SwapRequest{Amount: "1", SourceToken: "EVMOS", DestToken: "WEVMOS"}, req)
	})

	t.Run("symbols keep their case", func(t *testing.T) {
		req, err := ParseCommand("  1,000.5 evmos TO axlUSDC ")
		require.NoError(t, err)
		require.Equal(t, "1,000.5", req.Amount)
		require.Equal(t, "evmos", req.SourceToken)
		require.Equal(t, "axlUSDC", req.DestToken)
	})

	t.Run("arrow separator", func(t *testing.T) {
		req, err := ParseCommand("2 ceUSDC -> WEVMOS")
		require.NoError(t, err)
		require.Equal(t, "ceUSDC", req.SourceToken)
	})

	t.Run("leading dot", func(t *testing.T) {
		req, err := ParseArgs([]string{".5", "EVMOS", "to", "ceUSDC"})
		require.NoError(t, err)
		require.Equal(t, ".5", req.Amount)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{
			"",
			"swap EVMOS to WEVMOS",
			"1 EVMOS WEVMOS",
			"one EVMOS to WEVMOS",
			"1 EVMOS into WEVMOS",
			"1 EV$MOS to WEVMOS",
		} {
			_, err := ParseCommand(in)
			require.ErrorIs(t, err, errUsage, in)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	req, err := ParseCommand("1 EVMOS to evmos")
	require.NoError(t, err)
	require.ErrorContains(t, Validate(req), "cannot swap EVMOS for itself")

	req, err = ParseCommand("1 usdc.axl to axlUSDC")
	require.NoError(t, err)
	require.Error(t, Validate(req))

	req, err = ParseCommand("1 usdc.axl to ceUSDC")
	require.NoError(t, err)
	require.NoError(t, Validate(req))

	req, err = ParseCommand("1.1234567 EVMOS to ceUSDC")
	require.NoError(t, err)
	require.ErrorIs(t, Validate(req), apperrors.ErrInputRejected)

	require.Error(t, Validate(&types.SwapRequest{Amount: "1", SourceToken: "EVMOS"}))
}

func TestCanonicalSymbol(t *testing.T) {
	t.Parallel()

	require.Equal(t, "AXLUSDC", CanonicalSymbol(" usdc.axl "))
	require.Equal(t, "CEUSDC", CanonicalSymbol("USDC.ce"))
	require.Equal(t, "WEVMOS", CanonicalSymbol("wevmos"))
}
