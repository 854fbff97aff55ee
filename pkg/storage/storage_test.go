package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"arbiswap/pkg/types"
)

func TestTokenPairSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewStorage(path)
	require.NoError(t, err)

	_, _, ok, err := s.LoadTokenPair()
	require.NoError(t, err)
	require.False(t, ok)

	in := types.Token{Address: common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"), Symbol: "EVMOS", Name: "Evmos", Decimals: 18}
	out := types.Token{Address: common.HexToAddress("0x15C3Eb3B621d1Bff62CbA1c9536B7c1AE9149b57"), Symbol: "axlUSDC", Name: "Axelar Wrapped USDC", Decimals: 6}
	require.NoError(t, s.SaveTokenPair(in, out))

	reopened, err := NewStorage(path)
	require.NoError(t, err)

	gotIn, gotOut, ok, err := reopened.LoadTokenPair()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, gotIn)
	require.Equal(t, out, gotOut)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	s, err := NewStorage(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)

	require.NoError(t, s.Put("slippage", 1.5))

	var got float64
	ok, err := s.Get("slippage", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.5, got)

	require.NoError(t, s.Delete("slippage"))
	ok, err = s.Get("slippage", &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Delete("never-set"))
}

func TestCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStorage(path)
	require.Error(t, err)
}
