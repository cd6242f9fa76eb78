package watchlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesAndDedupes(t *testing.T) {
	l := New(" aapl", "MSFT", "", "AAPL", "msft ", "goog")
	require.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, l.Symbols())
}

func TestAdd(t *testing.T) {
	l := New(Default...)

	require.NoError(t, l.Add("nflx"))
	require.Equal(t, "NFLX", l.Symbols()[l.Len()-1])

	require.ErrorIs(t, l.Add("  "), ErrEmptySymbol)
	require.ErrorIs(t, l.Add("aapl"), ErrDuplicate)
	require.Equal(t, len(Default)+1, l.Len())
}

func TestRemove(t *testing.T) {
	l := New("AAPL", "GOOGL", "MSFT")

	require.NoError(t, l.Remove("googl"))
	require.Equal(t, []string{"AAPL", "MSFT"}, l.Symbols())
	require.ErrorIs(t, l.Remove("GOOGL"), ErrNotFound)
}

func TestSymbols_ReturnsCopy(t *testing.T) {
	l := New("AAPL")
	s := l.Symbols()
	s[0] = "XXX"
	require.True(t, l.Contains("aapl"))
}

func TestReplace(t *testing.T) {
	var l List
	l.Replace([]string{"tsla", "TSLA", "amd"})
	require.True(t, l.Equal([]string{"TSLA", "AMD"}))
}
