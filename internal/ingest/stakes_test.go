package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/quorumlab/internal/models"
)

func TestReadStakes(t *testing.T) {
	in := `Address,Balance
AAA,"1,000,000.5"
BBB,10000
CCC,1
ZERO,0
NEG,-5
`
	dist, err := ReadStakes(strings.NewReader(in), "stakes.csv")
	require.NoError(t, err)

	assert.Equal(t, 3, dist.Len())
	assert.InDelta(t, 1010001.5, dist.TotalStake(), 1e-9)
	ranked := dist.Ranked()
	assert.Equal(t, "AAA", ranked[0].Address)
	assert.InDelta(t, 1000000.5, ranked[0].Stake, 1e-9)

	dormant := dist.Dormant()
	require.Len(t, dormant, 2)
	assert.Equal(t, "ZERO", dormant[0].Address)
	assert.Equal(t, "NEG", dormant[1].Address)
}

func TestReadStakes_ExtraColumnsAndOrder(t *testing.T) {
	in := "Rank,Balance,Address\n1,50,X\n2,25,Y\n"
	dist, err := ReadStakes(strings.NewReader(in), "stakes.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, dist.Len())
	assert.InDelta(t, 75.0, dist.TotalStake(), 0)
}

func TestReadStakes_FormatErrors(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantRow   int
		wantField string
	}{
		{"empty file", "", 1, ""},
		{"missing balance column", "Address,Stake\nA,1\n", 1, ColBalance},
		{"missing address column", "Balance\n1\n", 1, ColAddress},
		{"bad number", "Address,Balance\nA,1\nB,lots\n", 3, ColBalance},
		{"empty balance", "Address,Balance\nA,\n", 2, ColBalance},
		{"empty address", "Address,Balance\n,5\n", 2, ColAddress},
		{"infinite", "Address,Balance\nA,Inf\n", 2, ColBalance},
		{"short row", "Address,Balance\nA\n", 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStakes(strings.NewReader(tt.in), "stakes.csv")
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrFormat), "got %v", err)

			var fe *models.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "stakes.csv", fe.File)
			assert.Equal(t, tt.wantRow, fe.Row)
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestReadStakes_DuplicateAddress(t *testing.T) {
	_, err := ReadStakes(strings.NewReader("Address,Balance\nA,1\nA,2\n"), "stakes.csv")
	assert.True(t, errors.Is(err, models.ErrDomain), "got %v", err)
	assert.Contains(t, err.Error(), "stakes.csv")
}

func TestLoadStakes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakes.csv")
	require.NoError(t, os.WriteFile(path, []byte("Address,Balance\nA,3\n"), 0o600))

	dist, err := LoadStakes(path)
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Len())

	_, err = LoadStakes(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseBalance(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12", 12, false},
		{" 1,234.5 ", 1234.5, false},
		{"0", 0, false},
		{"-3", -3, false},
		{"", 0, true},
		{"NaN", 0, true},
		{"12abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBalance(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 0, tt.in)
	}
}
