package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nvandessel/quorumlab/internal/models"
)

// Stake file columns.
const (
	ColAddress = "Address"
	ColBalance = "Balance"
)

// LoadStakes reads a stake distribution CSV from path.
func LoadStakes(path string) (*models.StakeDistribution, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadStakes(f, path)
}

// ReadStakes parses Address/Balance rows. Balances may carry thousands
// separators. Rows with a balance of zero or less are kept as dormant accounts.
func ReadStakes(r io.Reader, name string) (*models.StakeDistribution, error) {
	f, err := openCSV(r, name, ColAddress, ColBalance)
	if err != nil {
		return nil, err
	}

	var accounts []models.StakeAccount
	for {
		rec, err := f.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		addr, err := f.field(rec, ColAddress)
		if err != nil {
			return nil, err
		}
		if addr == "" {
			return nil, f.fail(ColAddress, errors.New("empty address"))
		}
		raw, err := f.field(rec, ColBalance)
		if err != nil {
			return nil, err
		}
		balance, err := ParseBalance(raw)
		if err != nil {
			return nil, f.fail(ColBalance, err)
		}
		accounts = append(accounts, models.StakeAccount{Address: addr, Stake: balance})
	}

	dist, err := models.NewStakeDistribution(accounts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return dist, nil
}

// ParseBalance parses a decimal balance, stripping "," separators.
func ParseBalance(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, errors.New("empty balance")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
