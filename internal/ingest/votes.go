package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
)

// Vote log columns.
const (
	ColSender    = "sender"
	ColStep      = "step"
	ColRound     = "round"
	ColWeight    = "credential_weight"
	ColTimestamp = "timestamp_unix_ns"
	ColIsLate    = "is_late"
)

// LoadVotes reads a vote log CSV from path. See ReadVotes.
func LoadVotes(path string, steps ...constants.Step) (map[constants.Step]*models.VoteLog, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVotes(f, path, steps...)
}

// ReadVotes groups vote rows by step and round. Only the soft and cert step
// codes are recognized; rows of other steps are parsed and then ignored. When
// steps is non-empty, only those steps are kept. Every requested step has an
// entry in the result, possibly empty.
//
// The timestamp_unix_ns and is_late columns are optional. Without them votes
// carry a zero timestamp and are on time.
func ReadVotes(r io.Reader, name string, steps ...constants.Step) (map[constants.Step]*models.VoteLog, error) {
	f, err := openCSV(r, name, ColSender, ColStep, ColRound, ColWeight)
	if err != nil {
		return nil, err
	}

	logs := make(map[constants.Step]*models.VoteLog)
	want := make(map[constants.Step]bool, len(steps))
	for _, s := range steps {
		want[s] = true
		logs[s] = models.NewVoteLog(s)
	}
	hasTime := f.has(ColTimestamp)
	hasLate := f.has(ColIsLate)

	for {
		rec, err := f.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		code, err := intField(f, rec, ColStep)
		if err != nil {
			return nil, err
		}
		sender, err := f.field(rec, ColSender)
		if err != nil {
			return nil, err
		}
		if sender == "" {
			return nil, f.fail(ColSender, errors.New("empty sender"))
		}
		round, err := uintField(f, rec, ColRound)
		if err != nil {
			return nil, err
		}
		weight, err := uintField(f, rec, ColWeight)
		if err != nil {
			return nil, err
		}
		if weight == 0 {
			return nil, f.fail(ColWeight, errors.New("must be positive"))
		}

		v := models.VoteRecord{Sender: sender, Weight: weight}
		if hasTime {
			ns, err := intField(f, rec, ColTimestamp)
			if err != nil {
				return nil, err
			}
			v.Timestamp = time.Unix(0, ns).UTC()
		}
		if hasLate {
			late, err := f.field(rec, ColIsLate)
			if err != nil {
				return nil, err
			}
			v.IsLate = late == "true"
		}

		step, ok := constants.StepFromCode(int(code))
		if !ok || (len(want) > 0 && !want[step]) {
			continue
		}
		vl, ok := logs[step]
		if !ok {
			vl = models.NewVoteLog(step)
			logs[step] = vl
		}
		vl.Add(round, v)
	}
	return logs, nil
}

func intField(f *csvFile, rec []string, c string) (int64, error) {
	s, err := f.field(rec, c)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, f.fail(c, fmt.Errorf("not an integer: %q", s))
	}
	return v, nil
}

func uintField(f *csvFile, rec []string, c string) (uint64, error) {
	s, err := f.field(rec, c)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, f.fail(c, fmt.Errorf("not a non-negative integer: %q", s))
	}
	return v, nil
}
