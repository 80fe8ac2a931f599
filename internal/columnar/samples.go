// Package columnar writes and reads per-trial simulation samples as Apache
// Arrow IPC files, one record batch per step.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// Column names.
const (
	ColStep   = "step"
	ColTrial  = "trial"
	ColVoters = "voters"
)

// Schema metadata keys.
const (
	MetaSampler = "quorumlab.sampler"
	MetaSeed    = "quorumlab.seed"
	MetaWorkers = "quorumlab.workers"
	MetaPolicy  = "quorumlab.unreached_policy"
)

// StepSamples is the per-trial voter counts of one simulated step.
type StepSamples struct {
	Step    constants.Step
	Samples []int
}

// Header is file-level metadata describing how the samples were produced.
type Header struct {
	Sampler string
	Seed    uint64
	Workers int
	Policy  string
}

func schema(h Header) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaSampler, MetaSeed, MetaWorkers, MetaPolicy},
		[]string{h.Sampler, strconv.FormatUint(h.Seed, 10), strconv.Itoa(h.Workers), h.Policy},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: ColStep, Type: arrow.BinaryTypes.String},
		{Name: ColTrial, Type: arrow.PrimitiveTypes.Int64},
		{Name: ColVoters, Type: arrow.PrimitiveTypes.Int64},
	}, &md)
}

// WriteSamplesFile writes steps to path, replacing any existing file.
func WriteSamplesFile(path string, h Header, steps []StepSamples) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create samples file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close samples file: %w", cerr)
		}
	}()
	return WriteSamples(f, h, steps)
}

// WriteSamples encodes steps as an Arrow IPC file to w.
func WriteSamples(w io.WriteSeeker, h Header, steps []StepSamples) error {
	mem := memory.NewGoAllocator()
	sc := schema(h)

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(sc), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to open arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	for _, s := range steps {
		stepB := b.Field(0).(*array.StringBuilder)
		trialB := b.Field(1).(*array.Int64Builder)
		votersB := b.Field(2).(*array.Int64Builder)
		stepB.Reserve(len(s.Samples))
		trialB.Reserve(len(s.Samples))
		votersB.Reserve(len(s.Samples))
		for i, v := range s.Samples {
			stepB.Append(string(s.Step))
			trialB.Append(int64(i))
			votersB.Append(int64(v))
		}

		rec := b.NewRecord()
		err := fw.Write(rec)
		rec.Release()
		if err != nil {
			fw.Close()
			return fmt.Errorf("failed to write %s samples: %w", s.Step, err)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finish arrow file: %w", err)
	}
	return nil
}

// ReadSamplesFile reads a file written by WriteSamplesFile.
func ReadSamplesFile(path string) (Header, []StepSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to open samples file: %w", err)
	}
	defer f.Close()
	return ReadSamples(f)
}

// ReadSamples decodes an Arrow IPC samples file. Record batches of the same
// step are merged in file order.
func ReadSamples(r ipc.ReadAtSeeker) (Header, []StepSamples, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to open arrow reader: %w", err)
	}
	defer fr.Close()

	h, err := parseHeader(fr.Schema())
	if err != nil {
		return Header{}, nil, err
	}

	var out []StepSamples
	index := map[constants.Step]int{}
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return Header{}, nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		if rec.NumCols() != 3 {
			return Header{}, nil, fmt.Errorf("record %d: expected 3 columns, got %d", i, rec.NumCols())
		}
		steps, ok1 := rec.Column(0).(*array.String)
		voters, ok2 := rec.Column(2).(*array.Int64)
		if !ok1 || !ok2 {
			return Header{}, nil, errors.New("unexpected column types in samples file")
		}

		for j := 0; j < int(rec.NumRows()); j++ {
			step := constants.Step(steps.Value(j))
			k, ok := index[step]
			if !ok {
				k = len(out)
				index[step] = k
				out = append(out, StepSamples{Step: step})
			}
			out[k].Samples = append(out[k].Samples, int(voters.Value(j)))
		}
	}
	return h, out, nil
}

func parseHeader(sc *arrow.Schema) (Header, error) {
	md := sc.Metadata()
	get := func(key string) string {
		if i := md.FindKey(key); i >= 0 {
			return md.Values()[i]
		}
		return ""
	}

	h := Header{Sampler: get(MetaSampler), Policy: get(MetaPolicy)}
	if v := get(MetaSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Header{}, fmt.Errorf("bad %s metadata %q: %w", MetaSeed, v, err)
		}
		h.Seed = seed
	}
	if v := get(MetaWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Header{}, fmt.Errorf("bad %s metadata %q: %w", MetaWorkers, v, err)
		}
		h.Workers = n
	}
	return h, nil
}
