package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

// SeriesSchema returns the Arrow schema of sir.arrow. expidx is stored as
// schema metadata when non-empty.
func SeriesSchema(expidx string) *arrow.Schema {
	var md *arrow.Metadata
	if expidx != "" {
		m := arrow.NewMetadata([]string{"expidx"}, []string{expidx})
		md = &m
	}
	return arrow.NewSchema([]arrow.Field{
		{Name: constants.SeriesColumns[0], Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.SeriesColumns[1], Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.SeriesColumns[2], Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.SeriesColumns[3], Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.SeriesColumns[4], Type: arrow.PrimitiveTypes.Float64},
	}, md)
}

// ArrowSink buffers the time series in column builders and writes it to
// sir.arrow as a single-record IPC file when the run finishes.
type ArrowSink struct {
	dir     string
	mem     memory.Allocator
	schema  *arrow.Schema
	builder *array.RecordBuilder
}

var _ simulation.Observer = (*ArrowSink)(nil)

// NewArrowSink creates a sink writing into dir.
func NewArrowSink(dir string) *ArrowSink {
	return &ArrowSink{dir: dir, mem: memory.NewGoAllocator()}
}

func (s *ArrowSink) OnInit(_ context.Context, setup *simulation.Setup) error {
	s.schema = SeriesSchema(setup.ExpIdx)
	s.builder = array.NewRecordBuilder(s.mem, s.schema)
	return nil
}

func (s *ArrowSink) OnEpoch(_ context.Context, state *simulation.EpochState) error {
	if s.builder == nil {
		return errors.New("arrow sink: OnEpoch before OnInit")
	}
	row := state.Row
	s.builder.Field(0).(*array.Int64Builder).Append(int64(row.T))
	s.builder.Field(1).(*array.Int64Builder).Append(int64(row.S))
	s.builder.Field(2).(*array.Int64Builder).Append(int64(row.I))
	s.builder.Field(3).(*array.Int64Builder).Append(int64(row.R))
	s.builder.Field(4).(*array.Float64Builder).Append(row.OccupancyStd)
	return nil
}

func (s *ArrowSink) OnFinish(_ context.Context, _ *simulation.Result) error {
	rec := s.builder.NewRecord()
	defer rec.Release()

	path := filepath.Join(s.dir, constants.ArrowFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating arrow file: %w", err)
	}
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(s.schema), ipc.WithAllocator(s.mem))
	if err != nil {
		f.Close()
		return fmt.Errorf("opening arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing arrow file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Close releases the builder.
func (s *ArrowSink) Close() error {
	if s.builder != nil {
		s.builder.Release()
		s.builder = nil
	}
	return nil
}

// ReadArrowSeries reads every record of a sir.arrow file and returns the
// expidx stored in its metadata.
func ReadArrowSeries(path string) ([]simulation.Row, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening arrow file: %w", err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, "", fmt.Errorf("opening arrow reader: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	if !schema.Equal(SeriesSchema("")) {
		return nil, "", fmt.Errorf("unexpected arrow schema: %s", schema)
	}
	expidx := ""
	if i := schema.Metadata().FindKey("expidx"); i >= 0 {
		expidx = schema.Metadata().Values()[i]
	}

	var rows []simulation.Row
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, "", fmt.Errorf("reading arrow record %d: %w", i, err)
		}
		ts := rec.Column(0).(*array.Int64)
		ss := rec.Column(1).(*array.Int64)
		is := rec.Column(2).(*array.Int64)
		rs := rec.Column(3).(*array.Int64)
		stds := rec.Column(4).(*array.Float64)
		for j := 0; j < int(rec.NumRows()); j++ {
			rows = append(rows, simulation.Row{
				T:            int(ts.Value(j)),
				S:            int(ss.Value(j)),
				I:            int(is.Value(j)),
				R:            int(rs.Value(j)),
				OccupancyStd: stds.Value(j),
			})
		}
	}
	return rows, expidx, nil
}
