// Package export writes experiment results to an experiment directory.
//
// CSVSink and ArrowSink are simulation observers. Files that downstream
// tools treat as completion markers are written under a temporary name and
// renamed into place once complete.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/constants"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

// CSVSink writes attraction.csv, sir.csv, ntransmissions.csv and
// elapsed.csv into one experiment directory.
type CSVSink struct {
	dir    string
	series *os.File
	w      *csv.Writer
	rows   int
}

var _ simulation.Observer = (*CSVSink)(nil)

// NewCSVSink creates the directory if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating experiment dir: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// OnInit writes the attraction table and opens the series file.
func (s *CSVSink) OnInit(_ context.Context, setup *simulation.Setup) error {
	records := [][]string{{"vertex", "x", "y", "gradient"}}
	for _, r := range setup.Attraction() {
		records = append(records, []string{
			strconv.Itoa(r.Vertex), formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Gradient),
		})
	}
	if err := WriteCSV(filepath.Join(s.dir, constants.AttractionFile), records); err != nil {
		return err
	}

	f, err := os.Create(s.tmpSeriesPath())
	if err != nil {
		return fmt.Errorf("creating series file: %w", err)
	}
	s.series = f
	s.w = csv.NewWriter(f)
	if err := s.w.Write(constants.SeriesColumns); err != nil {
		return fmt.Errorf("writing series header: %w", err)
	}
	return nil
}

// OnEpoch appends one series row.
func (s *CSVSink) OnEpoch(_ context.Context, state *simulation.EpochState) error {
	if s.w == nil {
		return errors.New("csv sink: OnEpoch before OnInit")
	}
	row := state.Row
	if err := s.w.Write([]string{
		strconv.Itoa(row.T),
		strconv.Itoa(row.S),
		strconv.Itoa(row.I),
		strconv.Itoa(row.R),
		formatFloat(row.OccupancyStd),
	}); err != nil {
		return fmt.Errorf("writing series row t=%d: %w", row.T, err)
	}
	s.rows++
	return nil
}

// OnFinish writes the transmission and elapsed tables and publishes
// sir.csv.
func (s *CSVSink) OnFinish(_ context.Context, result *simulation.Result) error {
	records := [][]string{{"vertex", "ntransmission"}}
	for v, n := range result.Transmissions {
		records = append(records, []string{strconv.Itoa(v), strconv.Itoa(n)})
	}
	if err := WriteCSV(filepath.Join(s.dir, constants.TransmissionsFile), records); err != nil {
		return err
	}
	if err := WriteElapsed(s.dir, result.Elapsed); err != nil {
		return err
	}

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flushing series: %w", err)
	}
	if err := s.series.Close(); err != nil {
		return fmt.Errorf("closing series: %w", err)
	}
	s.series = nil
	if err := os.Rename(s.tmpSeriesPath(), filepath.Join(s.dir, constants.SeriesFile)); err != nil {
		return fmt.Errorf("publishing series: %w", err)
	}
	return nil
}

// Rows returns the number of series rows written so far.
func (s *CSVSink) Rows() int {
	return s.rows
}

// Close discards an unfinished series file. It is a no-op after OnFinish.
func (s *CSVSink) Close() error {
	if s.series == nil {
		return nil
	}
	s.series.Close()
	s.series = nil
	return os.Remove(s.tmpSeriesPath())
}

func (s *CSVSink) tmpSeriesPath() string {
	return filepath.Join(s.dir, constants.SeriesFile+".tmp")
}

// WriteConfigJSON writes the resolved experiment to dir/config.json.
func WriteConfigJSON(dir, expidx string, exp config.Experiment) error {
	doc := struct {
		ExpIdx string `json:"expidx"`
		config.Experiment
	}{expidx, exp}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, constants.ConfigFile), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ReadConfigJSON reads a config.json written by WriteConfigJSON.
func ReadConfigJSON(dir string) (string, config.Experiment, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ConfigFile))
	if err != nil {
		return "", config.Experiment{}, fmt.Errorf("reading config: %w", err)
	}
	doc := struct {
		ExpIdx string `json:"expidx"`
		config.Experiment
	}{Experiment: config.DefaultExperiment()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", config.Experiment{}, fmt.Errorf("parsing config: %w", err)
	}
	return doc.ExpIdx, doc.Experiment, nil
}

// WriteElapsed writes the run time in seconds to dir/elapsed.csv.
func WriteElapsed(dir string, d time.Duration) error {
	return WriteCSV(filepath.Join(dir, constants.ElapsedFile), [][]string{
		{"elapsed"},
		{formatFloat(d.Seconds())},
	})
}

// ReadSeriesCSV reads a sir.csv file.
func ReadSeriesCSV(path string) ([]simulation.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening series: %w", err)
	}
	defer f.Close()
	return decodeSeries(f)
}

func decodeSeries(r io.Reader) ([]simulation.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(constants.SeriesColumns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading series header: %w", err)
	}
	for i, col := range constants.SeriesColumns {
		if header[i] != col {
			return nil, fmt.Errorf("series column %d is %q, want %q", i, header[i], col)
		}
	}

	var rows []simulation.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading series: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("series line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (simulation.Row, error) {
	var (
		row  simulation.Row
		errs []error
		err  error
	)
	row.T, err = strconv.Atoi(rec[0])
	errs = append(errs, err)
	row.S, err = strconv.Atoi(rec[1])
	errs = append(errs, err)
	row.I, err = strconv.Atoi(rec[2])
	errs = append(errs, err)
	row.R, err = strconv.Atoi(rec[3])
	errs = append(errs, err)
	row.OccupancyStd, err = strconv.ParseFloat(rec[4], 64)
	errs = append(errs, err)
	return row, errors.Join(errs...)
}

// WriteCSV writes records to path, replacing any existing file.
func WriteCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
