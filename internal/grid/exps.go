package grid

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nvandessel/sirgraph/internal/config"
)

const (
	idLength   = 8
	idPrefix   = 2
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Entry is one experiment of a grid.
type Entry struct {
	ExpIdx     string
	Experiment config.Experiment
}

// NewExpID returns an id made of the first two characters of host and six
// random characters from [a-z0-9]. The id is added to taken and never
// collides with an id already there.
func NewExpID(host string, taken map[string]bool) string {
	prefix := []byte(strings.ToLower(host))
	for len(prefix) < idPrefix {
		prefix = append(prefix, 'x')
	}
	prefix = prefix[:idPrefix]
	for i, c := range prefix {
		if !strings.ContainsRune(idAlphabet, rune(c)) {
			prefix[i] = 'x'
		}
	}

	for {
		id := make([]byte, 0, idLength)
		id = append(id, prefix...)
		for len(id) < idLength {
			u := uuid.New()
			id = appendIDChars(id, u[:])
		}
		if s := string(id); !taken[s] {
			taken[s] = true
			return s
		}
	}
}

// idByteLimit is the largest multiple of len(idAlphabet) that fits a byte.
// Bytes at or above it are skipped so every character is equally likely.
const idByteLimit = 256 - 256%len(idAlphabet)

// appendIDChars maps random bytes onto idAlphabet until id reaches
// idLength or src runs out.
func appendIDChars(id, src []byte) []byte {
	for _, b := range src {
		if len(id) == idLength {
			break
		}
		if int(b) >= idByteLimit {
			continue
		}
		id = append(id, idAlphabet[int(b)%len(idAlphabet)])
	}
	return id
}

// AssignIDs labels each experiment with a fresh id.
func AssignIDs(host string, exps []config.Experiment) []Entry {
	taken := make(map[string]bool, len(exps))
	entries := make([]Entry, len(exps))
	for i, e := range exps {
		entries[i] = Entry{ExpIdx: NewExpID(host, taken), Experiment: e}
	}
	return entries
}

// WriteExps writes the experiment list as CSV with an expidx column
// followed by one column per experiment key.
func WriteExps(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating exps file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"expidx"}, config.ExperimentKeys...)); err != nil {
		f.Close()
		return fmt.Errorf("writing exps header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write(append([]string{e.ExpIdx}, e.Experiment.Record()...)); err != nil {
			f.Close()
			return fmt.Errorf("writing exps row %s: %w", e.ExpIdx, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing exps: %w", err)
	}
	return f.Close()
}

// ReadExps reads a file written by WriteExps. Columns other than expidx
// may appear in any order; missing keys take their default values.
func ReadExps(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening exps file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading exps header: %w", err)
	}
	if len(header) == 0 || header[0] != "expidx" {
		return nil, fmt.Errorf("exps file must start with an expidx column")
	}

	var entries []Entry
	seen := make(map[string]bool)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading exps: %w", err)
		}
		exp, err := config.ParseRecord(header[1:], rec[1:])
		if err != nil {
			return nil, fmt.Errorf("exps row %s: %w", rec[0], err)
		}
		if seen[rec[0]] {
			return nil, fmt.Errorf("exps row %s: duplicate expidx", rec[0])
		}
		seen[rec[0]] = true
		entries = append(entries, Entry{ExpIdx: rec[0], Experiment: exp})
	}
	return entries, nil
}
