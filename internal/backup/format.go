package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/sirgraph/internal/simulation"
	"github.com/nvandessel/sirgraph/internal/store"
)

// FormatVersion is the bundle version written by Write.
const FormatVersion = 2

// MaxDecompressedSize bounds the payload a bundle may expand to (512MB).
const MaxDecompressedSize = 512 * 1024 * 1024

// Header is the plain-text first line of a bundle.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	RunCount   int       `json:"run_count"`
	RowCount   int       `json:"row_count"`
	Compressed bool      `json:"compressed"`
}

// Entry is one run with everything stored for it. The payload holds one
// JSON-encoded Entry per line.
type Entry struct {
	Run           store.Run                  `json:"run"`
	Series        []simulation.Row           `json:"series"`
	Transmissions []int                      `json:"transmissions"`
	Attraction    []simulation.AttractionRow `json:"attraction"`
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Write encodes entries as a bundle at path. The file appears under its
// final name only once fully written.
func Write(path string, entries []Entry) (*Header, error) {
	var payload bytes.Buffer
	gz := gzip.NewWriter(&payload)
	enc := json.NewEncoder(gz)
	rows := 0
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return nil, fmt.Errorf("encoding run %s: %w", entries[i].Run.ExpIdx, err)
		}
		rows += len(entries[i].Series)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}

	header := &Header{
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC(),
		Checksum:   checksum(payload.Bytes()),
		RunCount:   len(entries),
		RowCount:   rows,
		Compressed: true,
	}
	line, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating bundle: %w", err)
	}
	w := bufio.NewWriter(f)
	w.Write(line)
	w.WriteByte('\n')
	w.Write(payload.Bytes())
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("writing bundle: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("closing bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("publishing bundle: %w", err)
	}
	return header, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", h.Version)
	}
	return &h, nil
}

// ReadHeader returns the header of the bundle at path without touching
// the payload.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// Read verifies the checksum of the bundle at path and decodes every entry.
// The decoded run and row counts must match the header.
func Read(path string) (*Header, []Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}
	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading payload: %w", err)
	}
	if got := checksum(payload); got != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: header %s, payload %s", header.Checksum, got)
	}

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("opening payload: %w", err)
	}
	defer gz.Close()

	lr := &io.LimitedReader{R: gz, N: MaxDecompressedSize + 1}
	dec := json.NewDecoder(lr)
	var entries []Entry
	rows := 0
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if lr.N <= 0 {
				return nil, nil, fmt.Errorf("payload exceeds %d bytes", MaxDecompressedSize)
			}
			return nil, nil, fmt.Errorf("decoding run %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
		rows += len(e.Series)
	}

	if len(entries) != header.RunCount || rows != header.RowCount {
		return nil, nil, fmt.Errorf("bundle holds %d runs and %d rows, header says %d and %d",
			len(entries), rows, header.RunCount, header.RowCount)
	}
	return header, entries, nil
}
