package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one bundle file in a backup directory.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Runs      int       `json:"runs"`
	Valid     bool      `json:"valid"`
}

// Policy selects the bundles to keep from a newest-first list.
type Policy interface {
	Keep(bundles []Info, now time.Time) []Info
}

// KeepLast keeps the N newest bundles.
type KeepLast int

func (n KeepLast) Keep(bundles []Info, _ time.Time) []Info {
	if n <= 0 {
		return nil
	}
	if len(bundles) <= int(n) {
		return bundles
	}
	return bundles[:n]
}

// KeepWithin keeps bundles created less than the duration ago.
type KeepWithin time.Duration

func (d KeepWithin) Keep(bundles []Info, now time.Time) []Info {
	cutoff := now.Add(-time.Duration(d))
	var keep []Info
	for _, b := range bundles {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// AnyOf keeps a bundle if any of its policies keeps it.
type AnyOf []Policy

func (p AnyOf) Keep(bundles []Info, now time.Time) []Info {
	kept := make(map[string]bool)
	for _, policy := range p {
		for _, b := range policy.Keep(bundles, now) {
			kept[b.Path] = true
		}
	}
	var out []Info
	for _, b := range bundles {
		if kept[b.Path] {
			out = append(out, b)
		}
	}
	return out
}

// List returns the bundles in dir, newest first. Creation time comes from
// the bundle header, falling back to the file's mtime when the header is
// unreadable.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "sirgraph-backup-") || filepath.Ext(name) != FileExt {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{Path: filepath.Join(dir, name), Size: fi.Size(), CreatedAt: fi.ModTime()}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.Runs = h.RunCount
			info.Valid = true
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// Prune deletes the bundles in dir that policy does not keep and returns
// their paths.
func Prune(dir string, policy Policy, now time.Time) ([]string, error) {
	bundles, err := List(dir)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, b := range policy.Keep(bundles, now) {
		keep[b.Path] = true
	}

	var deleted []string
	for _, b := range bundles {
		if keep[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseAge parses "720h" style durations plus day ("30d") and week ("2w")
// suffixes.
func ParseAge(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	day := 24 * time.Hour
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * day, nil
	case 'w':
		return time.Duration(n) * 7 * day, nil
	}
	return 0, fmt.Errorf("unknown age suffix in %q (want h, d or w)", s)
}
