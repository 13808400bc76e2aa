package landing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"cda/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

const (
	// SuccessMarker marks a landing partition as completely uploaded
	SuccessMarker = "_SUCCESS"

	partitionPrefix = "run_date="
	maxLineBytes    = 8 * 1024 * 1024
)

// Partition is one run_date directory of a landing table
type Partition struct {
	RunDate  time.Time
	Dir      string
	Files    []string
	Complete bool
}

// FileSource reads landing tables laid out as
// <prefix>/<system>/<entity>/run_date=YYYY-MM-DD/*.jsonl[.gz]
type FileSource struct {
	Store  ObjectStore
	Prefix string
	// OnMalformed is told about lines that are not valid JSON; they are skipped.
	OnMalformed func(key string, line int64, err error)
}

// NewFileSource creates a file based landing source
func NewFileSource(store ObjectStore, prefix string) *FileSource {
	return &FileSource{Store: store, Prefix: prefix}
}

// Partitions lists the run_date partitions of a table, oldest first
func (s *FileSource) Partitions(ctx context.Context, system, entity string) ([]Partition, error) {
	tablePrefix := joinKey(s.Prefix, system, entity) + "/"
	keys, err := s.Store.List(ctx, tablePrefix)
	if err != nil {
		return nil, errors.SourceError(system, entity, err)
	}

	byDir := make(map[string]*Partition)
	for _, key := range keys {
		dir, file := path.Split(key)
		dir = strings.TrimSuffix(dir, "/")
		runDate, ok := parseRunDate(path.Base(dir))
		if !ok {
			continue
		}
		p, exists := byDir[dir]
		if !exists {
			p = &Partition{RunDate: runDate, Dir: dir}
			byDir[dir] = p
		}
		switch {
		case file == SuccessMarker:
			p.Complete = true
		case isDataFile(file):
			p.Files = append(p.Files, key)
		}
	}

	partitions := make([]Partition, 0, len(byDir))
	for _, p := range byDir {
		sort.Strings(p.Files)
		partitions = append(partitions, *p)
	}
	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i].RunDate.Before(partitions[j].RunDate)
	})
	return partitions, nil
}

// LatestComplete returns the newest partition holding a success marker
func LatestComplete(partitions []Partition) (Partition, bool) {
	for i := len(partitions) - 1; i >= 0; i-- {
		if partitions[i].Complete {
			return partitions[i], true
		}
	}
	return Partition{}, false
}

// Records reads the latest complete partition of a table
func (s *FileSource) Records(ctx context.Context, system, entity string) ([]RawRecord, error) {
	partitions, err := s.Partitions(ctx, system, entity)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, errors.New(errors.ErrCodeLandingTableMissing, "Landing table has no partitions").
			WithContext("table", system+"/"+entity)
	}

	latest, ok := LatestComplete(partitions)
	if !ok {
		return nil, errors.New(errors.ErrCodePartitionIncomplete, "No landing partition carries a _SUCCESS marker").
			WithContext("table", system+"/"+entity).
			WithSuggestions("Re-run the upload for this table", "Run 'cda validate' to inspect the partitions")
	}

	var records []RawRecord
	for _, key := range latest.Files {
		fileRecords, err := s.readFile(ctx, key, latest.RunDate)
		if err != nil {
			return nil, errors.SourceError(system, entity, err).WithContext("key", key)
		}
		records = append(records, fileRecords...)
	}
	return records, nil
}

func (s *FileSource) readFile(ctx context.Context, key string, ingestedAt time.Time) ([]RawRecord, error) {
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []RawRecord
	err = scanLines(rc, key, func(line int64, data []byte) error {
		if !json.Valid(data) {
			if s.OnMalformed != nil {
				s.OnMalformed(key, line, fmt.Errorf("invalid JSON"))
			}
			return nil
		}
		payload := make(json.RawMessage, len(data))
		copy(payload, data)
		records = append(records, RawRecord{
			SourceFile: key,
			RowNumber:  line,
			IngestedAt: ingestedAt,
			Payload:    payload,
		})
		return nil
	})
	return records, err
}

// scanLines calls fn for every non-blank line, numbering lines from 1 as they appear in the file
func scanLines(r io.Reader, key string, fn func(line int64, data []byte) error) error {
	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var line int64
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseRunDate(dir string) (time.Time, bool) {
	if !strings.HasPrefix(dir, partitionPrefix) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", strings.TrimPrefix(dir, partitionPrefix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isDataFile(name string) bool {
	return strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.gz")
}
