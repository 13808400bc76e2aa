package landing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TableValidation is the bronze validation outcome for one landing table
type TableValidation struct {
	Table      TableRef
	Missing    bool
	RunDate    time.Time
	Partitions int
	Files      int
	Records    int
	Complete   bool
	Problems   []string
}

// OK reports whether the table can be promoted. Missing tables are not failures.
func (v TableValidation) OK() bool {
	return v.Missing || (v.Complete && len(v.Problems) == 0)
}

// ValidationReport aggregates table validations
type ValidationReport struct {
	Tables []TableValidation
}

// Failed counts tables that did not pass
func (r *ValidationReport) Failed() int {
	n := 0
	for _, t := range r.Tables {
		if !t.OK() {
			n++
		}
	}
	return n
}

// Validate checks the newest partition of each table: it must carry a _SUCCESS
// marker, hold at least one data file, and every file must be non-empty JSONL.
func Validate(ctx context.Context, src *FileSource, refs []TableRef) (*ValidationReport, error) {
	report := &ValidationReport{}

	for _, ref := range refs {
		partitions, err := src.Partitions(ctx, ref.System, ref.Entity)
		if err != nil {
			return nil, err
		}

		result := TableValidation{Table: ref, Partitions: len(partitions)}
		if len(partitions) == 0 {
			result.Missing = true
			report.Tables = append(report.Tables, result)
			continue
		}

		latest := partitions[len(partitions)-1]
		result.RunDate = latest.RunDate
		result.Complete = latest.Complete
		result.Files = len(latest.Files)

		if !latest.Complete {
			result.Problems = append(result.Problems, fmt.Sprintf("%s has no %s marker", latest.Dir, SuccessMarker))
		}
		if len(latest.Files) == 0 {
			result.Problems = append(result.Problems, fmt.Sprintf("%s has no data files", latest.Dir))
		}

		for _, key := range latest.Files {
			count, problem, err := validateFile(ctx, src.Store, key)
			if err != nil {
				return nil, err
			}
			result.Records += count
			if problem != "" {
				result.Problems = append(result.Problems, problem)
			}
		}

		report.Tables = append(report.Tables, result)
	}

	return report, nil
}

func validateFile(ctx context.Context, store ObjectStore, key string) (int, string, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return 0, "", err
	}
	defer rc.Close()

	count := 0
	problem := ""
	err = scanLines(rc, key, func(line int64, data []byte) error {
		if !json.Valid(data) {
			if problem == "" {
				problem = fmt.Sprintf("%s: invalid JSON at line %d", key, line)
			}
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Sprintf("%s: %v", key, err), nil
	}
	if count == 0 && problem == "" {
		problem = fmt.Sprintf("%s: file is empty", key)
	}
	return count, problem, nil
}
