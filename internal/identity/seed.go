package identity

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"cda/internal/common"
	"cda/pkg/errors"
)

var seedColumns = map[string]Slot{
	"salesforce_account_id":   SlotSalesforce,
	"stripe_customer_id":      SlotStripe,
	"intacct_customer_id":     SlotIntacct,
	"zendesk_organization_id": SlotZendesk,
	"harvest_client_id":       SlotHarvest,
	"jira_account_key":        SlotJira,
	"mixpanel_company_id":     SlotMixpanel,
}

// LoadSeedFile reads the ground-truth CSV at path
func LoadSeedFile(path string) ([]SeedRow, error) {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSeedInvalid, "Invalid seed path")
	}
	f, err := os.Open(cleaned) // #nosec G304 - operator supplied seed file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileNotFound, "Failed to open ground-truth seed").
			WithContext("path", cleaned).
			WithSuggestions("Set seed.path in the configuration or pass --seed")
	}
	defer f.Close()

	rows, err := ReadSeedCSV(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSeedInvalid, "Failed to read ground-truth seed").
			WithContext("path", cleaned)
	}
	return rows, nil
}

// ReadSeedCSV parses a seed with a header row
func ReadSeedCSV(r io.Reader) ([]SeedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSeedInvalid, "Seed is not valid CSV")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeSeedInvalid, "Seed has no header row")
	}
	return SeedFromRows(records[0], records[1:])
}

// SeedFromRows maps header names to slots. Unknown columns are ignored; rows with
// neither a canonical id nor any foreign id are dropped.
func SeedFromRows(header []string, rows [][]string) ([]SeedRow, error) {
	canonicalCol, nameCol := -1, -1
	slotCols := make(map[int]Slot)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch h {
		case "canonical_id", "canonical_customer_id":
			canonicalCol = i
		case "customer_name", "name":
			nameCol = i
		default:
			if slot, ok := seedColumns[h]; ok {
				slotCols[i] = slot
			}
		}
	}
	if len(slotCols) == 0 {
		return nil, errors.New(errors.ErrCodeSeedInvalid, "Seed has no foreign identifier columns").
			WithContext("header", strings.Join(header, ","))
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	seeds := make([]SeedRow, 0, len(rows))
	for _, row := range rows {
		s := SeedRow{
			CanonicalID:  cell(row, canonicalCol),
			CustomerName: cell(row, nameCol),
		}
		for i, slot := range slotCols {
			s.IDs[slot] = cell(row, i)
		}
		if s.CanonicalID == "" {
			for _, slot := range Slots {
				if s.IDs[slot] != "" {
					s.CanonicalID = "GT:" + s.IDs[slot]
					break
				}
			}
		}
		if s.CanonicalID == "" {
			continue
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}
