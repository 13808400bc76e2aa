package models

import (
	"fmt"
	"strings"
	"time"
)

// Config is the on-disk configuration of one tenant deployment
type Config struct {
	ClientName string     `yaml:"client_name"`
	Snowflake  Snowflake  `yaml:"snowflake"`
	Source     Source     `yaml:"source"`
	Output     Output     `yaml:"output"`
	Seed       Seed       `yaml:"seed"`
	Parameters Parameters `yaml:"parameters"`
	Logging    Logging    `yaml:"logging"`
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"` // literal, or "@keyring"
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	RawSchema string `yaml:"raw_schema"`
	SeedTable string `yaml:"seed_table"`
	Timeout   string `yaml:"timeout"` // e.g. "5m"
	QueryTag  string `yaml:"query_tag"`
}

// Source selects where raw landing records are read from
type Source struct {
	Type    string `yaml:"type"` // snowflake, s3, local
	Path    string `yaml:"path"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// Output selects where derived tables are written
type Output struct {
	Type   string `yaml:"type"` // snowflake, local
	Path   string `yaml:"path"`
	Schema string `yaml:"schema"`
}

type Seed struct {
	Path string `yaml:"path"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// Parameters are the named constants consumed by the transformations.
// They are passed explicitly into every computation.
type Parameters struct {
	SupportRateTier1      float64 `yaml:"support_cost_rate_tier_1_gbp_per_hour"`
	SupportRateTier2      float64 `yaml:"support_cost_rate_tier_2_gbp_per_hour"`
	SupportRateTier3      float64 `yaml:"support_cost_rate_tier_3_gbp_per_hour"`
	SupportRateDefault    float64 `yaml:"support_cost_rate_default_gbp_per_hour"`
	EngineeringRate       float64 `yaml:"engineering_cost_rate_gbp_per_hour"`
	CostAttributionTag    bool    `yaml:"cost_attribution_tag_enabled"`
	LTVMonths             int     `yaml:"ltv_months"`
	CACPlaceholderGBP     float64 `yaml:"cac_placeholder_gbp"`
	HealthTicketPenalty   float64 `yaml:"health_ticket_penalty"`
	HealthDSOCapDays      float64 `yaml:"health_dso_cap_days"`
	DefaultContractMonths int     `yaml:"default_contract_term_months"`
	AsOfDate              string  `yaml:"as_of_date"`
}

// DefaultParameters returns the documented defaults
func DefaultParameters() Parameters {
	return Parameters{
		SupportRateTier1:      25,
		SupportRateTier2:      35,
		SupportRateTier3:      50,
		SupportRateDefault:    30,
		EngineeringRate:       60,
		CostAttributionTag:    true,
		LTVMonths:             36,
		CACPlaceholderGBP:     1000,
		HealthTicketPenalty:   20,
		HealthDSOCapDays:      90,
		DefaultContractMonths: 12,
	}
}

// DefaultConfig returns a configuration with every default filled in
func DefaultConfig() Config {
	return Config{
		ClientName: "acme",
		Snowflake: Snowflake{
			RawSchema: "RAW",
			SeedTable: "SEEDS.GROUND_TRUTH_CUSTOMERS",
			Timeout:   "5m",
		},
		Source:     Source{Type: "local", Path: "./data", Region: "eu-west-2"},
		Output:     Output{Type: "local", Path: "./out"},
		Parameters: DefaultParameters(),
		Logging:    Logging{Level: "info", Format: "json"},
	}
}

// SupportRate returns the hourly rate for a support tier; unknown tiers use the default rate
func (p Parameters) SupportRate(tier int) float64 {
	switch tier {
	case 1:
		return p.SupportRateTier1
	case 2:
		return p.SupportRateTier2
	case 3:
		return p.SupportRateTier3
	default:
		return p.SupportRateDefault
	}
}

// AsOf parses AsOfDate; ok is false when it is unset
func (p Parameters) AsOf() (t time.Time, ok bool, err error) {
	if strings.TrimSpace(p.AsOfDate) == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse("2006-01-02", p.AsOfDate)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("as_of_date must be YYYY-MM-DD: %w", err)
	}
	return t, true, nil
}

// OutputSchema routes derived tables to the tenant schema unless one is set explicitly
func (c Config) OutputSchema() string {
	if c.Output.Schema != "" {
		return c.Output.Schema
	}
	return strings.ToUpper(strings.ReplaceAll(c.ClientName, "-", "_")) + "_MARTS"
}
