// Package snowflake reads raw landing tables and the ground-truth seed from
// Snowflake and replaces derived tables through a staging table swap.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cda/internal/identity"
	"cda/internal/landing"
	"cda/internal/observability"
	"cda/internal/tables"
	"cda/pkg/errors"
	"cda/pkg/models"
	"github.com/snowflakedb/gosnowflake"
)

// InsertBatchSize bounds the rows bound into a single INSERT
const InsertBatchSize = 500

const stagingSuffix = "__STAGING"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Service provides Snowflake database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	logger    *observability.Logger
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string // output schema for derived tables
	RawSchema string
	SeedTable string
	Warehouse string
	Role      string
	QueryTag  string
	Timeout   time.Duration
}

// ConfigFromModel builds a service configuration for one tenant. The query tag is only
// set when cost attribution tagging is enabled.
func ConfigFromModel(cfg models.Config, timeout time.Duration) Config {
	c := Config{
		Account:   cfg.Snowflake.Account,
		Username:  cfg.Snowflake.Username,
		Password:  cfg.Snowflake.Password,
		Database:  cfg.Snowflake.Database,
		Schema:    cfg.OutputSchema(),
		RawSchema: cfg.Snowflake.RawSchema,
		SeedTable: cfg.Snowflake.SeedTable,
		Warehouse: cfg.Snowflake.Warehouse,
		Role:      cfg.Snowflake.Role,
		Timeout:   timeout,
	}
	if cfg.Parameters.CostAttributionTag {
		c.QueryTag = cfg.Snowflake.QueryTag
		if c.QueryTag == "" {
			c.QueryTag = "cda:" + cfg.ClientName
		}
	}
	return c
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	required := []struct{ field, value string }{
		{"account", config.Account},
		{"username", config.Username},
		{"password", config.Password},
		{"warehouse", config.Warehouse},
		{"database", config.Database},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigError(r.field+" is required", "snowflake."+r.field)
		}
	}
	identifiers := []struct{ field, value string }{
		{"database", config.Database},
		{"schema", config.Schema},
		{"raw_schema", config.RawSchema},
	}
	for _, id := range identifiers {
		if id.value != "" && !identifierPattern.MatchString(id.value) {
			return errors.ConfigError(fmt.Sprintf("%s %q is not a valid identifier", id.field, id.value), "snowflake."+id.field)
		}
	}
	return nil
}

// DSN renders the driver connection string, carrying the query tag as a session parameter
func (c Config) DSN() (string, error) {
	cfg := &gosnowflake.Config{
		Account:   c.Account,
		User:      c.Username,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
		Params:    map[string]*string{},
	}
	if c.QueryTag != "" {
		tag := c.QueryTag
		cfg.Params["query_tag"] = &tag
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake connection settings")
	}
	return dsn, nil
}

// NewService creates a new Snowflake service
func NewService(config Config, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		config: config,
		logger: logger.WithField("component", "snowflake"),
	}
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := ValidateConfig(s.config); err != nil {
		return err
	}
	dsn, err := s.config.DSN()
	if err != nil {
		return err
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.ConnectionError("Failed to open Snowflake connection", err).
				WithContext("account", s.config.Account)
		}

		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := s.getContext(ctx)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			db.Close()

			if strings.Contains(strings.ToLower(err.Error()), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions(
						"Verify your username and password",
						"Run 'cda setup' to store the password in the keyring again",
					)
			}
			return errors.ConnectionError("Failed to connect to Snowflake", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		s.logger.InfoWithFields("Connected to Snowflake", map[string]interface{}{
			"account":   s.config.Account,
			"warehouse": s.config.Warehouse,
			"query_tag": s.config.QueryTag,
		})
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to close connection")
	}
	s.connected = false
	return nil
}

// TestConnection pings the warehouse, connecting first if needed
func (s *Service) TestConnection(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	pingCtx, cancel := s.getContext(ctx)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// LandingTable returns the fully qualified RAW table for a landing source
func (s *Service) LandingTable(system, entity string) string {
	name := strings.ToUpper(system + "_" + entity)
	return qualify(s.config.Database, s.config.RawSchema, name)
}

// Records implements landing.Source over the RAW schema
func (s *Service) Records(ctx context.Context, system, entity string) ([]landing.RawRecord, error) {
	if err := s.requireConnection(); err != nil {
		return nil, err
	}

	table := s.LandingTable(system, entity)
	query := fmt.Sprintf("SELECT SOURCE_FILE, SOURCE_ROW, INGESTED_AT, PAYLOAD FROM %s ORDER BY INGESTED_AT, SOURCE_FILE, SOURCE_ROW", table)

	queryCtx, cancel := s.getContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, query)
	if err != nil {
		sqlErr := errors.SQLError("Failed to read landing table", query, err).
			WithContext("table", table)
		if sqlErr.Code == errors.ErrCodeSQLObjectNotFound {
			sqlErr.Code = errors.ErrCodeLandingTableMissing
		}
		return nil, sqlErr
	}
	defer rows.Close()

	var records []landing.RawRecord
	for rows.Next() {
		var (
			file    sql.NullString
			row     sql.NullInt64
			at      sql.NullTime
			payload sql.NullString
		)
		if err := rows.Scan(&file, &row, &at, &payload); err != nil {
			return nil, errors.SQLError("Failed to scan landing row", query, err)
		}
		records = append(records, landing.RawRecord{
			SourceFile: file.String,
			RowNumber:  row.Int64,
			IngestedAt: at.Time.UTC(),
			Payload:    []byte(payload.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to read landing table", query, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"table": table,
		"rows":  len(records),
	}).Debug("Read landing table")
	return records, nil
}

// SeedRows reads the ground-truth seed table. Columns are matched by name.
func (s *Service) SeedRows(ctx context.Context) ([]identity.SeedRow, error) {
	if err := s.requireConnection(); err != nil {
		return nil, err
	}
	if s.config.SeedTable == "" {
		return nil, errors.ConfigError("snowflake.seed_table is required", "snowflake.seed_table")
	}

	table := s.config.SeedTable
	if strings.Count(table, ".") < 2 {
		table = s.config.Database + "." + table
	}
	query := "SELECT * FROM " + table

	queryCtx, cancel := s.getContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to read seed table", query, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, errors.SQLError("Failed to read seed columns", query, err)
	}

	var data [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(header))
		ptrs := make([]interface{}, len(header))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.SQLError("Failed to scan seed row", query, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = v.String
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to read seed table", query, err)
	}

	return identity.SeedFromRows(header, data)
}

// EnsureSchema creates the output schema when it does not exist yet
func (s *Service) EnsureSchema(ctx context.Context) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	stmt := "CREATE SCHEMA IF NOT EXISTS " + qualify(s.config.Database, s.config.Schema)
	execCtx, cancel := s.getContext(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(execCtx, stmt); err != nil {
		return errors.SQLError("Failed to create output schema", stmt, err)
	}
	return nil
}

// ReplaceTable loads the table into <T>__STAGING and swaps it with <T>. Any failure
// before the swap leaves the previous table untouched.
func (s *Service) ReplaceTable(ctx context.Context, t *tables.Table) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	if !identifierPattern.MatchString(t.Name) {
		return errors.New(errors.ErrCodeInvalidInput, "Invalid table name").WithContext("table", t.Name)
	}

	target := qualify(s.config.Database, s.config.Schema, t.Name)
	staging := target + stagingSuffix

	execCtx, cancel := s.getContext(ctx)
	defer cancel()

	exec := func(stmt string, args ...interface{}) *errors.AppError {
		if _, err := s.db.ExecContext(execCtx, stmt, args...); err != nil {
			return errors.SQLError("Failed to replace table", stmt, err).WithContext("table", t.Name)
		}
		return nil
	}

	if err := exec(createStatement(staging, t.Columns)); err != nil {
		return err
	}

	for start := 0; start < len(t.Rows); start += InsertBatchSize {
		end := start + InsertBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		stmt, args := insertStatement(staging, t.Columns, t.Rows[start:end])
		if err := exec(stmt, args...); err != nil {
			s.dropStaging(execCtx, staging)
			return err
		}
	}

	if err := exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", target, staging)); err != nil {
		s.dropStaging(execCtx, staging)
		return err
	}
	if err := exec(fmt.Sprintf("ALTER TABLE %s SWAP WITH %s", target, staging)); err != nil {
		s.dropStaging(execCtx, staging)
		err.Code = errors.ErrCodeTableSwapFailed
		return err
	}
	if err := exec("DROP TABLE IF EXISTS " + staging); err != nil {
		s.logger.Warnf("Swapped %s but could not drop %s: %v", target, staging, err)
	}

	s.logger.InfoWithFields("Replaced table", map[string]interface{}{
		"table": target,
		"rows":  len(t.Rows),
	})
	return nil
}

func (s *Service) dropStaging(ctx context.Context, staging string) {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
		s.logger.Warnf("Could not drop %s: %v", staging, err)
	}
}

func (s *Service) requireConnection() error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before querying")
	}
	return nil
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(parent, timeout)
}

func qualify(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

func createStatement(table string, columns []tables.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

func insertStatement(table string, columns []tables.Column, rows [][]interface{}) (string, []interface{}) {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		marks[i] = "?"
	}
	tuple := "(" + strings.Join(marks, ", ") + ")"

	tuples := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(columns))
	for i, row := range rows {
		tuples[i] = tuple
		for _, v := range row {
			args = append(args, bindValue(v))
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(names, ", "), strings.Join(tuples, ", "))
	return stmt, args
}

// bindValue passes dates and timestamps as text; Snowflake casts them on insert
func bindValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return tables.FormatValue(x)
	case int:
		return int64(x)
	default:
		return v
	}
}
