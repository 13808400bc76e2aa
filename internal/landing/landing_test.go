package landing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"cda/internal/tables"
	"cda/internal/testutil"
	"cda/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceReadsLatestCompletePartition(t *testing.T) {
	dir := testutil.NewLandingDir(t)
	dir.Write("stripe", "customers", "2025-01-01", "part-0.jsonl", []testutil.Rec{{"id": "cus_old"}}, true)
	dir.Write("stripe", "customers", "2025-01-02", "part-0.jsonl.gz", []testutil.Rec{{"id": "cus_1"}, {"id": "cus_2"}}, true)
	dir.Write("stripe", "customers", "2025-01-03", "part-0.jsonl", []testutil.Rec{{"id": "cus_partial"}}, false)

	store, err := NewDirStore(dir.Root)
	require.NoError(t, err)

	records, err := NewFileSource(store, "").Records(context.Background(), "stripe", "customers")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "stripe/customers/run_date=2025-01-02/part-0.jsonl.gz", records[0].SourceFile)
	assert.Equal(t, int64(1), records[0].RowNumber)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), records[0].IngestedAt)
	assert.JSONEq(t, `{"id":"cus_2"}`, string(records[1].Payload))
}

func TestFileSourceMissingAndIncompleteTables(t *testing.T) {
	dir := testutil.NewLandingDir(t)
	dir.Write("jira", "issues", "2025-01-01", "part-0.jsonl", []testutil.Rec{{"key": "ENG-1"}}, false)

	store, err := NewDirStore(dir.Root)
	require.NoError(t, err)
	src := NewFileSource(store, "")

	_, err = src.Records(context.Background(), "mixpanel", "events")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLandingTableMissing, errors.GetErrorCode(err))

	_, err = src.Records(context.Background(), "jira", "issues")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePartitionIncomplete, errors.GetErrorCode(err))
}

func TestFileSourceSkipsMalformedLines(t *testing.T) {
	dir := testutil.NewLandingDir(t)
	dir.WriteRaw("zendesk", "tickets", "2025-02-01", "part-0.jsonl", []byte("{\"id\":1}\n\nnot json\n{\"id\":2}\n"), true)

	store, err := NewDirStore(dir.Root)
	require.NoError(t, err)

	var skipped []int64
	src := NewFileSource(store, "")
	src.OnMalformed = func(key string, line int64, err error) {
		skipped = append(skipped, line)
	}

	records, err := src.Records(context.Background(), "zendesk", "tickets")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []int64{3}, skipped)
	assert.Equal(t, int64(4), records[1].RowNumber)
}

func TestValidate(t *testing.T) {
	dir := testutil.NewLandingDir(t)
	dir.Write("stripe", "invoices", "2025-01-02", "part-0.jsonl", []testutil.Rec{{"id": "in_1"}, {"id": "in_2"}}, true)
	dir.WriteRaw("zendesk", "tickets", "2025-01-02", "part-0.jsonl", []byte("{\"id\":1}\n{broken\n"), true)
	dir.Write("harvest", "clients", "2025-01-02", "part-0.jsonl", []testutil.Rec{{"id": 1}}, false)
	dir.WriteRaw("jira", "issues", "2025-01-02", "part-0.jsonl", []byte("\n"), true)

	store, err := NewDirStore(dir.Root)
	require.NoError(t, err)

	refs := []TableRef{
		{"stripe", "invoices"},
		{"zendesk", "tickets"},
		{"harvest", "clients"},
		{"jira", "issues"},
		{"mixpanel", "events"},
	}
	report, err := Validate(context.Background(), NewFileSource(store, ""), refs)
	require.NoError(t, err)
	require.Len(t, report.Tables, 5)

	assert.True(t, report.Tables[0].OK())
	assert.Equal(t, 2, report.Tables[0].Records)

	assert.False(t, report.Tables[1].OK())
	assert.Contains(t, report.Tables[1].Problems[0], "invalid JSON at line 2")

	assert.False(t, report.Tables[2].OK())
	assert.Contains(t, report.Tables[2].Problems[0], "_SUCCESS")

	assert.False(t, report.Tables[3].OK())
	assert.Contains(t, report.Tables[3].Problems[0], "file is empty")

	assert.True(t, report.Tables[4].Missing)
	assert.True(t, report.Tables[4].OK())

	assert.Equal(t, 3, report.Failed())
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3StoreBackedSource(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"clients/acme/harvest/projects/run_date=2025-03-01/projects.jsonl": "{\"id\":10}\n{\"id\":11}\n",
		"clients/acme/harvest/projects/run_date=2025-03-01/_SUCCESS":      "{}",
		"clients/other/harvest/projects/run_date=2025-03-02/projects.jsonl": "{\"id\":99}\n",
	}}

	src := NewFileSource(NewS3Store(client, "cda-raw-dev"), "clients/acme")
	records, err := src.Records(context.Background(), "harvest", "projects")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"id":10}`, string(records[0].Payload))
}

func TestDirSinkReplaceTable(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	table := &tables.Table{
		Name: "FCT_COST_EVENTS",
		Columns: []tables.Column{
			{Name: "EVENT_ID", Type: tables.TypeString},
			{Name: "COST_GBP", Type: tables.TypeNumber},
			{Name: "ACTIVITY_DATE", Type: tables.TypeDate},
			{Name: "PROJECT_ID", Type: tables.TypeString},
		},
		Rows: [][]interface{}{
			{"zendesk:1", 35.0, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), nil},
		},
	}

	require.NoError(t, sink.ReplaceTable(context.Background(), table))
	table.Rows = append(table.Rows, []interface{}{"zendesk:2", 25.0, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), "p1"})
	require.NoError(t, sink.ReplaceTable(context.Background(), table))

	data, err := os.ReadFile(sink.Path("FCT_COST_EVENTS"))
	require.NoError(t, err)

	var rows []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-15", rows[0]["ACTIVITY_DATE"])
	assert.Equal(t, 35.0, rows[0]["COST_GBP"])
	assert.Nil(t, rows[0]["PROJECT_ID"])
}

func TestSystemForPrefix(t *testing.T) {
	system, ok := SystemForPrefix("sf")
	assert.True(t, ok)
	assert.Equal(t, SystemSalesforce, system)

	_, ok = SystemForPrefix("netsuite")
	assert.False(t, ok)
}
