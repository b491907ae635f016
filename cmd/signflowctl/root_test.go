package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signflow/signflow-server/internal/document/service"
)

func TestPrintResultsTable(t *testing.T) {
	var buf bytes.Buffer
	err := printResults(&buf, []service.ImportResult{
		{ItemID: "doc-1", Outcome: service.OutcomeCreated},
		{ItemID: "#1", Outcome: service.OutcomeSkipped},
		{ItemID: "doc-2", Outcome: service.OutcomeFailed, Error: "write failed"},
	}, false)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "ITEM")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "created=1 updated=0 skipped=1 failed=1")
}

func TestPrintResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, []service.ImportResult{{ItemID: "doc-1", Outcome: service.OutcomeUpdated}}, true))
	var got []service.ImportResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "doc-1", got[0].ItemID)
}

func TestImportRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"import", path})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestImportRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"import"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
