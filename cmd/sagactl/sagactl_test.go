package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog/sqlite"
)

func seedLog(t *testing.T, orderID string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saga.db")
	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	sagalog.Record(ctx, repo, orderID, sagalog.StatusStarted, "Payment_Requested", nil)
	sagalog.Record(ctx, repo, orderID, sagalog.StatusFailed, "Order_Cancelled", nil, "Insufficient credit")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHistoryPrintsEveryEntry(t *testing.T) {
	orderID := uuid.NewString()
	db := seedLog(t, orderID)

	out, err := execute(t, "history", orderID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Payment_Requested")
	assert.Contains(t, out, "Order_Cancelled")
	assert.Contains(t, out, `["Insufficient credit"]`)
}

func TestLatestPrintsLastEntry(t *testing.T) {
	orderID := uuid.NewString()
	db := seedLog(t, orderID)

	out, err := execute(t, "latest", orderID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "FAILED")
	assert.NotContains(t, out, "Payment_Requested")
}

func TestHistoryRejectsBadInput(t *testing.T) {
	db := seedLog(t, uuid.NewString())

	_, err := execute(t, "history", "not-a-uuid", "--db", db)
	assert.ErrorContains(t, err, "invalid order id")

	_, err = execute(t, "history", uuid.NewString(), "--db", db)
	assert.ErrorContains(t, err, "no saga log")

	t.Setenv("SAGA_LOG_PATH", "")
	_, err = execute(t, "history", uuid.NewString())
	assert.ErrorContains(t, err, "no saga log")
}

func TestMigrateNeedsKnownService(t *testing.T) {
	_, err := execute(t, "migrate", "--service", "inventory", "--dsn", "postgres://x")
	assert.ErrorContains(t, err, "unknown schema")
}
