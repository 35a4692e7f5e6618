package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPendingAfter(t *testing.T) {
	names := []string{"000001_create_invoices", "000002_add_notes", "000003_index_due_date", "readme"}

	tests := []struct {
		name    string
		version uint
		want    []string
	}{
		{"nothing applied", 0, []string{"000001_create_invoices", "000002_add_notes", "000003_index_due_date"}},
		{"partially applied", 2, []string{"000003_index_due_date"}},
		{"fully applied", 3, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pendingAfter(names, tt.version))
		})
	}
}

func TestSourceFS_Embedded(t *testing.T) {
	names, err := ListMigrations(SourceFS(""))
	require.NoError(t, err)
	assert.Contains(t, names, "000001_create_invoices")
}

func TestSourceFS_Directory(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateMigration(dir, "add_notes", "")
	require.NoError(t, err)

	names, err := ListMigrations(SourceFS(dir))
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, []string{names[0]}, pendingAfter(names, 0))
}

func TestZapMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &zapMigrateLogger{log: zap.New(core).Sugar()}

	l.Printf("Start buffering %d/u %s\n", 1, "create_invoices")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Start buffering 1/u create_invoices", logs.All()[0].Message)
	assert.False(t, l.Verbose())

	debugCore, _ := observer.New(zapcore.DebugLevel)
	assert.True(t, (&zapMigrateLogger{log: zap.New(debugCore).Sugar()}).Verbose())
}
