package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".convoharvest", "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)

	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("source.table", "events"))
	require.NoError(t, store.Set("run.concurrency", 4))
	require.NoError(t, store.Set("run.ledger", true))

	assert.Equal(t, "events", store.GetString("source.table"))
	assert.Equal(t, 4, store.GetInt("run.concurrency"))
	assert.True(t, store.GetBool("run.ledger"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("source.driver", "pgx"))
	require.NoError(t, store.Set("output.dir", "data/processed"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[source]")
	assert.Regexp(t, `driver = ['"]pgx['"]`, content)
	assert.Contains(t, content, "[output]")
}

func TestConfigStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("source.dsn", "postgres://localhost/convos"))
	require.NoError(t, store.Set("source.query_timeout_seconds", 45))
	require.NoError(t, store.Set("source.rate_limit", 2.5))
	require.NoError(t, store.Set("kafka.brokers", []string{"a:9092", "b:9092"}))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/convos", reloaded.GetString("source.dsn"))
	assert.Equal(t, 45, reloaded.GetInt("source.query_timeout_seconds"))
	rate, ok := reloaded.Get("source.rate_limit")
	require.True(t, ok)
	assert.InDelta(t, 2.5, rate, 1e-9)
	assert.Equal(t, []string{"a:9092", "b:9092"}, reloaded.GetStringSlice("kafka.brokers"))
}

func TestConfigStore_Load_HandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[source]
driver = "sqlite"
dsn = "events.db"

[roster]
path = "participants.csv"
filter_column = "Finished"
filter_value = "1"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", store.GetString("source.driver"))
	assert.Equal(t, "events.db", store.GetString("source.dsn"))
	assert.Equal(t, "Finished", store.GetString("roster.filter_column"))
}

func TestConfigStore_Load_NonExistent(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Load())
	assert.Equal(t, "", store.GetString("anything"))
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	_, ok := store.Get("source.dsn")
	assert.False(t, ok)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[source\ndsn ="), 0600))

	_, err := NewConfigStore(dir)

	assert.Error(t, err)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("source.dsn", "postgres://user:secret@db/convos"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set("run.concurrency", i))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}

func TestConfigStore_ConflictingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("source", "flat"))
	err = store.Set("source.dsn", "x")

	assert.Error(t, err)
}

func TestConfigStore_GetStringSlice_CommaSeparated(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("kafka.brokers", "a:9092, b:9092,"))

	assert.Equal(t, []string{"a:9092", "b:9092"}, store.GetStringSlice("kafka.brokers"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("run.concurrency", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("run.concurrency")
		}()
	}
	wg.Wait()

	_, ok := store.Get("run.concurrency")
	assert.True(t, ok)
}
