package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadEnvFile_ParsesLines(t *testing.T) {
	keys := []string{"CH_TEST_PLAIN", "CH_TEST_EXPORTED", "CH_TEST_DOUBLE", "CH_TEST_SINGLE", "CH_TEST_EQUALS"}
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	path := writeEnvFile(t, `
# comment
CH_TEST_PLAIN=plain
export CH_TEST_EXPORTED = exported
CH_TEST_DOUBLE="double quoted"
CH_TEST_SINGLE='single quoted'
CH_TEST_EQUALS=postgres://u:p@h/db?sslmode=require
=novalue
not a pair
`)

	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "plain", os.Getenv("CH_TEST_PLAIN"))
	assert.Equal(t, "exported", os.Getenv("CH_TEST_EXPORTED"))
	assert.Equal(t, "double quoted", os.Getenv("CH_TEST_DOUBLE"))
	assert.Equal(t, "single quoted", os.Getenv("CH_TEST_SINGLE"))
	assert.Equal(t, "postgres://u:p@h/db?sslmode=require", os.Getenv("CH_TEST_EQUALS"))
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	t.Setenv("CH_TEST_EXISTING", "from-process")

	path := writeEnvFile(t, "CH_TEST_EXISTING=from-file\n")
	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "from-process", os.Getenv("CH_TEST_EXISTING"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadEnvFileCandidates_WorkingDirectory(t *testing.T) {
	t.Setenv("CH_TEST_CWD", "")
	require.NoError(t, os.Unsetenv("CH_TEST_CWD"))
	t.Setenv(EnvFileVar, "")
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CH_TEST_CWD=yes\n"), 0600))
	t.Chdir(dir)

	LoadEnvFileCandidates()

	assert.Equal(t, "yes", os.Getenv("CH_TEST_CWD"))
}

func TestTrimOptionalQuotes(t *testing.T) {
	assert.Equal(t, "a", trimOptionalQuotes(`"a"`))
	assert.Equal(t, "a", trimOptionalQuotes(`'a'`))
	assert.Equal(t, `"a'`, trimOptionalQuotes(`"a'`))
	assert.Equal(t, `"`, trimOptionalQuotes(`"`))
}
