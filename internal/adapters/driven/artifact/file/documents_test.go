package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

func TestWriteDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conversations")
	w := NewDocumentWriter(dir)

	conv := domain.Conversation{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, Content: "how are you"},
	}
	require.NoError(t, w.WriteDocument(context.Background(), "A", conv))

	data, err := os.ReadFile(filepath.Join(dir, "A.json"))
	require.NoError(t, err)
	assert.Equal(t, `[
  {
    "role": "user",
    "content": "hi"
  },
  {
    "role": "assistant",
    "content": "hello"
  },
  {
    "role": "user",
    "content": "how are you"
  }
]
`, string(data))
}

func TestWriteDocument_Empty(t *testing.T) {
	w := NewDocumentWriter(t.TempDir())

	require.NoError(t, w.WriteDocument(context.Background(), "E", nil))

	data, err := os.ReadFile(w.Path("E"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteDocument_PreservesUnicodeAndMarkup(t *testing.T) {
	w := NewDocumentWriter(t.TempDir())
	conv := domain.Conversation{{Role: domain.RoleUser, Content: "café <b>&</b> 你好 🙂"}}

	require.NoError(t, w.WriteDocument(context.Background(), "U", conv))

	data, err := os.ReadFile(w.Path("U"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "café <b>&</b> 你好 🙂"`)
}

func TestWriteDocument_OverwriteIsByteIdentical(t *testing.T) {
	w := NewDocumentWriter(t.TempDir())
	conv := domain.Conversation{{Role: domain.RoleUser, Content: "same"}}

	require.NoError(t, w.WriteDocument(context.Background(), "A", domain.Conversation{{Role: domain.RoleUser, Content: "old, longer content"}}))
	require.NoError(t, w.WriteDocument(context.Background(), "A", conv))
	first, err := os.ReadFile(w.Path("A"))
	require.NoError(t, err)

	require.NoError(t, w.WriteDocument(context.Background(), "A", conv))
	second, err := os.ReadFile(w.Path("A"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotContains(t, string(second), "old")

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteDocument_RejectsUnsafeID(t *testing.T) {
	w := NewDocumentWriter(t.TempDir())

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		err := w.WriteDocument(context.Background(), id, domain.Conversation{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, id)
	}
}

func TestWriteDocument_UnwritableDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	w := NewDocumentWriter(filepath.Join(blocker, "conversations"))
	err := w.WriteDocument(context.Background(), "A", domain.Conversation{})
	assert.Error(t, err)
}

func TestWriteDocument_Concurrent(t *testing.T) {
	w := NewDocumentWriter(t.TempDir())
	ids := []string{"A", "B", "C", "D", "E", "F"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, w.WriteDocument(context.Background(), id, domain.Conversation{{Role: domain.RoleUser, Content: id}}))
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		assert.FileExists(t, w.Path(id))
	}
}
