package file

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

func TestWriteMetrics(t *testing.T) {
	w := NewCSVMetricsWriter(t.TempDir())
	table := domain.MetricsTable{
		{ParticipantID: "A", UserTurnCount: 2, UserWordCount: 4, HasConversation: true},
		domain.DegradedRecord("B"),
	}

	require.NoError(t, w.WriteMetrics(context.Background(), table))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "participant_id,user_turn_count,user_word_count,has_conversation\n"+
		"A,2,4,true\n"+
		"B,0,0,false\n", string(data))
}

func TestWriteMetrics_EmptyTable(t *testing.T) {
	w := NewCSVMetricsWriter(t.TempDir())

	require.NoError(t, w.WriteMetrics(context.Background(), nil))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Equal(t, "participant_id,user_turn_count,user_word_count,has_conversation\n", string(data))
}

func TestWriteMetrics_QuotesIDs(t *testing.T) {
	w := NewCSVMetricsWriter(t.TempDir())

	require.NoError(t, w.WriteMetrics(context.Background(), domain.MetricsTable{domain.DegradedRecord("a,b")}))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"a,b\",0,0,false\n")
}

func TestWriteMetrics_Replaces(t *testing.T) {
	w := NewCSVMetricsWriter(t.TempDir())
	ctx := context.Background()

	require.NoError(t, w.WriteMetrics(ctx, domain.MetricsTable{domain.DegradedRecord("A"), domain.DegradedRecord("B")}))
	require.NoError(t, w.WriteMetrics(ctx, domain.MetricsTable{domain.DegradedRecord("C")}))

	data, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "A,")
	assert.Contains(t, string(data), "C,0,0,false")
}

func TestWriteMetrics_Cancelled(t *testing.T) {
	w := NewCSVMetricsWriter(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.WriteMetrics(ctx, nil), context.Canceled)
	assert.NoFileExists(t, w.Path())
}
