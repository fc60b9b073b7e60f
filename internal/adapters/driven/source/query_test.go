package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

func TestValidateTable(t *testing.T) {
	valid := []string{"conversation_logs", "public.conversation_logs", "_t1", "Events"}
	for _, name := range valid {
		assert.NoError(t, ValidateTable(name), name)
	}

	invalid := []string{"", "1logs", "logs; DROP TABLE x", "a.b.c", "logs--", `"quoted"`, "a b"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateTable(name), domain.ErrInvalidInput, name)
	}
}

func TestQuery(t *testing.T) {
	q := Query("conversation_logs", Streams[0], PlaceholderDollar)
	assert.Equal(t, "SELECT message, timestamp FROM conversation_logs WHERE user_id = $1 AND message IS NOT NULL", q)

	q = Query("logs", Streams[1], PlaceholderQuestion)
	assert.Equal(t, "SELECT response, timestamp FROM logs WHERE user_id = ? AND response IS NOT NULL", q)
}

func TestStreams_UserThenAssistant(t *testing.T) {
	assert.Len(t, Streams, 2)
	assert.Equal(t, domain.RoleUser, Streams[0].Role)
	assert.Equal(t, domain.RoleAssistant, Streams[1].Role)
}

func TestWithSSLMode(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		mode string
		want string
	}{
		{"url without sslmode", "postgres://u@host/db", "require", "postgres://u@host/db?sslmode=require"},
		{"url keeps existing", "postgres://u@host/db?sslmode=disable", "require", "postgres://u@host/db?sslmode=disable"},
		{"postgresql scheme", "postgresql://host/db", "verify-full", "postgresql://host/db?sslmode=verify-full"},
		{"keyword form", "host=localhost dbname=db", "require", "host=localhost dbname=db sslmode=require"},
		{"keyword keeps existing", "host=localhost sslmode=disable", "require", "host=localhost sslmode=disable"},
		{"empty mode", "host=localhost", "", "host=localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithSSLMode(tt.dsn, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
