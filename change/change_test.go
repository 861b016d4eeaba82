/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package change

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatAndParseTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 123*int(time.Millisecond), time.FixedZone("UTC+3", 3*60*60))

	formatted := FormatTimestamp(ts)
	require.Equal(t, "2025-01-02T12-04-05-123Z", formatted)

	parsed, err := ParseTimestamp(formatted)
	require.NoError(t, err)
	require.True(t, parsed.Equal(ts), "got %s", parsed)

	for _, invalid := range []string{"", "2025-01-02T12-04-05.123Z", "2025-13-02T12-04-05-123Z", "not-a-timestamp-at-all!!"} {
		_, err = ParseTimestamp(invalid)
		require.Error(t, err, invalid)
	}
}

func TestSplitFileName(t *testing.T) {
	tests := []struct {
		fileName string
		wantTS   time.Time
		wantName string
	}{
		{
			fileName: "2025-01-01T00-00-00-000Z_create_users.sql",
			wantTS:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantName: "create_users",
		},
		{
			fileName: "2025-01-02T10-20-30-456Z_add-index.sql",
			wantTS:   time.Date(2025, 1, 2, 10, 20, 30, 456*int(time.Millisecond), time.UTC),
			wantName: "add-index",
		},
		{
			fileName: "legacy_users.sql",
			wantName: "legacy_users",
		},
		{
			fileName: "2025-01-01T00-00-00-000Z.sql",
			wantName: "2025-01-01T00-00-00-000Z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			ts, name := SplitFileName(tt.fileName, ".sql")
			require.Equal(t, tt.wantName, name)
			require.True(t, tt.wantTS.Equal(ts), "got %s", ts)
		})
	}
}

func TestDefinitionScript(t *testing.T) {
	mig := &Definition{Kind: KindMigration, Forward: "CREATE", Reverse: "DROP"}
	require.Equal(t, "CREATE", mig.Script(DirectionUp))
	require.Equal(t, "DROP", mig.Script(DirectionDown))

	seed := &Definition{Kind: KindSeed, Body: "INSERT"}
	require.Equal(t, "INSERT", seed.Script(DirectionUp))
	require.Empty(t, seed.Script(DirectionDown))
}
