package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/registry"
	"accessadmin.com/accessadmin/core"
	"accessadmin.com/accessadmin/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `id,national_id,timestamp,direction,terminal
1,111,2025-03-01 07:58:00,IN,GATE-1
2,111,2025-03-01 16:02:00,OUT,GATE-1
3,222,2025-03-01T08:10:00+10:00,,GATE-2
4,222,2025-03-01 12:00:00,,GATE-2
5,222,2025-03-01 12:30:00,,GATE-2
6,999,2025-03-01 09:00:00,IN,GATE-1
`

func brisbane(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)
	return loc
}

func TestParsePunchCSV(t *testing.T) {
	loc := brisbane(t)
	punches, err := ParsePunchCSV(strings.NewReader(export), loc)
	require.NoError(t, err)
	require.Len(t, punches, 6)

	assert.Equal(t, "111", punches[0].NationalID)
	assert.Equal(t, model.DirectionIn, punches[0].Direction)
	assert.Equal(t, "GATE-1", punches[0].Terminal)
	assert.True(t, time.Date(2025, 3, 1, 7, 58, 0, 0, loc).Equal(punches[0].Timestamp))
	assert.True(t, time.Date(2025, 2, 28, 22, 10, 0, 0, time.UTC).Equal(punches[2].Timestamp))
	assert.Equal(t, model.Direction(""), punches[2].Direction)
}

func TestParsePunchCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "short row", input: "1,111\n"},
		{name: "bad timestamp", input: "1,111,yesterday,IN\n"},
		{name: "bad direction", input: "1,111,2025-03-01 07:58:00,SIDEWAYS\n"},
		{name: "missing national id", input: "1,,2025-03-01 07:58:00,IN\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePunchCSV(strings.NewReader(tt.input), time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestInferDirections(t *testing.T) {
	loc := brisbane(t)
	punches, err := ParsePunchCSV(strings.NewReader(export), loc)
	require.NoError(t, err)

	inferred := InferDirections(punches, loc)
	assert.Equal(t, model.DirectionIn, inferred[2].Direction)
	assert.Equal(t, model.DirectionOut, inferred[3].Direction)
	assert.Equal(t, model.DirectionIn, inferred[4].Direction)
	assert.Equal(t, model.Direction(""), punches[2].Direction)
}

func TestImportCSVIsRepeatable(t *testing.T) {
	dm, err := core.OpenSQLite("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	reg := registry.New(dm.DB)
	ctx := context.Background()
	require.NoError(t, reg.CreateIdentity(ctx, &model.Identity{NationalID: "111", RemoteCode: utils.Ptr("111")}))
	require.NoError(t, reg.CreateIdentity(ctx, &model.Identity{NationalID: "222"}))

	im := New(reg, brisbane(t))
	result, err := im.ImportCSV(ctx, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Imported)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], "999")

	result, err = im.ImportCSV(ctx, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 5, result.Existing)

	pending, err := reg.ListPendingLocalEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 5)
	assert.Equal(t, "GATE-1", pending[0].TerminalSN)
}
