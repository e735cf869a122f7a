package chess

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *[]byte:
			if v != nil {
				*d = []byte(v.(string))
			}
		case *time.Time:
			*d = v.(time.Time)
		case *sql.NullInt64:
			if v != nil {
				*d = sql.NullInt64{Int64: v.(int64), Valid: true}
			}
		default:
			return errors.New("unexpected destination type")
		}
	}
	return nil
}

func TestScanGame(t *testing.T) {
	ended := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		int64(7), "sess", "hash", "black", "checkmate",
		`["f2f3","e7e5","g2g4","d8h4"]`, `["f3","e5","g4","Qh4#"]`, `[]`, nil,
		"1. f3 e5 2. g4 Qh4# 0-1", ended.Add(-time.Minute), ended,
		int64(60000), nil,
	}}

	g, err := scanGame(row)
	require.NoError(t, err)
	assert.Equal(t, int64(7), g.ID)
	assert.Equal(t, []string{"f3", "e5", "g4", "Qh4#"}, g.MovesSAN)
	assert.Equal(t, 4, g.PlyCount())
	assert.Empty(t, g.CapturedWhite)
	assert.Nil(t, g.CapturedBlack)
	assert.Equal(t, time.Minute, g.Duration)
	assert.Zero(t, g.EngineLatency)
}

func TestScanGameErrors(t *testing.T) {
	_, err := scanGame(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	row := fakeRow{values: []any{
		int64(1), "s", "h", "draw", "stalemate",
		`not json`, `[]`, `[]`, `[]`,
		"", time.Now(), time.Now(), nil, nil,
	}}
	_, err = scanGame(row)
	assert.Error(t, err)
}
