package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/message"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls back unless the transaction was already committed
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toConfigData(config any) (sql.NullString, error) {
	switch c := config.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: c, Valid: true}, nil
	case []byte:
		return sql.NullString{String: string(c), Valid: true}, nil
	default:
		p, err := json.Marshal(config)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("marshaling config: %w", err)
		}
		return sql.NullString{String: string(p), Valid: true}, nil
	}
}

// epochBounds returns the time filter, open ends covering every row
func epochBounds(start, end *time.Time) (float64, float64) {
	lo, hi := -math.MaxFloat64, math.MaxFloat64
	if start != nil {
		lo = message.EpochSeconds(*start)
	}
	if end != nil {
		hi = message.EpochSeconds(*end)
	}
	return lo, hi
}
