package firestore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bizledger/api/internal/platform/pagination"
)

func notFoundError(msg string) error {
	return status.Error(codes.NotFound, msg)
}

// Monetary amounts are persisted as canonical decimal strings. Firestore has
// no native decimal type and float64 would reintroduce the rounding drift the
// money pipeline exists to prevent.
func encodeAmount(value decimal.Decimal) string {
	return value.String()
}

func decodeAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode amount %q: %w", raw, err)
	}
	return value, nil
}

// List cursors are (date, docID) pairs so that records sharing a date page
// deterministically. They ride in the shared page token format.
func encodeDateCursor(date time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{date.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeDateCursor(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("malformed cursor")
	}
	tsPart, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", errors.New("malformed cursor timestamp")
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || docID == "" {
		return time.Time{}, "", errors.New("malformed cursor document id")
	}
	ts, err := time.Parse(time.RFC3339Nano, tsPart)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts.UTC(), docID, nil
}
