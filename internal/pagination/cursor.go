// Package pagination implements the opaque cursor used by the note listing.
// A cursor pins the (created_at, id) position of the last row the client saw,
// so pages stay stable while new notes are submitted.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor is a decoded listing position.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor packs the last row's ID and creation time into an opaque
// base64 token. Returns "" for an empty ID, which callers treat as "no
// further pages".
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a client-supplied cursor. An empty cursor means the
// first page and decodes to nil without error; anything malformed is
// ErrInvalidCursor so the handler can reject it as a bad request.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    parts[0],
		Timestamp: timestamp,
	}, nil
}
