// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// syncCursor is the decoded form of the opaque pull cursor: the last journal
// seq the client has consumed.
type syncCursor struct {
	Seq int64 `json:"seq"`
}

// DecodeCursor turns the wire cursor into a journal seq. The empty cursor
// means "from the beginning". Anything that is not base64-wrapped JSON with
// a non-negative seq is ErrInvalidCursor.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	var payload syncCursor
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if payload.Seq < 0 {
		return 0, fmt.Errorf("%w: negative seq", ErrInvalidCursor)
	}
	return payload.Seq, nil
}

// EncodeCursor renders a journal seq as the opaque wire cursor.
func EncodeCursor(seq int64) string {
	data, _ := json.Marshal(syncCursor{Seq: seq})
	return base64.StdEncoding.EncodeToString(data)
}
