package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Pagination is the query-string contract for cursor-paginated listings.
type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=10" validate:"gte=1,lte=250"`
}

const DefaultLimit = 10

// Cursor is the opaque position token handed back to clients. It encodes the
// sort key of the last row of the page.
type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// BuildCursorPage trims an over-fetched result set (limit+1 rows) down to the
// page size and derives the page info from the trimmed slice.
func BuildCursorPage[T any](data []*T, limit int, cursorOf func(*T) Cursor) ([]*T, *PageInfo) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(data) == 0 {
		return data, &PageInfo{HasMore: false}
	}

	hasMore := len(data) > limit
	if hasMore {
		data = data[:limit]
	}

	info := &PageInfo{HasMore: hasMore}
	if hasMore {
		next, err := EncodeCursor(cursorOf(data[len(data)-1]))
		if err == nil {
			info.NextCursor = next
		}
	}

	return data, info
}
