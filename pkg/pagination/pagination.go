package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Page is one slice of a newest-first listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit maps a non-positive limit to DefaultLimit and caps it at MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer asks for one extra row so Build can tell whether another
// page follows.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

type wireCursor struct {
	At time.Time `json:"t"`
	ID uuid.UUID `json:"id"`
}

// EncodeCursor renders an opaque, URL-safe token.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor reverses EncodeCursor. Blank input means first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	if w.At.IsZero() || w.ID == uuid.Nil {
		return nil, errors.New("invalid cursor: missing position")
	}
	return &Cursor{CreatedAt: w.At.UTC(), ID: w.ID}, nil
}

// Scope orders a query newest first and applies the keyset cursor plus one
// buffer row. table qualifies the columns when the query joins.
func Scope(params Params, table string) (func(*gorm.DB) *gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where(
				fmt.Sprintf("(%s < ?) OR (%s = ? AND %s < ?)", col("created_at"), col("created_at"), col("id")),
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
		return db.
			Order(col("created_at") + " DESC").
			Order(col("id") + " DESC").
			Limit(LimitWithBuffer(params.Limit))
	}, nil
}

// Build trims the buffer row fetched by Scope and derives the next cursor.
func Build[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	items := rows[:limit]
	return Page[T]{
		Items:      items,
		NextCursor: EncodeCursor(cursorOf(items[len(items)-1])),
	}
}
