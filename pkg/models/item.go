package models

import "time"

// ItemOverheadBytes is added to the content length of every saved item
const ItemOverheadBytes int64 = 128

// SavedItem represents a stored generation output
type SavedItem struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Category    Category  `json:"category" db:"category"`
	UtilityID   string    `json:"utility_id" db:"utility_id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content,omitempty" db:"-"`
	ContentType string    `json:"content_type" db:"content_type"`
	ObjectKey   string    `json:"object_key" db:"object_key"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ItemSize returns the accounted size for content of the given length
func ItemSize(contentLen int) int64 {
	return int64(contentLen) + ItemOverheadBytes
}
