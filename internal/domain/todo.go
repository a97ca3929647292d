package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the maximum number of characters allowed in a todo title.
const MaxTitleLength = 255

// Status is the completion state of a Todo.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// IsValid reports whether s is one of the persisted status values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// ParseFilterStatus resolves a status used as a listing filter. Anything other
// than an exact "pending" or "completed" yields ok == false and the caller
// should skip the predicate rather than fail.
func ParseFilterStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.IsValid()
}

// Todo is a task item owned by a single user.
type Todo struct {
	ID        uint      `gorm:"primaryKey"`
	OwnerID   uint      `gorm:"column:user_id;not null;index"`
	Title     string    `gorm:"size:255;not null"`
	Status    Status    `gorm:"size:16;not null;default:'pending';index"`
	Note      *string   `gorm:"type:text"`
	Cover     *string   `gorm:"size:512"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Owns reports whether the todo belongs to ownerID.
func (t *Todo) Owns(ownerID uint) bool {
	return t.OwnerID == ownerID
}

// HasCover reports whether a cover blob key is recorded.
func (t *Todo) HasCover() bool {
	return t.Cover != nil && *t.Cover != ""
}

// TodoInput carries the user-editable fields for create and update.
// An empty Status means "not provided" and resolves to pending.
type TodoInput struct {
	Title  string
	Status Status
	Note   *string
}

// Validate checks the write-path rules. It returns a *ValidationError listing
// every failing field, or nil.
func (in TodoInput) Validate() error {
	fields := make(map[string]string)

	switch {
	case strings.TrimSpace(in.Title) == "":
		fields["title"] = MsgRequired
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		fields["title"] = fmt.Sprintf("must not be greater than %d characters", MaxTitleLength)
	}
	if in.Status != "" && !in.Status.IsValid() {
		fields["status"] = fmt.Sprintf("must be one of: %s, %s; got %q", StatusPending, StatusCompleted, in.Status)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ResolvedStatus returns the status to persist.
func (in TodoInput) ResolvedStatus() Status {
	if in.Status == "" {
		return StatusPending
	}
	return in.Status
}

// Upload is a cover image candidate received from the caller.
type Upload struct {
	// Filename is the client-supplied name, used only in logs. The stored
	// type and extension come from the content.
	Filename string
	Data     []byte
}

// Size returns the upload size in bytes.
func (u *Upload) Size() int64 {
	return int64(len(u.Data))
}
