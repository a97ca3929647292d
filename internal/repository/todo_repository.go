package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-tracker/internal/domain"
)

// ListFilter holds the resolved listing predicates. A zero value matches
// every todo of the owner.
type ListFilter struct {
	// Search is matched case-insensitively as a substring of title or note.
	Search string
	// Status restricts the listing to one status when non-nil.
	Status *domain.Status
}

// Stats are owner-wide counts, independent of any listing filter.
type Stats struct {
	Total     int64
	Completed int64
	Pending   int64
}

// TodoRepository defines the record store operations for todos. It does not
// enforce ownership on single-record operations; callers do.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, ownerID uint, filter ListFilter, offset, limit int) ([]domain.Todo, int64, error)
	Stats(ctx context.Context, ownerID uint) (Stats, error)
}

type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a TodoRepository backed by gorm.
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).First(&todo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find todo %d: %w", id, err)
	}
	return &todo, nil
}

// Update writes every mutable column, including cleared ones, and refreshes
// UpdatedAt. The id, owner and creation time are never touched.
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	result := r.db.WithContext(ctx).
		Model(todo).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(todo)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update todo %d: %w", todo.ID, err)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete permanently removes the record.
func (r *gormTodoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Todo{}, id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete todo %d: %w", id, err)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns one window of the owner's filtered todos, newest first, and
// the size of the whole filtered set. Search relies on a Unicode-aware LOWER;
// SQLite connections must come from database.SQLite.
func (r *gormTodoRepository) List(ctx context.Context, ownerID uint, filter ListFilter, offset, limit int) ([]domain.Todo, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Todo{}).Where("user_id = ?", ownerID)

	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(note) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count todos: %w", err)
	}

	todos := make([]domain.Todo, 0, limit)
	if total == 0 || int64(offset) >= total {
		return todos, total, nil
	}

	err := q.Order("created_at DESC").Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&todos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, total, nil
}

func (r *gormTodoRepository) Stats(ctx context.Context, ownerID uint) (Stats, error) {
	var rows []struct {
		Status domain.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count todos by status: %w", err)
	}

	var stats Stats
	for _, row := range rows {
		switch row.Status {
		case domain.StatusCompleted:
			stats.Completed = row.Count
		case domain.StatusPending:
			stats.Pending = row.Count
		}
	}
	stats.Total = stats.Completed + stats.Pending
	return stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using '\' as the
// escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
