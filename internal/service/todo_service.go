package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/domain"
	"github.com/Tomlord1122/todo-tracker/internal/logging"
	"github.com/Tomlord1122/todo-tracker/internal/metrics"
	"github.com/Tomlord1122/todo-tracker/internal/repository"
)

// TodoFilter holds the raw listing parameters as the caller supplied them.
type TodoFilter struct {
	Search string `json:"search"`
	// Status is applied only when it is exactly "pending" or "completed".
	Status string `json:"status"`
}

// TodoPage is one page of an owner's todos together with owner-wide counts.
type TodoPage struct {
	Items    []domain.Todo
	PageInfo PageInfo
	// Stats ignore the filter.
	Stats repository.Stats
	// Filters echoes the applied filter so a form can restore its inputs.
	Filters TodoFilter
}

// TodoService defines the operations for managing todos. Every operation acts
// on behalf of ownerID.
type TodoService interface {
	// ListTodos returns one page of the owner's todos, newest first.
	ListTodos(ctx context.Context, ownerID uint, filter TodoFilter, page int) (*TodoPage, error)

	// GetTodo returns a single todo owned by ownerID.
	GetTodo(ctx context.Context, ownerID, id uint) (*domain.Todo, error)

	// CreateTodo validates and persists a new todo. When storing the cover
	// fails the todo is still created, without a cover, and a
	// *domain.StorageError is returned alongside it.
	CreateTodo(ctx context.Context, ownerID uint, in domain.TodoInput, cover *domain.Upload) (*domain.Todo, error)

	// UpdateTodo replaces title, status and note. A non-nil cover replaces
	// the stored cover; a nil cover leaves it untouched. Cover storage
	// failures are returned alongside the updated todo.
	UpdateTodo(ctx context.Context, ownerID, id uint, in domain.TodoInput, cover *domain.Upload) (*domain.Todo, error)

	// DeleteTodo removes the todo and its cover. A cover deletion failure is
	// returned after the record is gone.
	DeleteTodo(ctx context.Context, ownerID, id uint) error
}

type todoService struct {
	repo    repository.TodoRepository
	store   blob.Store
	metrics *metrics.Collector
}

// NewTodoService creates a TodoService. collector may be nil.
func NewTodoService(repo repository.TodoRepository, store blob.Store, collector *metrics.Collector) TodoService {
	return &todoService{
		repo:    repo,
		store:   store,
		metrics: collector,
	}
}

func (s *todoService) ListTodos(ctx context.Context, ownerID uint, filter TodoFilter, page int) (*TodoPage, error) {
	page = normalizePage(page)
	filter.Search = strings.TrimSpace(filter.Search)

	listFilter := repository.ListFilter{Search: filter.Search}
	if status, ok := domain.ParseFilterStatus(filter.Status); ok {
		listFilter.Status = &status
	}

	items, total, err := s.repo.List(ctx, ownerID, listFilter, offsetFor(page), PerPage)
	if err != nil {
		s.logError(ctx, "failed to list todos", "ListTodos", 0, err)
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	stats, err := s.repo.Stats(ctx, ownerID)
	if err != nil {
		s.logError(ctx, "failed to count todos", "ListTodos", 0, err)
		return nil, fmt.Errorf("failed to count todos: %w", err)
	}

	return &TodoPage{
		Items:    items,
		PageInfo: NewPageInfo(page, total, len(items)),
		Stats:    stats,
		Filters:  filter,
	}, nil
}

func (s *todoService) GetTodo(ctx context.Context, ownerID, id uint) (*domain.Todo, error) {
	return s.authorize(ctx, ownerID, id, "GetTodo")
}

func (s *todoService) CreateTodo(ctx context.Context, ownerID uint, in domain.TodoInput, cover *domain.Upload) (*domain.Todo, error) {
	in = normalizeInput(in)
	obj, err := validate(in, cover)
	if err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		OwnerID: ownerID,
		Title:   in.Title,
		Status:  in.ResolvedStatus(),
		Note:    in.Note,
	}

	var storageErr error
	if obj != nil {
		key, err := s.store.Put(ctx, *obj)
		if err != nil {
			storageErr = s.storageFailure(ctx, "CreateTodo", 0, "put", "", err, slog.String("filename", cover.Filename))
		} else {
			todo.Cover = &key
		}
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		s.logError(ctx, "failed to create todo", "CreateTodo", 0, err)
		s.discard(ctx, "CreateTodo", todo.Cover)
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	s.metrics.Mutation("create")

	return todo, storageErr
}

func (s *todoService) UpdateTodo(ctx context.Context, ownerID, id uint, in domain.TodoInput, cover *domain.Upload) (*domain.Todo, error) {
	todo, err := s.authorize(ctx, ownerID, id, "UpdateTodo")
	if err != nil {
		return nil, err
	}

	in = normalizeInput(in)
	obj, err := validate(in, cover)
	if err != nil {
		return nil, err
	}

	todo.Title = in.Title
	todo.Status = in.ResolvedStatus()
	todo.Note = in.Note

	var storageErrs []error
	var stored *string
	if obj != nil {
		oldRemoved := true
		if todo.HasCover() {
			if err := s.store.Delete(ctx, *todo.Cover); err != nil {
				oldRemoved = false
				storageErrs = append(storageErrs, s.storageFailure(ctx, "UpdateTodo", id, "delete", *todo.Cover, err))
			}
		}

		key, err := s.store.Put(ctx, *obj)
		switch {
		case err != nil:
			storageErrs = append(storageErrs, s.storageFailure(ctx, "UpdateTodo", id, "put", "", err, slog.String("filename", cover.Filename)))
			// The old key points nowhere once its blob is gone.
			if oldRemoved {
				todo.Cover = nil
			}
		default:
			todo.Cover = &key
			stored = &key
		}
	}

	if err := s.repo.Update(ctx, todo); err != nil {
		s.discard(ctx, "UpdateTodo", stored)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.logError(ctx, "failed to update todo", "UpdateTodo", id, err)
		return nil, fmt.Errorf("failed to update todo %d: %w", id, err)
	}
	s.metrics.Mutation("update")

	return todo, errors.Join(storageErrs...)
}

func (s *todoService) DeleteTodo(ctx context.Context, ownerID, id uint) error {
	todo, err := s.authorize(ctx, ownerID, id, "DeleteTodo")
	if err != nil {
		return err
	}

	var storageErr error
	if todo.HasCover() {
		if err := s.store.Delete(ctx, *todo.Cover); err != nil {
			storageErr = s.storageFailure(ctx, "DeleteTodo", id, "delete", *todo.Cover, err)
		}
	}

	if err := s.repo.Delete(ctx, todo.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s.logError(ctx, "failed to delete todo", "DeleteTodo", id, err)
		return fmt.Errorf("failed to delete todo %d: %w", id, err)
	}
	s.metrics.Mutation("delete")

	return storageErr
}

// authorize loads the todo and checks that ownerID owns it. Existence is
// checked before ownership.
func (s *todoService) authorize(ctx context.Context, ownerID, id uint, operation string) (*domain.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.logError(ctx, "failed to find todo", operation, id, err)
		return nil, fmt.Errorf("failed to find todo %d: %w", id, err)
	}
	if !todo.Owns(ownerID) {
		logging.FromContext(ctx).WarnContext(ctx, "todo access denied",
			slog.String("operation", operation),
			slog.Uint64("todo_id", uint64(id)),
			slog.Uint64("owner_id", uint64(ownerID)),
		)
		return nil, domain.ErrUnauthorized
	}
	return todo, nil
}

// storageFailure records a blob failure and returns it as a *domain.StorageError.
func (s *todoService) storageFailure(ctx context.Context, operation string, id uint, op, key string, err error, extra ...slog.Attr) error {
	s.metrics.StorageFailure(op)
	attrs := []any{
		slog.String("operation", operation),
		slog.Uint64("todo_id", uint64(id)),
		slog.String("op", op),
		slog.String("key", key),
	}
	for _, a := range extra {
		attrs = append(attrs, a)
	}
	attrs = append(attrs, slog.Any("error", err))
	logging.FromContext(ctx).WarnContext(ctx, "cover storage failed", attrs...)
	return &domain.StorageError{Op: op, Key: key, Err: err}
}

// discard removes a blob stored for a record write that then failed.
func (s *todoService) discard(ctx context.Context, operation string, key *string) {
	if key == nil {
		return
	}
	if err := s.store.Delete(ctx, *key); err != nil {
		_ = s.storageFailure(ctx, operation, 0, "delete", *key, err)
	}
}

func (s *todoService) logError(ctx context.Context, msg, operation string, id uint, err error) {
	attrs := []any{slog.String("operation", operation)}
	if id != 0 {
		attrs = append(attrs, slog.Uint64("todo_id", uint64(id)))
	}
	attrs = append(attrs, slog.Any("error", err))
	logging.FromContext(ctx).ErrorContext(ctx, msg, attrs...)
}

// normalizeInput trims the text fields and turns a blank note into no note.
func normalizeInput(in domain.TodoInput) domain.TodoInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Status = domain.Status(strings.TrimSpace(string(in.Status)))
	if in.Note != nil {
		note := strings.TrimSpace(*in.Note)
		if note == "" {
			in.Note = nil
		} else {
			in.Note = &note
		}
	}
	return in
}

// validate checks the fields and the cover together so every failing field
// is reported at once.
func validate(in domain.TodoInput, cover *domain.Upload) (*blob.Object, error) {
	var verr domain.ValidationError
	if err := in.Validate(); err != nil {
		var fieldErr *domain.ValidationError
		if errors.As(err, &fieldErr) {
			verr.Merge(fieldErr)
		}
	}
	obj, coverErr := inspectCover(cover)
	verr.Merge(coverErr)

	if len(verr.Fields) > 0 {
		return nil, &verr
	}
	return obj, nil
}
