package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/domain"
	"github.com/Tomlord1122/todo-tracker/internal/service"
)

type todoResponse struct {
	ID        uint    `json:"id"`
	UserID    uint    `json:"user_id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Note      *string `json:"note"`
	Cover     *string `json:"cover"`
	CoverURL  *string `json:"cover_url"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type pageLinkResponse struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Page   *int    `json:"page"`
	Active bool    `json:"active"`
}

type paginationResponse struct {
	CurrentPage int                `json:"current_page"`
	LastPage    int                `json:"last_page"`
	PerPage     int                `json:"per_page"`
	Total       int64              `json:"total"`
	From        *int               `json:"from"`
	To          *int               `json:"to"`
	Links       []pageLinkResponse `json:"links"`
}

type statsResponse struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

type listResponse struct {
	Data       []todoResponse     `json:"data"`
	Pagination paginationResponse `json:"pagination"`
	Stats      statsResponse      `json:"stats"`
	Filters    service.TodoFilter `json:"filters"`
}

// todoEnvelope wraps a single todo. Warnings report cover storage failures
// of a mutation that otherwise succeeded.
type todoEnvelope struct {
	Data     *todoResponse `json:"data,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

func newTodoResponse(todo *domain.Todo, store blob.Store) todoResponse {
	resp := todoResponse{
		ID:        todo.ID,
		UserID:    todo.OwnerID,
		Title:     todo.Title,
		Status:    todo.Status.String(),
		Note:      todo.Note,
		CreatedAt: todo.CreatedAt.Format(time.RFC3339),
		UpdatedAt: todo.UpdatedAt.Format(time.RFC3339),
	}
	if todo.HasCover() {
		resp.Cover = todo.Cover
		coverURL := store.URL(*todo.Cover)
		resp.CoverURL = &coverURL
	}
	return resp
}

// newListResponse renders a page. Link URLs keep the request query and only
// replace the page parameter.
func newListResponse(page *service.TodoPage, store blob.Store, base *url.URL) listResponse {
	data := make([]todoResponse, 0, len(page.Items))
	for i := range page.Items {
		data = append(data, newTodoResponse(&page.Items[i], store))
	}

	info := page.PageInfo
	links := make([]pageLinkResponse, 0, len(info.Links))
	for _, link := range info.Links {
		l := pageLinkResponse{Label: link.Label, Page: link.Page, Active: link.Active}
		if link.Page != nil {
			u := pageURL(base, *link.Page)
			l.URL = &u
		}
		links = append(links, l)
	}

	return listResponse{
		Data: data,
		Pagination: paginationResponse{
			CurrentPage: info.CurrentPage,
			LastPage:    info.LastPage,
			PerPage:     info.PerPage,
			Total:       info.Total,
			From:        info.From,
			To:          info.To,
			Links:       links,
		},
		Stats: statsResponse{
			Total:     page.Stats.Total,
			Completed: page.Stats.Completed,
			Pending:   page.Stats.Pending,
		},
		Filters: page.Filters,
	}
}

func pageURL(base *url.URL, page int) string {
	u := url.URL{Path: base.Path}
	q := base.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// storageWarnings turns the storage failures carried by err into messages
// for the client.
func storageWarnings(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var warnings []string
		for _, e := range joined.Unwrap() {
			warnings = append(warnings, storageWarnings(e)...)
		}
		return warnings
	}

	var serr *domain.StorageError
	if !errors.As(err, &serr) {
		return nil
	}
	switch serr.Op {
	case "put":
		return []string{"The cover image could not be stored."}
	default:
		return []string{fmt.Sprintf("The cover image %s could not be removed.", serr.Key)}
	}
}
