package server

import (
	"errors"
	"net/http"

	"github.com/Tomlord1122/todo-tracker/internal/domain"
)

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	filter, page := listParams(r)

	result, err := s.todoService.ListTodos(r.Context(), ownerID, filter, page)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newListResponse(result, s.store, r.URL))
}

func (s *Server) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	id, ok := todoIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	todo, err := s.todoService.GetTodo(r.Context(), ownerID, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	resp := newTodoResponse(todo, s.store)
	respondWithJSON(w, http.StatusOK, todoEnvelope{Data: &resp})
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())

	in, cover, err := decodeTodoRequest(w, r)
	if err != nil {
		respondWithRequestError(w, r, err)
		return
	}

	todo, err := s.todoService.CreateTodo(r.Context(), ownerID, in, cover)
	if todo == nil {
		respondWithServiceError(w, r, err)
		return
	}

	resp := newTodoResponse(todo, s.store)
	respondWithJSON(w, http.StatusCreated, todoEnvelope{Data: &resp, Warnings: storageWarnings(err)})
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	id, ok := todoIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	in, cover, err := decodeTodoRequest(w, r)
	if err != nil {
		respondWithRequestError(w, r, err)
		return
	}

	todo, err := s.todoService.UpdateTodo(r.Context(), ownerID, id, in, cover)
	if todo == nil {
		respondWithServiceError(w, r, err)
		return
	}

	resp := newTodoResponse(todo, s.store)
	respondWithJSON(w, http.StatusOK, todoEnvelope{Data: &resp, Warnings: storageWarnings(err)})
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	id, ok := todoIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	err := s.todoService.DeleteTodo(r.Context(), ownerID, id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrStorage):
		respondWithJSON(w, http.StatusOK, todoEnvelope{Warnings: storageWarnings(err)})
	default:
		respondWithServiceError(w, r, err)
	}
}
