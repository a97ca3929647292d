package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/todo-tracker/internal/domain"
	"github.com/Tomlord1122/todo-tracker/internal/service"
)

const (
	// maxBodySize caps request bodies. A multipart body over the cap is
	// reported as an oversized cover; other bodies fail with 413.
	maxBodySize      = 8 << 20
	maxMultipartForm = 4 << 20
)

// errBadRequest marks request decoding failures reported as 400.
var errBadRequest = errors.New("bad request")

type todoRequest struct {
	Title  string  `json:"title"`
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

// decodeTodoRequest reads the todo fields and optional cover from a
// multipart, urlencoded or JSON body.
func decodeTodoRequest(w http.ResponseWriter, r *http.Request) (domain.TodoInput, *domain.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartForm); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return domain.TodoInput{}, nil, &domain.ValidationError{Fields: map[string]string{"cover": service.MsgCoverSize}}
			}
			return domain.TodoInput{}, nil, formError(err)
		}
		in := formInput(r)
		upload, err := formUpload(r)
		return in, upload, err
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return domain.TodoInput{}, nil, formError(err)
		}
		return formInput(r), nil, nil
	default:
		var req todoRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			return domain.TodoInput{}, nil, err
		}
		return domain.TodoInput{Title: req.Title, Status: domain.Status(req.Status), Note: req.Note}, nil, nil
	}
}

func formInput(r *http.Request) domain.TodoInput {
	in := domain.TodoInput{
		Title:  r.PostFormValue("title"),
		Status: domain.Status(r.PostFormValue("status")),
	}
	if _, ok := r.PostForm["note"]; ok {
		note := r.PostFormValue("note")
		in.Note = &note
	}
	return in
}

// formUpload returns the cover part, or nil when none was chosen. Browsers
// send an empty part without a filename for an untouched file input.
func formUpload(r *http.Request) (*domain.Upload, error) {
	file, header, err := r.FormFile("cover")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, formError(err)
	}
	defer file.Close()

	if header.Filename == "" && header.Size == 0 {
		return nil, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover upload: %w", err)
	}
	return &domain.Upload{Filename: header.Filename, Data: data}, nil
}

func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: request body is not a valid form", errBadRequest)
}

func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		return fmt.Errorf("%w: request body contains badly-formed JSON (at position %d)", errBadRequest, syntaxError.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: request body contains badly-formed JSON", errBadRequest)
	case errors.As(err, &unmarshalTypeError):
		return fmt.Errorf("%w: request body contains an invalid value for the %q field (at position %d)", errBadRequest, unmarshalTypeError.Field, unmarshalTypeError.Offset)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return fmt.Errorf("%w: request body contains unknown field %s", errBadRequest, fieldName)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: request body must not be empty", errBadRequest)
	case errors.As(err, &maxErr):
		return err
	default:
		return fmt.Errorf("failed to decode request body: %w", err)
	}
}

// respondWithRequestError reports decoding failures.
func respondWithRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body must not be larger than %d bytes", maxErr.Limit))
	case errors.Is(err, errBadRequest):
		msg := strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
		respondWithError(w, http.StatusBadRequest, strings.ToUpper(msg[:1])+msg[1:])
	default:
		respondWithServiceError(w, r, err)
	}
}

func todoIDParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// listParams reads search, status and page. An unparsable page means page 1.
func listParams(r *http.Request) (service.TodoFilter, int) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	return service.TodoFilter{Search: q.Get("search"), Status: q.Get("status")}, page
}
