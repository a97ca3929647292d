package service

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/domain"
)

// MaxCoverSize is the largest accepted cover image in bytes.
const MaxCoverSize = 2048 * 1024

// coverTypes are the accepted image types, matched on content.
var coverTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

const msgCoverType = "must be a file of type: jpg, jpeg, png, gif, webp"

// MsgCoverSize is reported on the cover field for oversized uploads.
const MsgCoverSize = "must not be greater than 2048 kilobytes"

// inspectCover sniffs the upload and returns the object to store. The
// filename is ignored; only the content decides the type and extension.
func inspectCover(upload *domain.Upload) (*blob.Object, *domain.ValidationError) {
	if upload == nil {
		return nil, nil
	}
	if upload.Size() > MaxCoverSize {
		return nil, &domain.ValidationError{Fields: map[string]string{"cover": MsgCoverSize}}
	}
	if upload.Size() == 0 {
		return nil, &domain.ValidationError{Fields: map[string]string{"cover": msgCoverType}}
	}

	mtype := mimetype.Detect(upload.Data)
	for _, allowed := range coverTypes {
		if mtype.Is(allowed) {
			return &blob.Object{
				Data:        upload.Data,
				ContentType: allowed,
				Ext:         mtype.Extension(),
			}, nil
		}
	}
	return nil, &domain.ValidationError{Fields: map[string]string{
		"cover": fmt.Sprintf("%s; got %s", msgCoverType, mtype.String()),
	}}
}
