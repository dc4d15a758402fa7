package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/imagestore"
)

// multipartOverhead leaves room for the form boundary and headers around the file.
const multipartOverhead = 64 << 10

// uploadImage stores the multipart field "file" and returns its public URL.
func (s *server) uploadImage(w http.ResponseWriter, r *http.Request) error {
	folder := imagestore.Folder(chi.URLParam(r, "folder"))
	if folder != imagestore.FolderProducts && folder != imagestore.FolderBusinesses {
		return badRequest("unknown folder " + string(folder))
	}
	if s.Images == nil {
		return apperrors.NewExternalServiceError("s3", http.ErrNotSupported)
	}

	maxSize := s.maxImageSize()
	if r.ContentLength > maxSize+multipartOverhead {
		return imagestore.TooLarge(maxSize, r.ContentLength)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return imagestore.TooLarge(maxSize, r.ContentLength)
		}
		return badRequest(err.Error())
	}
	defer file.Close()

	url, err := s.Images.Upload(r.Context(), imagestore.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, folder)
	if err != nil {
		s.reporter.Surface(err, map[string]interface{}{"folder": string(folder)})
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	return nil
}
