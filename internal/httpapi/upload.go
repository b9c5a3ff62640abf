package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"neurod/internal/apperr"
)

// uploadField is the multipart form field holding the file.
const uploadField = "file"

// errTooLarge is returned when an upload exceeds maxUploadBytes.
type errTooLarge struct{ limit int64 }

func (e errTooLarge) Error() string {
	return fmt.Sprintf("upload exceeds %d bytes", e.limit)
}
func (e errTooLarge) StatusCode() int { return http.StatusRequestEntityTooLarge }

// upload is a multipart file read fully into memory.
type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// readUpload reads the "file" field of a multipart request, bounded by
// maxUploadBytes.
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile(uploadField)
	if err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return nil, errTooLarge{limit: mbe.Limit}
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, apperr.InvalidInput("No file provided")
		default:
			return nil, apperr.WrapInvalidInput(err, "read multipart form")
		}
	}
	defer f.Close()
	if hdr.Filename == "" {
		return nil, apperr.InvalidInput("No file selected")
	}
	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	return &upload{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}, nil
}

func readAll(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errTooLarge{limit: mbe.Limit}
		}
		return nil, apperr.WrapInvalidInput(err, "read upload")
	}
	return data, nil
}
