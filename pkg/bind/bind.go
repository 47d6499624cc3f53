// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/validate"
)

// MultipartMaxBytes caps multipart bodies that carry an image file.
const MultipartMaxBytes = 8 << 20

// ErrTooLarge is wrapped by JSON and Multipart when the body exceeds its cap.
var ErrTooLarge = errors.New("request body too large")

// FieldError is one validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// JSON decodes r.Body into dest and validates it. A malformed or oversized
// body returns a plain error; the first failed rule returns a *FieldError.
func JSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxBodyBytes())

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}

	return Validate(dest)
}

// Validate runs struct-tag validation and reports the first failure.
func Validate(v interface{}) error {
	if field, msg, ok := validate.First(v); ok {
		return &FieldError{Field: field, Message: msg}
	}
	return nil
}

// Multipart parses a multipart/form-data body. The file part named fileField
// is read fully; a missing part yields nil data and no error.
func Multipart(w http.ResponseWriter, r *http.Request, fileField string) (data []byte, header *multipart.FileHeader, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, MultipartMaxBytes)
	if err := r.ParseMultipartForm(MultipartMaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxErr.Limit)
		}
		return nil, nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	file, header, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", fileField, err)
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", fileField, err)
	}
	return data, header, nil
}
