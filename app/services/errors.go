package services

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below unwrap to exactly one of these, so callers
// branch with errors.Is and read details with errors.As.
var (
	ErrScrapeUnreachable = errors.New("scraper unreachable")
	ErrScrapeStatus      = errors.New("scraper returned an error status")
	ErrScrapeMalformed   = errors.New("scraper response is malformed")

	ErrImageBadInput    = errors.New("invalid image URL")
	ErrImageFetchFailed = errors.New("image fetch failed")
	ErrImageUnreachable = errors.New("image host unreachable")
	ErrStorageUpload    = errors.New("storage upload failed")
	ErrStorageConflict  = errors.New("storage key already exists")

	ErrInvalid       = errors.New("invalid product")
	ErrPersistFailed = errors.New("product could not be saved")
)

// ScrapeError reports a failed scraper call.
type ScrapeError struct {
	Kind   error
	Status int // upstream status for ErrScrapeStatus
	Err    error
}

func (e *ScrapeError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%v: %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *ScrapeError) Unwrap() []error { return nonNil(e.Kind, e.Err) }

// ProxyError reports a failed image proxy or upload.
type ProxyError struct {
	Kind   error
	Status int // CDN status for ErrImageFetchFailed
	Err    error
}

func (e *ProxyError) Error() string {
	if errors.Is(e.Kind, ErrImageFetchFailed) {
		if e.Status != 0 {
			return fmt.Sprintf("Failed to fetch image: %d", e.Status)
		}
		return fmt.Sprintf("Failed to fetch image: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *ProxyError) Unwrap() []error { return nonNil(e.Kind, e.Err) }

// IngestError is returned by the coordinator. Stage is where the run stopped.
// Validation failures carry Field and Reason; component failures wrap the
// component's own error in Err and leave Kind nil.
type IngestError struct {
	Stage  Stage
	Kind   error
	Field  string
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	switch {
	case e.Field != "":
		return e.Reason
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *IngestError) Unwrap() []error { return nonNil(e.Kind, e.Err) }

// invalid reports a rejected field. reason is the full client-facing message.
func invalid(field, reason string) *IngestError {
	return &IngestError{Stage: StageIdle, Kind: ErrInvalid, Field: field, Reason: reason}
}

func nonNil(errs ...error) []error {
	out := errs[:0:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

var outcomes = []struct {
	kind  error
	label string
}{
	{ErrScrapeUnreachable, "scrape_unreachable"},
	{ErrScrapeStatus, "scrape_status"},
	{ErrScrapeMalformed, "scrape_malformed"},
	{ErrImageBadInput, "image_bad_input"},
	{ErrImageFetchFailed, "image_fetch_failed"},
	{ErrImageUnreachable, "image_unreachable"},
	{ErrStorageConflict, "storage_conflict"},
	{ErrStorageUpload, "storage_upload"},
	{ErrInvalid, "invalid"},
	{ErrPersistFailed, "persist_failed"},
}

// Outcome is the metrics label for err: "ok", an error kind, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.kind) {
			return o.label
		}
	}
	return "error"
}
