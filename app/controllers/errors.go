package controllers

import (
	"errors"
	"net/http"

	"github.com/opsipintar/catalog/app/repositories"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/pkg/bind"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/response"
)

// fail writes err as a JSON error. This is the only place error kinds become
// HTTP statuses.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErr  *bind.FieldError
		ingestErr *services.IngestError
		proxyErr  *services.ProxyError
	)

	switch {
	case errors.As(err, &fieldErr):
		response.FieldError(w, http.StatusBadRequest, fieldErr.Field, fieldErr.Message)
	case errors.As(err, &ingestErr) && ingestErr.Field != "":
		response.FieldError(w, http.StatusBadRequest, ingestErr.Field, ingestErr.Error())
	case errors.Is(err, bind.ErrTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		response.NotFound(w)

	case errors.Is(err, services.ErrScrapeUnreachable),
		errors.Is(err, services.ErrScrapeStatus),
		errors.Is(err, services.ErrScrapeMalformed),
		errors.Is(err, services.ErrImageUnreachable):
		logger.WithCtx(r.Context()).Warn("upstream failure", "outcome", services.Outcome(err), "error", err)
		response.Error(w, http.StatusBadGateway, upstreamMessage(err))

	case errors.Is(err, services.ErrImageBadInput):
		response.Error(w, http.StatusBadRequest, services.ErrImageBadInput.Error())
	case errors.Is(err, services.ErrImageFetchFailed) && errors.As(err, &proxyErr):
		response.Error(w, http.StatusBadRequest, proxyErr.Error())

	case errors.Is(err, services.ErrStorageUpload),
		errors.Is(err, services.ErrStorageConflict),
		errors.Is(err, services.ErrPersistFailed):
		logger.WithCtx(r.Context()).Error("write failed", "outcome", services.Outcome(err), "error", err)
		response.Error(w, http.StatusInternalServerError, upstreamMessage(err))

	default:
		logger.WithCtx(r.Context()).Error("unhandled error", "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// upstreamMessage is the component's own message, without the ingest
// wrapper.
func upstreamMessage(err error) string {
	var (
		scrapeErr *services.ScrapeError
		proxyErr  *services.ProxyError
	)
	switch {
	case errors.As(err, &scrapeErr):
		return scrapeErr.Error()
	case errors.As(err, &proxyErr):
		return proxyErr.Error()
	case errors.Is(err, services.ErrPersistFailed):
		return services.ErrPersistFailed.Error()
	}
	return err.Error()
}

// bad reports a malformed request body.
func bad(w http.ResponseWriter, err error) {
	var fieldErr *bind.FieldError
	switch {
	case errors.As(err, &fieldErr):
		response.FieldError(w, http.StatusBadRequest, fieldErr.Field, fieldErr.Message)
	case errors.Is(err, bind.ErrTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		response.Error(w, http.StatusBadRequest, err.Error())
	}
}
