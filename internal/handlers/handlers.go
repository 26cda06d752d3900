// Package handlers serves the Anidex dashboard and JSON API over echo.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/anidex/internal/datastore"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/logging"
	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/observability/metrics"
	"github.com/Brownie44l1/anidex/internal/pokedex"
	"github.com/Brownie44l1/anidex/internal/session"
)

// FeedbackIndex lists recorded feedback. It is optional.
type FeedbackIndex interface {
	Recent(ctx context.Context, limit int) ([]feedback.Record, error)
	Stats(ctx context.Context) ([]datastore.LabelStats, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Classifier *model.Classifier
	Controller *session.Controller
	Store      *session.Store
	Cookies    sessions.Store
	Dex        *pokedex.Dex
	Index      FeedbackIndex
	Metrics    *metrics.Metrics
}

// Handler holds the HTTP handlers.
type Handler struct {
	classifier *model.Classifier
	controller *session.Controller
	store      *session.Store
	cookies    sessions.Store
	dex        *pokedex.Dex
	index      FeedbackIndex
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	if d.Dex == nil {
		d.Dex = pokedex.Default()
	}
	return &Handler{
		classifier: d.Classifier,
		controller: d.Controller,
		store:      d.Store,
		cookies:    d.Cookies,
		dex:        d.Dex,
		index:      d.Index,
		metrics:    d.Metrics,
		log:        logging.ForService("http"),
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// statusFor maps error categories to HTTP status codes.
func statusFor(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryPreprocessing, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryState:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) jsonError(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, errorResponse{Error: err.Error(), Category: string(errors.CategoryOf(err))})
}

// readImage reads the "image" form field.
func readImage(c echo.Context) (*multipart.FileHeader, []byte, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, nil, errors.Newf("no image file provided, use 'image' as the form field name").
			Component("http").
			Category(errors.CategoryValidation).
			Build()
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, errors.New(err).Component("http").Category(errors.CategoryValidation).Build()
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, errors.New(err).Component("http").Category(errors.CategoryValidation).Build()
	}
	return header, data, nil
}
