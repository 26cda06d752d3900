package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/pokedex"
)

const healthPingTimeout = 2 * time.Second

type predictionResponse struct {
	*model.PredictionResult
	Top           []model.LabelProbability `json:"top"`
	LowConfidence bool                     `json:"low_confidence"`
	Card          pokedex.Card             `json:"card"`
}

func (h *Handler) respondPrediction(c echo.Context, res *model.PredictionResult) error {
	low := res.Confidence < h.controller.Threshold()
	if low {
		h.metrics.RecordLowConfidence()
	}
	return c.JSON(http.StatusOK, predictionResponse{
		PredictionResult: res,
		Top:              res.Top(5),
		LowConfidence:    low,
		Card:             h.dex.Card(res.PredictedLabel),
	})
}

// Health reports liveness and whether the model is loaded.
func (h *Handler) Health(c echo.Context) error {
	if h.classifier == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "model": "not loaded"})
	}
	resp := map[string]any{
		"status":   "healthy",
		"model":    "loaded",
		"backend":  h.classifier.Backend(),
		"labels":   len(h.classifier.Labels()),
		"sessions": h.store.Len(),
	}
	// the index is best-effort, so a failed ping degrades but does not fail the check
	if h.index != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()
		if err := h.index.Ping(ctx); err != nil {
			h.log.Warn("feedback index ping failed", "error", err)
			resp["status"] = "degraded"
			resp["index"] = "unavailable"
		} else {
			resp["index"] = "ok"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Predict classifies a preprocessed input tensor.
func (h *Handler) Predict(c echo.Context) error {
	var req model.TensorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
	}

	start := time.Now()
	res, err := h.classifier.PredictTensor(c.Request().Context(), req.Image)
	h.metrics.RecordPrediction(h.classifier.Backend(), labelOf(res), time.Since(start), err)
	if err != nil {
		return h.jsonError(c, err)
	}
	return h.respondPrediction(c, res)
}

// PredictFromImage classifies an uploaded image without touching any session.
func (h *Handler) PredictFromImage(c echo.Context) error {
	header, data, err := readImage(c)
	if err != nil {
		return h.jsonError(c, err)
	}
	h.log.Debug("received file", "file", header.Filename, "bytes", len(data))

	start := time.Now()
	res, err := h.classifier.Predict(c.Request().Context(), data)
	h.metrics.RecordPrediction(h.classifier.Backend(), labelOf(res), time.Since(start), err)
	if err != nil {
		return h.jsonError(c, err)
	}
	return h.respondPrediction(c, res)
}

func labelOf(r *model.PredictionResult) string {
	if r == nil {
		return ""
	}
	return r.PredictedLabel
}

// Labels lists the active label set with display names.
func (h *Handler) Labels(c echo.Context) error {
	type labelInfo struct {
		Label   string `json:"label"`
		Display string `json:"display"`
	}
	labels := h.classifier.Labels()
	out := make([]labelInfo, len(labels))
	for i, l := range labels {
		out[i] = labelInfo{Label: l, Display: h.dex.DisplayName(l)}
	}
	return c.JSON(http.StatusOK, out)
}

// PokedexCard returns the reference card of a label.
func (h *Handler) PokedexCard(c echo.Context) error {
	card := h.dex.Card(c.Param("label"))
	if !card.Known {
		return h.jsonError(c, errors.Newf("no card for %q", c.Param("label")).
			Component("http").
			Category(errors.CategoryNotFound).
			Build())
	}
	return c.JSON(http.StatusOK, card)
}

func (h *Handler) indexDisabled(c echo.Context) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: "feedback index is disabled"})
}

// FeedbackList returns recent feedback, newest first.
func (h *Handler) FeedbackList(c echo.Context) error {
	if h.index == nil {
		return h.indexDisabled(c)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.index.Recent(c.Request().Context(), limit)
	if err != nil {
		return h.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// FeedbackStats returns per-label feedback counts.
func (h *Handler) FeedbackStats(c echo.Context) error {
	if h.index == nil {
		return h.indexDisabled(c)
	}
	stats, err := h.index.Stats(c.Request().Context())
	if err != nil {
		return h.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
