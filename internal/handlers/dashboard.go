package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/anidex/internal/session"
)

const (
	cookieName = "anidex"
	cookieKey  = "sid"
)

// PageData is passed to the dashboard template.
type PageData struct {
	Title     string
	View      session.ViewModel
	Error     string // request level error, e.g. a rejected upload
	Threshold float64
	Animals   []string
}

// acquire loads the caller's session and re-issues the cookie so its expiry
// slides with the store TTL. release must be called once the handler is done
// with the session.
func (h *Handler) acquire(c echo.Context) (*session.Session, func(), error) {
	// a cookie that fails to decode yields a fresh session, which is fine
	cs, _ := h.cookies.Get(c.Request(), cookieName)
	id, _ := cs.Values[cookieKey].(string)

	s, release := h.store.Acquire(id)
	cs.Values[cookieKey] = s.ID
	if err := cs.Save(c.Request(), c.Response()); err != nil {
		release()
		return nil, nil, err
	}
	return s, release, nil
}

func (h *Handler) render(c echo.Context, status int, s *session.Session, errMsg string) error {
	threshold := h.controller.Threshold()
	labels := h.controller.Labels()
	animals := make([]string, len(labels))
	for i, l := range labels {
		animals[i] = h.dex.DisplayName(l)
	}
	return c.Render(status, "dashboard.html", PageData{
		Title:     "Anidex",
		View:      session.View(s, h.dex, labels, threshold),
		Error:     errMsg,
		Threshold: threshold,
		Animals:   animals,
	})
}

// afterAction redirects to the dashboard on success, otherwise re-renders it
// with the error and a matching status code.
func (h *Handler) afterAction(c echo.Context, s *session.Session, err error) error {
	if err == nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("dashboard action failed", "path", c.Path(), "session", s.ID, "error", err)
	}
	msg := err.Error()
	if s.Err == msg {
		msg = ""
	}
	return h.render(c, status, s, msg)
}

// Dashboard renders the current session.
func (h *Handler) Dashboard(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	return h.render(c, http.StatusOK, s, "")
}

// Upload stores the posted image in the session.
func (h *Handler) Upload(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()

	header, data, err := readImage(c)
	if err != nil {
		return h.afterAction(c, s, err)
	}
	return h.afterAction(c, s, h.controller.Upload(s, header.Filename, data))
}

// Analyze classifies the uploaded image.
func (h *Handler) Analyze(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	return h.afterAction(c, s, h.controller.Analyze(c.Request().Context(), s))
}

// Confirm records the prediction as correct.
func (h *Handler) Confirm(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	_, err = h.controller.Confirm(c.Request().Context(), s)
	return h.afterAction(c, s, err)
}

// Reject reveals the correction picker.
func (h *Handler) Reject(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	return h.afterAction(c, s, h.controller.RequestCorrection(s))
}

// Correct records the image under the label chosen by the user.
func (h *Handler) Correct(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	_, err = h.controller.Correct(c.Request().Context(), s, c.FormValue("label"))
	return h.afterAction(c, s, err)
}

// SessionImage serves the image held by the session.
func (h *Handler) SessionImage(c echo.Context) error {
	s, release, err := h.acquire(c)
	if err != nil {
		return err
	}
	defer release()
	if s.Upload == nil {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, http.DetectContentType(s.Upload.Data), s.Upload.Data)
}
