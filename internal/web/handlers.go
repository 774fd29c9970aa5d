package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lemara98/post-automation/internal/logger"
)

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type subscribeRequest struct {
	Email string `json:"email" form:"email" validate:"required,email,max=254"`
	Name  string `json:"name" form:"name" validate:"max=100"`
}

type tokenRequest struct {
	Token string `query:"token" validate:"required"`
}

func (s *Server) subscribe(c echo.Context) error {
	ctx := c.Request().Context()
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		s.metrics.Record("subscribe", "invalid")
		return c.JSON(http.StatusBadRequest, response{Status: "error", Message: "malformed request"})
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		s.metrics.Record("subscribe", "invalid")
		return c.JSON(http.StatusBadRequest, response{Status: "error", Message: "a valid email address is required"})
	}

	if _, err := s.registry.AddSubscriber(ctx, req.Email, req.Name); err != nil {
		s.metrics.Record("subscribe", "error")
		return err
	}
	sub, err := s.registry.GetSubscriberByEmail(ctx, req.Email)
	if err != nil {
		s.metrics.Record("subscribe", "error")
		return err
	}
	if sub == nil {
		s.metrics.Record("subscribe", "error")
		return echo.NewHTTPError(http.StatusInternalServerError, "subscriber vanished after insert")
	}
	if sub.Confirmed {
		s.metrics.Record("subscribe", "already_confirmed")
		return c.JSON(http.StatusOK, response{Status: "ok", Message: "this address is already subscribed"})
	}

	if err := s.mailer.SendConfirmation(ctx, sub.Email, sub.Name, sub.ConfirmationToken); err != nil {
		logger.Error("confirmation email failed", "email", sub.Email, "error", err)
		s.metrics.Record("subscribe", "send_failed")
		return c.JSON(http.StatusBadGateway, response{Status: "error", Message: "could not send the confirmation email, please try again"})
	}
	s.metrics.Record("subscribe", "accepted")
	return c.JSON(http.StatusAccepted, response{Status: "pending", Message: "check your inbox to confirm your subscription"})
}

func (s *Server) confirm(c echo.Context) error {
	return s.tokenAction(c, "confirm", s.registry.ConfirmSubscriber, "subscription confirmed")
}

func (s *Server) unsubscribe(c echo.Context) error {
	return s.tokenAction(c, "unsubscribe", s.registry.Unsubscribe, "you have been unsubscribed")
}

func (s *Server) tokenAction(c echo.Context, event string, fn func(context.Context, string) (bool, error), done string) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		s.metrics.Record(event, "invalid")
		return c.JSON(http.StatusBadRequest, response{Status: "error", Message: "token is required"})
	}
	ok, err := fn(c.Request().Context(), req.Token)
	if err != nil {
		s.metrics.Record(event, "error")
		return err
	}
	if !ok {
		s.metrics.Record(event, "not_found")
		return c.JSON(http.StatusNotFound, response{Status: "error", Message: "unknown or expired link"})
	}
	s.metrics.Record(event, "ok")
	return c.JSON(http.StatusOK, response{Status: "ok", Message: done})
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.registry.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, response{Status: "error", Message: "database unavailable"})
	}
	return c.JSON(http.StatusOK, response{Status: "ok"})
}
