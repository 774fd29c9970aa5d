// Package web serves the newsletter subscription endpoints.
package web

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/metrics"
	"github.com/lemara98/post-automation/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Registry is the subscriber half of *store.Store.
type Registry interface {
	AddSubscriber(ctx context.Context, email, name string, tokens ...store.SubscriberTokens) (int64, error)
	GetSubscriberByEmail(ctx context.Context, email string) (*store.Subscriber, error)
	ConfirmSubscriber(ctx context.Context, token string) (bool, error)
	Unsubscribe(ctx context.Context, token string) (bool, error)
	Ping(ctx context.Context) error
}

// Confirmer is implemented by *email.Mailer.
type Confirmer interface {
	SendConfirmation(ctx context.Context, email, name, token string) error
}

type Options struct {
	// SubscribeRate limits POST /subscribe per client IP, in requests per
	// second. Zero means 10 per minute.
	SubscribeRate  float64
	SubscribeBurst int
	// Gatherer, when set, is exposed on GET /metrics.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Web
}

type Server struct {
	echo     *echo.Echo
	registry Registry
	mailer   Confirmer
	metrics  *metrics.Web
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

func newValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func New(reg Registry, mailer Confirmer, opts Options) *Server {
	if opts.SubscribeRate <= 0 {
		opts.SubscribeRate = 10.0 / 60.0
	}
	if opts.SubscribeBurst <= 0 {
		opts.SubscribeBurst = 3
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status,
					"latency_ms", v.Latency.Milliseconds(), "error", v.Error.Error())
				return nil
			}
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{echo: e, registry: reg, mailer: mailer, metrics: opts.Metrics}

	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(opts.SubscribeRate),
			Burst: opts.SubscribeBurst,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			s.metrics.Record("subscribe", "rate_limited")
			return c.JSON(http.StatusTooManyRequests, response{Status: "error", Message: "too many requests, try again later"})
		},
	})

	e.POST("/subscribe", s.subscribe, limiter)
	e.GET("/confirm", s.confirm)
	e.GET("/unsubscribe", s.unsubscribe)
	e.GET("/healthz", s.healthz)
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	logger.Info("subscription server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
