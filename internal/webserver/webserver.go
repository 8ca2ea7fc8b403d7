package webserver

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/pond75jnu/svcmon/internal/app"
	"github.com/pond75jnu/svcmon/internal/store"
)

// Context keys used by handlers
const (
	CtxApp   = "svcmon_app"
	CtxStore = "svcmon_store"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type WebServer struct {
	root *echo.Echo
	app  *app.Application
}

var server *WebServer

// Init builds the echo instance and wires middleware; call once at startup
// before registering routes.
func Init(application *app.Application) *WebServer {
	root := echo.New()
	root.HideBanner = true
	root.HidePort = true
	root.Validator = &CustomValidator{validator: validator.New()}

	st := store.NewStore(application.DB())
	root.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(CtxApp, application)
			c.Set(CtxStore, st)
			return next(c)
		}
	})
	root.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zap.L().Error("handler panic", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	root.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	server = &WebServer{root: root, app: application}
	return server
}

// Echo exposes the underlying router for in-process tests.
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// Start blocks serving HTTP on the configured address.
func (s *WebServer) Start() error {
	cfg := s.app.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.L().Info("web server starting", zap.String("addr", addr))
	return s.root.Start(addr)
}

// Shutdown closes the listener.
func (s *WebServer) Shutdown() {
	if s.root != nil {
		_ = s.root.Close()
	}
}

// Route registration helpers used by adminapi

func ApiGET(path string, h echo.HandlerFunc) {
	server.root.GET("/api/v1"+path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.root.POST("/api/v1"+path, h)
}

func ApiPUT(path string, h echo.HandlerFunc) {
	server.root.PUT("/api/v1"+path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.root.DELETE("/api/v1"+path, h)
}
