package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pond75jnu/svcmon/internal/app"
	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/internal/webserver"
	"github.com/pond75jnu/svcmon/pkg/common"
)

// ListResponse is the paginated list envelope
type ListResponse struct {
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Data    interface{} `json:"data"`
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// GetApp returns the application bound to this request
func GetApp(c echo.Context) *app.Application {
	return c.Get(webserver.CtxApp).(*app.Application)
}

// GetDB returns the gorm handle bound to this request
func GetDB(c echo.Context) *gorm.DB {
	return GetApp(c).DB()
}

// GetStore returns the typed store bound to this request
func GetStore(c echo.Context) *store.Store {
	return c.Get(webserver.CtxStore).(*store.Store)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, errorBody{Code: code, Message: message, Detail: detail})
}

// pagination reads page/perPage query params with sane bounds
func pagination(c echo.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	perPage, _ = strconv.Atoi(c.QueryParam("perPage"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	return page, perPage, (page - 1) * perPage
}

// oprLog writes an audit row for a mutating API call
func oprLog(c echo.Context, action, desc string) {
	db := GetDB(c)
	db.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   common.IfEmptyStr(c.Request().Header.Get("X-Operator"), "system"),
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now().UTC(),
	})
}

// bumpRevision records a topology change so running schedulers reload
func bumpRevision(c echo.Context, reason string) {
	operator := common.IfEmptyStr(c.Request().Header.Get("X-Operator"), "system")
	if err := GetStore(c).BumpConfigRevision(c.Request().Context(), reason, operator); err != nil {
		// The mutation already committed; a missed bump only delays reload
		// until the next one.
		zap.L().Error("config revision bump failed", zap.String("reason", reason), zap.Error(err))
	}
}

// RegisterRoutes wires all admin API routes; call after webserver.Init
func RegisterRoutes() {
	registerGroupRoutes()
	registerDomainRoutes()
	registerEndpointRoutes()
	registerStatusRoutes()
}
