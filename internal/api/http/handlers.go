package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// DefaultWait bounds how long a transaction request waits for its result
const DefaultWait = 2 * time.Minute

// PackageService is the facade the handlers drive
type PackageService interface {
	Install(param service.InstallParam, observer service.InstallObserver) int32
	Uninstall(param service.UninstallParam, observer service.UninstallObserver) int32
	List(opts service.ListOptions) (*service.Listing, error)
	Get(name string) (*types.PackageRecord, error)
	ClearCache(name string) error
	SizeStats(name string) (types.PackageStats, error)
	IsFirstBoot() bool
	Stats() service.Stats
}

// Handlers contains all HTTP handlers
type Handlers struct {
	pm   PackageService
	wait time.Duration
	log  *zap.Logger
}

// NewHandlers creates a new handler set. wait <= 0 selects DefaultWait.
func NewHandlers(pm PackageService, wait time.Duration, log *zap.Logger) *Handlers {
	if wait <= 0 {
		wait = DefaultWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{pm: pm, wait: wait, log: log}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/first-boot", h.FirstBoot)
	r.GET("/stats", h.Stats)

	packages := r.Group("/packages")
	packages.GET("", h.ListPackages)
	packages.POST("/install", h.Install)
	packages.GET("/:name", h.GetPackage)
	packages.GET("/:name/stats", h.PackageStats)
	packages.POST("/:name/clear-cache", h.ClearCache)
	packages.DELETE("/:name", h.Uninstall)
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"packages": h.pm.Stats().TotalPackages,
	})
}

// FirstBoot reports whether the package list was absent at startup
func (h *Handlers) FirstBoot(c *gin.Context) {
	ok(c, gin.H{"first_boot": h.pm.IsFirstBoot()})
}

// Stats returns registry and transaction statistics
func (h *Handlers) Stats(c *gin.Context) {
	ok(c, h.pm.Stats())
}

// StatusFor maps a result kind to an HTTP status
func StatusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindOK:
		return http.StatusOK
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindInvalidArgument:
		return http.StatusBadRequest
	case types.KindPermissionDenied:
		return http.StatusForbidden
	case types.KindMalformedManifest, types.KindParseError, types.KindUnsupportedType:
		return http.StatusUnprocessableEntity
	case types.KindIllegalState:
		return http.StatusConflict
	case types.KindNoService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func fail(c *gin.Context, err error) {
	kind := types.KindOf(err)
	c.JSON(StatusFor(kind), types.ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    kind.Code(),
	})
}
