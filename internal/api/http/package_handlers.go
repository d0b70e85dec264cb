package http

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/service"
)

// ListPackages lists installed packages
func (h *Handlers) ListPackages(c *gin.Context) {
	listing, err := h.pm.List(service.ListOptions{
		View:  service.View(c.DefaultQuery("view", string(service.ViewAll))),
		Match: c.Query("match"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, listing)
}

// GetPackage returns one validated package record
func (h *Handlers) GetPackage(c *gin.Context) {
	rec, err := h.pm.Get(c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}

// PackageStats returns the disk usage of a package
func (h *Handlers) PackageStats(c *gin.Context) {
	stats, err := h.pm.SizeStats(c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

// ClearCache empties the data directory of a package
func (h *Handlers) ClearCache(c *gin.Context) {
	name := c.Param("name")
	if err := h.pm.ClearCache(name); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"package": name})
}
