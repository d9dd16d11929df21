// Package diag exposes a small read-only HTTP surface over the open-file
// and decomposition registries, plus the process metrics endpoint.
package diag

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pariolab/pario/internal/decomp"
	"github.com/pariolab/pario/internal/observability"
	"github.com/pariolab/pario/internal/openfile"
)

type Server struct {
	Addr    string
	Files   *openfile.Registry
	Decomps *decomp.Registry

	router  *gin.Engine
	started time.Time
}

func NewServer(addr string, files *openfile.Registry, decomps *decomp.Registry) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:    addr,
		Files:   files,
		Decomps: decomps,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

type fileInfo struct {
	ID     int    `json:"id"`
	IOType string `json:"iotype"`
	Mode   uint32 `json:"mode"`
	DoIO   bool   `json:"do_io"`
}

type decompInfo struct {
	ID         int    `json:"id"`
	BaseType   string `json:"base_type"`
	NDims      int    `json:"ndims"`
	LocalLen   int64  `json:"local_len"`
	Rearranger int    `json:"rearranger"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/files", func(c *gin.Context) {
		list := make([]fileInfo, 0)
		if s.Files != nil {
			for _, f := range s.Files.List() {
				list = append(list, fileInfo{
					ID:     f.ID,
					IOType: f.IOType.String(),
					Mode:   uint32(f.Mode),
					DoIO:   f.DoIO,
				})
			}
		}
		c.JSON(http.StatusOK, gin.H{"files": list})
	})

	s.router.GET("/decomps", func(c *gin.Context) {
		list := make([]decompInfo, 0)
		if s.Decomps != nil {
			for _, d := range s.Decomps.List() {
				list = append(list, decompInfo{
					ID:         d.ID,
					BaseType:   d.BaseType.String(),
					NDims:      d.NDims,
					LocalLen:   d.LocalLen,
					Rearranger: int(d.Rearranger),
				})
			}
		}
		c.JSON(http.StatusOK, gin.H{"decomps": list})
	})
}

// Handler returns the route tree for in-process serving and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	return s.router.Run(s.Addr)
}
