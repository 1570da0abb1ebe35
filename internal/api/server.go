package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"goposthoc/app"
	"goposthoc/internal/logging"
	"goposthoc/ports"
)

// Server exposes the post-hoc service over HTTP
type Server struct {
	router  *gin.Engine
	handler *PosthocHandler
}

// NewServer creates a server with routes registered
func NewServer(svc *app.PosthocService, renderer ports.ReportRenderer, logger *logging.Logger) *Server {
	s := &Server{
		router:  gin.New(),
		handler: NewPosthocHandler(svc, renderer, logger),
	}
	s.router.Use(gin.Logger(), gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1")
	{
		v1.GET("/procedures", s.handler.HandleProcedures())
		v1.POST("/posthoc/:procedure", s.handler.HandleRun())
		v1.POST("/sign", s.handler.HandleSign())
		v1.POST("/outliers", s.handler.HandleOutliers())
	}
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr
func (s *Server) Start(addr string) error {
	log.Printf("[Server] listening on %s", addr)
	return s.router.Run(addr)
}
