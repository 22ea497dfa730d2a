// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    storage.Store
	Sessions SessionManager
	Hub      *WebSocketHub
	Version  string
	Files    FileOptions
	Log      *logging.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Files   FileHandler
	Session SessionHandler
	Node    NodeHandler
	Query   QueryHandler
	Hub     *WebSocketHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Sessions),
		Files:   NewFileHandler(deps.Store, deps.Files, deps.Log),
		Session: NewSessionHandler(deps.Sessions),
		Node:    NewNodeHandler(deps.Sessions),
		Query:   NewQueryHandler(deps.Sessions),
		Hub:     deps.Hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Genome files
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Files.HandleUploadFile)
	files.POST("/upload/binary", handlers.Files.HandleUploadBinary)
	files.POST("/upload/raw", handlers.Files.HandleUploadRaw)
	files.GET("", handlers.Files.HandleListFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.GET("/:id/content", handlers.Files.HandleGetFileContent)
	files.PUT("/:id", handlers.Files.HandleRenameFile)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)

	// Edit sessions
	sessions := apiGroup.Group("/sessions")
	sessions.POST("", handlers.Session.HandleOpenSession)
	sessions.GET("", handlers.Session.HandleListSessions)
	sessions.GET("/:sessionId", handlers.Session.HandleGetSession)
	sessions.DELETE("/:sessionId", handlers.Session.HandleCloseSession)
	sessions.POST("/:sessionId/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.GET("/:sessionId/tree", handlers.Session.HandleGetTree)
	sessions.GET("/:sessionId/tree/msgpack", handlers.Session.HandleGetTreeMsgpack)
	sessions.GET("/:sessionId/text", handlers.Session.HandleGetText)
	sessions.PUT("/:sessionId/text", handlers.Session.HandleReplaceText)
	sessions.GET("/:sessionId/export", handlers.Session.HandleExport)
	sessions.POST("/:sessionId/save", handlers.Session.HandleSave)
	sessions.POST("/:sessionId/save-as", handlers.Session.HandleSaveAs)

	// Node edits
	sessions.GET("/:sessionId/node", handlers.Node.HandleGetNode)
	sessions.PUT("/:sessionId/node", handlers.Node.HandlePutNode)
	sessions.POST("/:sessionId/node/step", handlers.Node.HandleStepNode)
	sessions.DELETE("/:sessionId/node", handlers.Node.HandleDeleteNode)
	sessions.POST("/:sessionId/cells", handlers.Node.HandleAddCell)
	sessions.POST("/:sessionId/dna", handlers.Node.HandleAddDnaBlock)
	sessions.POST("/:sessionId/dna/:dna/genes", handlers.Node.HandleAddGene)
	sessions.POST("/:sessionId/comments", handlers.Node.HandleAddComment)

	// Gene index
	sessions.GET("/:sessionId/search", handlers.Query.HandleSearch)
	sessions.GET("/:sessionId/stats", handlers.Query.HandleStats)

	// Change notifications
	if handlers.Hub != nil {
		apiGroup.GET("/ws/sessions/:sessionId", handlers.Hub.HandleWebSocket)
	}
}

// MiddlewareConfig tunes SetupMiddleware
type MiddlewareConfig struct {
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
	Timeout        time.Duration
	GzipLevel      int // 0 disables compression
	ShowDetails    bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler
	showErrorDetails = cfg.ShowDetails

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/keepalive")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.Timeout,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.GzipLevel > 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.GzipLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := strings.Split(cfg.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
