// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/gridworld-editor/backend/internal/index"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// FileHandler handles genome file operations
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadRaw(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleGetFileContent(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// SessionHandler handles edit session operations
type SessionHandler interface {
	HandleOpenSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleCloseSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleGetTree(c echo.Context) error
	HandleGetTreeMsgpack(c echo.Context) error
	HandleGetText(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleReplaceText(c echo.Context) error
	HandleSave(c echo.Context) error
	HandleSaveAs(c echo.Context) error
}

// NodeHandler handles edits addressed by selection path
type NodeHandler interface {
	HandleGetNode(c echo.Context) error
	HandlePutNode(c echo.Context) error
	HandleStepNode(c echo.Context) error
	HandleDeleteNode(c echo.Context) error
	HandleAddCell(c echo.Context) error
	HandleAddGene(c echo.Context) error
	HandleAddDnaBlock(c echo.Context) error
	HandleAddComment(c echo.Context) error
}

// QueryHandler handles gene index queries
type QueryHandler interface {
	HandleSearch(c echo.Context) error
	HandleStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Open(fileID string) (*models.EditSession, error)
	GetSession(id string) (*models.EditSession, bool)
	ListSessions() []models.EditSession
	TouchSession(id string) bool
	Close(id string) bool
	View(id string, fn func(dna *models.CreatureDNA) error) error
	Genome(id string) (*models.CreatureDNA, error)
	Text(id string) (string, error)
	Update(id string, fn func(dna *models.CreatureDNA) error) (*models.EditSession, error)
	ReplaceText(id, text string) (*models.EditSession, error)
	Save(id string) (*models.EditSession, error)
	SaveAs(id, name string) (*models.EditSession, *models.FileInfo, error)
	Search(ctx context.Context, id string, q index.Query) ([]index.Hit, error)
	TypeCounts(ctx context.Context, id string) ([]index.TypeCount, error)
}
