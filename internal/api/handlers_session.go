// handlers_session.go - Edit session handlers
package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
	formats  *parser.Registry
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{
		sessions: sessions,
		formats:  parser.GetGlobalRegistry(),
	}
}

// genomeTree is the genome plus the derived values the tree view shows.
type genomeTree struct {
	Session     models.EditSession    `json:"session" msgpack:"session"`
	Genome      *models.CreatureDNA   `json:"genome" msgpack:"genome"`
	DnaNames    []string              `json:"dnaNames" msgpack:"dnaNames"`
	CellBounds  models.GridBounds     `json:"cellBounds" msgpack:"cellBounds"`
	LayerBounds [][]models.GridBounds `json:"layerBounds" msgpack:"layerBounds"`
}

// HandleOpenSession parses a stored file into a new edit session
func (h *SessionHandlerImpl) HandleOpenSession(c echo.Context) error {
	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	sess, err := h.sessions.Open(req.FileID)
	if err != nil {
		return fromSessionError(err, req.FileID)
	}

	return c.JSON(http.StatusCreated, sess)
}

// HandleListSessions returns all open sessions
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.ListSessions())
}

// HandleGetSession returns session metadata
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleCloseSession discards a session without saving
func (h *SessionHandlerImpl) HandleCloseSession(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.Close(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive updates the last accessed time of a session
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SessionHandlerImpl) tree(id string) (*genomeTree, error) {
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	genome, err := h.sessions.Genome(id)
	if err != nil {
		return nil, fromSessionError(err, id)
	}

	tree := &genomeTree{
		Session:     *sess,
		Genome:      genome,
		DnaNames:    make([]string, len(genome.DNA)),
		CellBounds:  genome.CellBounds(),
		LayerBounds: make([][]models.GridBounds, len(genome.DNA)),
	}
	for i := range genome.DNA {
		block := &genome.DNA[i]
		tree.DnaNames[i] = block.DisplayName(i)
		tree.LayerBounds[i] = make([]models.GridBounds, len(block.Genes))
		for l := range block.Genes {
			tree.LayerBounds[i][l], _ = block.Genes.Bounds(l)
		}
	}
	return tree, nil
}

// HandleGetTree returns the genome tree as JSON
func (h *SessionHandlerImpl) HandleGetTree(c echo.Context) error {
	tree, err := h.tree(c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tree)
}

// HandleGetTreeMsgpack returns the genome tree as MessagePack
func (h *SessionHandlerImpl) HandleGetTreeMsgpack(c echo.Context) error {
	tree, err := h.tree(c.Param("sessionId"))
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(tree)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetText returns the serialized genome
func (h *SessionHandlerImpl) HandleGetText(c echo.Context) error {
	id := c.Param("sessionId")
	text, err := h.sessions.Text(id)
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.String(http.StatusOK, text)
}

// HandleExport returns the genome in the format named by ?format=
func (h *SessionHandlerImpl) HandleExport(c echo.Context) error {
	id := c.Param("sessionId")
	name := c.QueryParam("format")
	if name == "" {
		name = "genome"
	}

	format, err := h.formats.GetFormatByName(name)
	if err != nil {
		return NewBadRequestError(fmt.Sprintf("unknown format %q, expected one of %s",
			name, strings.Join(h.formats.Names(), ", ")), nil)
	}

	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	genome, err := h.sessions.Genome(id)
	if err != nil {
		return fromSessionError(err, id)
	}

	data, err := format.Encode(genome)
	if err != nil {
		return NewInternalError("failed to encode genome", err)
	}

	base := strings.TrimSuffix(sess.FileName, filepath.Ext(sess.FileName))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", base+format.Extension()))
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

// HandleReplaceText re-parses the genome from the request body
func (h *SessionHandlerImpl) HandleReplaceText(c echo.Context) error {
	id := c.Param("sessionId")
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxGenomeSize+1))
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	if len(body) > maxGenomeSize {
		return NewBadRequestError("genome text too large", nil)
	}

	sess, err := h.sessions.ReplaceText(id, string(body))
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleSave writes the genome back to its file
func (h *SessionHandlerImpl) HandleSave(c echo.Context) error {
	id := c.Param("sessionId")
	sess, err := h.sessions.Save(id)
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleSaveAs writes the genome to a new file
func (h *SessionHandlerImpl) HandleSaveAs(c echo.Context) error {
	id := c.Param("sessionId")

	var req saveAsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	sess, info, err := h.sessions.SaveAs(id, req.Name)
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"session": sess,
		"file":    info,
	})
}

type openSessionRequest struct {
	FileID string `json:"fileId"`
}

type saveAsRequest struct {
	Name string `json:"name"`
}
