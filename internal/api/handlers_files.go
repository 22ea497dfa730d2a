// handlers_files.go - Genome file handlers
package api

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/gridworld-editor/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// maxGenomeSize bounds a single uploaded genome.
const maxGenomeSize = 16 << 20

// FileOptions restricts what the file handler accepts
type FileOptions struct {
	AllowDelete  bool
	AllowedTypes []string // lower-case extensions with the dot; empty allows all
}

// ParseFileTypes splits a comma-separated extension list such as ".txt,.json".
func ParseFileTypes(list string) []string {
	var out []string
	for _, ext := range strings.Split(list, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store   storage.Store
	formats *parser.Registry
	opts    FileOptions
	log     *logging.Logger
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, opts FileOptions, log *logging.Logger) FileHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &FileHandlerImpl{
		store:   store,
		formats: parser.GetGlobalRegistry(),
		opts:    opts,
		log:     log.With("Files"),
	}
}

func (h *FileHandlerImpl) allowedType(name string) bool {
	if len(h.opts.AllowedTypes) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedTypes, strings.ToLower(filepath.Ext(name)))
}

// HandleUploadFile accepts a file as base64 JSON and saves it to storage
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	return h.storeGenome(c, req.Name, decoded)
}

// HandleUploadBinary accepts a multipart/form-data upload
func (h *FileHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxGenomeSize+1))
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}
	return h.storeGenome(c, file.Filename, data)
}

// HandleUploadRaw stores the request body; the file name comes from ?name=
func (h *FileHandlerImpl) HandleUploadRaw(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return NewValidationError("name")
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxGenomeSize+1))
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	return h.storeGenome(c, name, data)
}

// storeGenome validates the upload and stores it as genome text. Files in
// another registered format are converted on the way in.
func (h *FileHandlerImpl) storeGenome(c echo.Context, name string, data []byte) error {
	if !h.allowedType(name) {
		return NewBadRequestError("file type not allowed: "+filepath.Ext(name), nil)
	}
	if len(data) > maxGenomeSize {
		return NewBadRequestError("genome file too large", nil)
	}

	format := h.formats.FindFormat(name)
	dna, err := format.Decode(data)
	if err != nil {
		var pe *models.ParseError
		if errors.As(err, &pe) {
			return NewParseError(pe)
		}
		return NewBadRequestError("invalid "+format.Name()+" genome", err)
	}

	if format.Name() != "genome" {
		text, err := parser.VerifyRoundTrip(dna)
		if err != nil {
			return NewBadRequestError("genome cannot be stored as text", err)
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
		data = []byte(text)
	}

	info, err := h.store.SaveBytes(name, data)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	h.log.Infof("Stored %s (%s, %d bytes, %d cells, %d DNA blocks)",
		info.Name, format.Name(), info.Size, len(dna.Cells), len(dna.DNA))
	return c.JSON(http.StatusCreated, info)
}

// HandleListFiles returns the most recent genome files
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	if files == nil {
		files = []*models.FileInfo{}
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleGetFileContent returns the raw stored text
func (h *FileHandlerImpl) HandleGetFileContent(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	data, err := h.store.ReadContent(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", data)
}

// HandleDeleteFile deletes a stored file
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.opts.AllowDelete {
		return NewForbiddenError("file deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
