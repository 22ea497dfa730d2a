// handlers_node.go - Handlers for edits addressed by selection path
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/gridworld-editor/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// NodeHandlerImpl implements the NodeHandler interface
type NodeHandlerImpl struct {
	sessions SessionManager
}

// NewNodeHandler creates a new node handler instance
func NewNodeHandler(sessions SessionManager) NodeHandler {
	return &NodeHandlerImpl{sessions: sessions}
}

type nodeField struct {
	Name  string                           `json:"name"`
	Raw   uint8                            `json:"raw"`
	Char  string                           `json:"char"`
	Views map[models.Representation]string `json:"views"`
}

type nodeResponse struct {
	Path    string                  `json:"path"`
	Kind    string                  `json:"kind"`
	Index   *models.GridIndex2      `json:"index,omitempty"`
	ZLevel  *uint16                 `json:"zLevel,omitempty"`
	Encoded string                  `json:"encoded,omitempty"`
	Info    *models.DecodedGeneInfo `json:"info,omitempty"`
	Fields  []nodeField             `json:"fields,omitempty"`
	Block   *dnaBlockNode           `json:"block,omitempty"`
}

type dnaBlockNode struct {
	DisplayName string              `json:"displayName"`
	Data        models.DnaData      `json:"data"`
	Layers      []uint16            `json:"layers"`
	Bounds      []models.GridBounds `json:"bounds"`
}

// editResponse is returned by every mutating node endpoint.
type editResponse struct {
	Session *models.EditSession `json:"session"`
	Path    string              `json:"path,omitempty"`
}

func selectionPath(c echo.Context) (models.SelectionPath, error) {
	raw := c.QueryParam("path")
	if raw == "" {
		return models.SelectionPath{}, NewValidationError("path")
	}
	p, err := models.ParseSelectionPath(raw)
	if err != nil {
		return models.SelectionPath{}, NewBadRequestError("invalid selection path", err)
	}
	return p, nil
}

func nodeNotFound(p models.SelectionPath) error {
	return fmt.Errorf("%w: %s", session.ErrNodeNotFound, p)
}

// HandleGetNode returns a cell, gene or DNA block with every value view
func (h *NodeHandlerImpl) HandleGetNode(c echo.Context) error {
	id := c.Param("sessionId")
	p, err := selectionPath(c)
	if err != nil {
		return err
	}

	var resp nodeResponse
	err = h.sessions.View(id, func(dna *models.CreatureDNA) error {
		resp.Path = p.String()

		if p.Kind == models.PathDnaBlock {
			if p.Dna >= len(dna.DNA) {
				return nodeNotFound(p)
			}
			block := dna.DNA[p.Dna].Clone()
			node := &dnaBlockNode{
				DisplayName: block.DisplayName(p.Dna),
				Data:        block,
				Layers:      make([]uint16, len(block.Genes)),
				Bounds:      make([]models.GridBounds, len(block.Genes)),
			}
			for l, layer := range block.Genes {
				node.Layers[l] = layer.ZLevel
				node.Bounds[l], _ = block.Genes.Bounds(l)
			}
			resp.Kind = "dna"
			resp.Block = node
			return nil
		}

		info, ok := p.Resolve(dna)
		if !ok {
			return nodeNotFound(p)
		}
		decoded := info.Clone()
		resp.Info = &decoded
		resp.Encoded = parser.EncodeGeneInfo(decoded)
		resp.Fields = describeFields(&decoded)

		if p.Kind == models.PathCell {
			idx := dna.Cells[p.Cell].Index
			resp.Kind = "cell"
			resp.Index = &idx
		} else {
			layer := dna.DNA[p.Dna].Genes[p.Layer]
			idx := layer.Genes[p.Gene].Index
			z := layer.ZLevel
			resp.Kind = "gene"
			resp.Index = &idx
			resp.ZLevel = &z
		}
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, resp)
}

// fieldNames lists the steppable fields of info in encoding order.
func fieldNames(info *models.DecodedGeneInfo) []string {
	names := []string{"neuronType", "tag"}
	for i := 0; i < models.PropertyCount; i++ {
		names = append(names, "property"+strconv.Itoa(i))
	}
	names = append(names, "bias")
	if info.Ampersand != nil {
		names = append(names, "ampersand")
	}
	names = append(names, "mirroring")
	for i := range info.OutputTags {
		names = append(names, fmt.Sprintf("outputTag%d.tag", i), fmt.Sprintf("outputTag%d.weight", i))
	}
	return names
}

func describeFields(info *models.DecodedGeneInfo) []nodeField {
	names := fieldNames(info)
	fields := make([]nodeField, 0, len(names))
	for _, name := range names {
		v, ok := info.Field(name)
		if !ok {
			continue
		}
		fields = append(fields, nodeField{
			Name:  name,
			Raw:   v.Int(),
			Char:  v.String(),
			Views: v.Views(),
		})
	}
	return fields
}

// HandlePutNode replaces the decoded info of a cell or gene. The body carries
// either a packed string or a structured info object.
func (h *NodeHandlerImpl) HandlePutNode(c echo.Context) error {
	id := c.Param("sessionId")
	p, err := selectionPath(c)
	if err != nil {
		return err
	}

	var req putNodeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var info models.DecodedGeneInfo
	switch {
	case req.Encoded != nil:
		info, err = parser.ParseGeneInfo(*req.Encoded)
		if err != nil {
			return fromSessionError(err, id)
		}
	case req.Info != nil:
		info = *req.Info
		if err := validateInfo(&info); err != nil {
			return err
		}
	default:
		return NewValidationError("encoded")
	}

	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		target, ok := p.Resolve(dna)
		if !ok {
			return nodeNotFound(p)
		}
		*target = info
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, editResponse{Session: sess, Path: p.String()})
}

func validateInfo(info *models.DecodedGeneInfo) error {
	for _, name := range fieldNames(info) {
		v, _ := info.Field(name)
		if *v > models.MaxPropertyValue {
			return NewBadRequestError(fmt.Sprintf("value %d of %s out of range", *v, name), nil)
		}
	}
	return nil
}

// HandleStepNode increases or decreases one field of a cell or gene
func (h *NodeHandlerImpl) HandleStepNode(c echo.Context) error {
	id := c.Param("sessionId")
	p, err := selectionPath(c)
	if err != nil {
		return err
	}

	var req stepNodeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Field == "" {
		return NewValidationError("field")
	}
	var increase bool
	switch strings.ToLower(req.Direction) {
	case "up", "increase", "+":
		increase = true
	case "down", "decrease", "-":
	default:
		return NewValidationError("direction")
	}

	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		info, ok := p.Resolve(dna)
		if !ok {
			return nodeNotFound(p)
		}
		v, ok := info.Field(req.Field)
		if !ok {
			return fmt.Errorf("%w: no field %q", session.ErrInvalidOperation, req.Field)
		}
		if increase {
			v.Increase()
		} else {
			v.Decrease()
		}
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, editResponse{Session: sess, Path: p.String()})
}

// HandleDeleteNode removes a cell, gene or DNA block
func (h *NodeHandlerImpl) HandleDeleteNode(c echo.Context) error {
	id := c.Param("sessionId")
	p, err := selectionPath(c)
	if err != nil {
		return err
	}

	var next string
	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		var ok bool
		next, ok = p.Remove(dna)
		if !ok {
			return nodeNotFound(p)
		}
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusOK, editResponse{Session: sess, Path: next})
}

// HandleAddCell places a default cell on a free grid position
func (h *NodeHandlerImpl) HandleAddCell(c echo.Context) error {
	id := c.Param("sessionId")

	var req addCellRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var path string
	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		if _, taken := dna.CellAt(req.X, req.Y); taken {
			return fmt.Errorf("%w: cell [%d][%d] already exists", session.ErrInvalidOperation, req.X, req.Y)
		}
		path = models.CellPath(dna.AddCell(req.X, req.Y)).String()
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusCreated, editResponse{Session: sess, Path: path})
}

// HandleAddGene adds a default gene to a DNA block at z-level z, opening the
// layer when it does not exist yet
func (h *NodeHandlerImpl) HandleAddGene(c echo.Context) error {
	id := c.Param("sessionId")
	dnaIdx, err := strconv.Atoi(c.Param("dna"))
	if err != nil || dnaIdx < 0 {
		return NewValidationError("dna")
	}

	var req addGeneRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var path string
	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		if dnaIdx >= len(dna.DNA) {
			return fmt.Errorf("%w: DNA block %d", session.ErrNodeNotFound, dnaIdx)
		}
		layers := &dna.DNA[dnaIdx].Genes

		layerIdx := -1
		for l := range *layers {
			if (*layers)[l].ZLevel == req.Z {
				layerIdx = l
				break
			}
		}
		if layerIdx < 0 {
			layers.PushGene(req.Z, models.GeneRecord{Index: models.GridIndex2{X: req.X, Y: req.Y}})
			path = models.GenePath(dnaIdx, len(*layers)-1, 0).String()
			return nil
		}

		geneIdx, _ := layers.AddGene(layerIdx, req.X, req.Y)
		path = models.GenePath(dnaIdx, layerIdx, geneIdx).String()
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusCreated, editResponse{Session: sess, Path: path})
}

// HandleAddDnaBlock appends an empty DNA block
func (h *NodeHandlerImpl) HandleAddDnaBlock(c echo.Context) error {
	id := c.Param("sessionId")

	var req addDnaBlockRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if strings.ContainsAny(req.Name, "\r\n") {
		return NewValidationError("name")
	}

	var path string
	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		var block models.DnaData
		if name := strings.TrimSpace(req.Name); name != "" {
			block.CommentName = &name
		}
		dna.DNA = append(dna.DNA, block)
		path = models.SelectionPath{Kind: models.PathDnaBlock, Dna: len(dna.DNA) - 1}.String()
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusCreated, editResponse{Session: sess, Path: path})
}

// HandleAddComment appends a free comment line to the genome
func (h *NodeHandlerImpl) HandleAddComment(c echo.Context) error {
	id := c.Param("sessionId")

	var req addCommentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || strings.ContainsAny(text, "\r\n") {
		return NewValidationError("text")
	}
	if !strings.HasPrefix(text, "//") {
		text = "// " + text
	}
	if !parser.IsFreeComment(text) {
		return NewBadRequestError("comment would be read back as metadata or a DNA header", nil)
	}

	sess, err := h.sessions.Update(id, func(dna *models.CreatureDNA) error {
		dna.Comments = append(dna.Comments, text)
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}

	return c.JSON(http.StatusCreated, editResponse{Session: sess})
}

type putNodeRequest struct {
	Encoded *string                 `json:"encoded"`
	Info    *models.DecodedGeneInfo `json:"info"`
}

type stepNodeRequest struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type addCellRequest struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
}

type addGeneRequest struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
	Z uint16 `json:"z"`
}

type addDnaBlockRequest struct {
	Name string `json:"name"`
}

type addCommentRequest struct {
	Text string `json:"text"`
}
