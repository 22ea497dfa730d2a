// handlers_query.go - Gene index query handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/gridworld-editor/backend/internal/index"
	"github.com/labstack/echo/v4"
)

// QueryHandlerImpl implements the QueryHandler interface
type QueryHandlerImpl struct {
	sessions SessionManager
}

// NewQueryHandler creates a new query handler instance
func NewQueryHandler(sessions SessionManager) QueryHandler {
	return &QueryHandlerImpl{sessions: sessions}
}

// HandleSearch filters the cells and genes of a session.
// Query params: source, neuronType, tag, dna, z, limit.
func (h *QueryHandlerImpl) HandleSearch(c echo.Context) error {
	id := c.Param("sessionId")

	q, err := parseQuery(c)
	if err != nil {
		return err
	}

	hits, err := h.sessions.Search(c.Request().Context(), id, q)
	if err != nil {
		return fromSessionError(err, id)
	}
	if hits == nil {
		hits = []index.Hit{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"total": len(hits),
	})
}

// HandleStats returns neuron type counts of a session
func (h *QueryHandlerImpl) HandleStats(c echo.Context) error {
	id := c.Param("sessionId")

	counts, err := h.sessions.TypeCounts(c.Request().Context(), id)
	if err != nil {
		return fromSessionError(err, id)
	}
	if counts == nil {
		counts = []index.TypeCount{}
	}

	return c.JSON(http.StatusOK, counts)
}

func parseQuery(c echo.Context) (index.Query, error) {
	q := index.Query{
		NeuronType: c.QueryParam("neuronType"),
		Tag:        c.QueryParam("tag"),
		Limit:      200,
	}

	switch src := index.Source(c.QueryParam("source")); src {
	case "", index.SourceCell, index.SourceGene:
		q.Source = src
	default:
		return q, NewValidationError("source")
	}

	optionalInt := func(name string, dst **int) error {
		s := c.QueryParam(name)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return NewValidationError(name)
		}
		*dst = &n
		return nil
	}
	if err := optionalInt("dna", &q.DnaIndex); err != nil {
		return q, err
	}
	if err := optionalInt("z", &q.ZLevel); err != nil {
		return q, err
	}

	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, NewValidationError("limit")
		}
		q.Limit = n
	}

	return q, nil
}
