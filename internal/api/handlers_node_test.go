package api

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeURL(id, path string) string {
	return "/api/sessions/" + id + "/node?path=" + url.QueryEscape(path)
}

func TestGetNode(t *testing.T) {
	s := newTestServer(t, FileOptions{})
	id := s.openSample(t)

	t.Run("cell", func(t *testing.T) {
		rec := s.do(http.MethodGet, nodeURL(id, "CreatureDNA/cells/1"), "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var node nodeResponse
		decodeBody(t, rec, &node)
		assert.Equal(t, "cell", node.Kind)
		assert.Equal(t, &models.GridIndex2{X: 1, Y: 0}, node.Index)
		assert.Equal(t, "*A$A#A@A%A^A+A|A{A}A~A&Z_B[Cm", node.Encoded)

		names := make([]string, 0, len(node.Fields))
		for _, f := range node.Fields {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{
			"neuronType", "tag",
			"property0", "property1", "property2", "property3", "property4", "property5", "property6", "property7",
			"bias", "ampersand", "mirroring", "outputTag0.tag", "outputTag0.weight",
		}, names)

		amp := node.Fields[11]
		assert.Equal(t, uint8(25), amp.Raw)
		assert.Equal(t, "Z", amp.Char)
		assert.Equal(t, "25", amp.Views[models.ReprInt])
	})

	t.Run("gene", func(t *testing.T) {
		rec := s.do(http.MethodGet, nodeURL(id, "CreatureDNA/dna/0/genes/1/0"), "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var node nodeResponse
		decodeBody(t, rec, &node)
		assert.Equal(t, "gene", node.Kind)
		require.NotNil(t, node.ZLevel)
		assert.Equal(t, uint16(2), *node.ZLevel)
		assert.Equal(t, &models.GridIndex2{X: 0, Y: 1}, node.Index)
		assert.Equal(t, "*D$A#A@A%A^A+A|A{A}A~A", node.Encoded)
	})

	t.Run("dna block", func(t *testing.T) {
		rec := s.do(http.MethodGet, nodeURL(id, "CreatureDNA/dna/0"), "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var node nodeResponse
		decodeBody(t, rec, &node)
		assert.Equal(t, "dna", node.Kind)
		require.NotNil(t, node.Block)
		assert.Equal(t, "Walker", node.Block.DisplayName)
		assert.Equal(t, []uint16{0, 2}, node.Block.Layers)
		assert.Len(t, node.Block.Bounds, 2)
	})

	t.Run("errors", func(t *testing.T) {
		rec := s.do(http.MethodGet, nodeURL(id, "CreatureDNA/cells/9"), "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.do(http.MethodGet, nodeURL(id, "CreatureDNA/dna/3"), "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.do(http.MethodGet, nodeURL(id, "cells/1"), "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = s.do(http.MethodGet, "/api/sessions/"+id+"/node", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = s.do(http.MethodGet, nodeURL("unknown", "CreatureDNA/cells/0"), "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPutNode(t *testing.T) {
	s := newTestServer(t, FileOptions{})
	id := s.openSample(t)

	t.Run("packed string", func(t *testing.T) {
		rec := s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/cells/0"), `{"encoded":"*Z[AB"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp editResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "CreatureDNA/cells/0", resp.Path)
		assert.Equal(t, 1, resp.Session.Revision)

		text, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.Contains(t, text, "neuron_properties[0][0] = *Z$A#A@A%A^A+A|A{A}A~A[AB\n")
	})

	t.Run("structured info", func(t *testing.T) {
		rec := s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/dna/0/genes/0/1"), `{"info":{"neuronType":5,"bias":63,"ampersand":2}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		text, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.Contains(t, text, "gene[1][0][0] = *F$A#A@A%A^A+A|A{A}A~!&C\n")
	})

	t.Run("rejected edits leave the genome alone", func(t *testing.T) {
		before, err := s.sessions.Text(id)
		require.NoError(t, err)

		rec := s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/cells/0"), `{"encoded":"*A$"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		rec = s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/cells/0"), `{"info":{"tag":64}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/cells/0"), `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = s.doJSON(http.MethodPut, nodeURL(id, "CreatureDNA/cells/7"), `{"encoded":"*B"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		after, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestStepNode(t *testing.T) {
	s := newTestServer(t, FileOptions{})
	id := s.openSample(t)
	target := "/api/sessions/" + id + "/node/step?path=" + url.QueryEscape("CreatureDNA/cells/0")

	rec := s.doJSON(http.MethodPost, target, `{"field":"neuronType","direction":"up"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.doJSON(http.MethodPost, target, `{"field":"property7","direction":"-"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	genome, err := s.sessions.Genome(id)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyValue(2), genome.Cells[0].Decoded.NeuronType)
	assert.Equal(t, models.PropertyValue(9), genome.Cells[0].Decoded.Properties[7])

	rec = s.doJSON(http.MethodPost, target, `{"field":"ampersand","direction":"up"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.doJSON(http.MethodPost, target, `{"field":"tag","direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.doJSON(http.MethodPost, target, `{"direction":"up"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess, ok := s.sessions.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, 2, sess.Revision)
}

func TestDeleteNode(t *testing.T) {
	s := newTestServer(t, FileOptions{})
	id := s.openSample(t)

	rec := s.do(http.MethodDelete, nodeURL(id, "CreatureDNA/dna/0/genes/1/0"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp editResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "CreatureDNA/dna/0", resp.Path)
	assert.Equal(t, 2, resp.Session.GeneCount)

	rec = s.do(http.MethodDelete, nodeURL(id, "CreatureDNA/cells/0"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "CreatureDNA/cells", resp.Path)
	assert.Equal(t, 1, resp.Session.CellCount)

	rec = s.do(http.MethodDelete, nodeURL(id, "CreatureDNA/dna/0"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, 0, resp.Session.DnaCount)

	rec = s.do(http.MethodDelete, nodeURL(id, "CreatureDNA/dna/0"), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddNodes(t *testing.T) {
	s := newTestServer(t, FileOptions{})
	id := s.openSample(t)
	base := "/api/sessions/" + id

	pathOf := func(t *testing.T, method, target, body string, status int) string {
		t.Helper()
		rec := s.doJSON(method, target, body)
		require.Equal(t, status, rec.Code, rec.Body.String())
		var resp editResponse
		decodeBody(t, rec, &resp)
		return resp.Path
	}

	t.Run("cell", func(t *testing.T) {
		assert.Equal(t, "CreatureDNA/cells/2", pathOf(t, http.MethodPost, base+"/cells", `{"x":5,"y":6}`, http.StatusCreated))

		rec := s.doJSON(http.MethodPost, base+"/cells", `{"x":0,"y":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("gene on an existing layer", func(t *testing.T) {
		assert.Equal(t, "CreatureDNA/dna/0/genes/0/2",
			pathOf(t, http.MethodPost, base+"/dna/0/genes", `{"x":4,"y":4,"z":0}`, http.StatusCreated))
	})

	t.Run("gene on a new layer", func(t *testing.T) {
		assert.Equal(t, "CreatureDNA/dna/0/genes/2/0",
			pathOf(t, http.MethodPost, base+"/dna/0/genes", `{"x":1,"y":1,"z":9}`, http.StatusCreated))

		text, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.Contains(t, text, "gene[1][1][9] = *A$A#A@A%A^A+A|A{A}A~A\n")
	})

	t.Run("gene in a missing block", func(t *testing.T) {
		rec := s.doJSON(http.MethodPost, base+"/dna/4/genes", `{"x":1,"y":1,"z":0}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.doJSON(http.MethodPost, base+"/dna/x/genes", `{"x":1,"y":1,"z":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("dna block", func(t *testing.T) {
		assert.Equal(t, "CreatureDNA/dna/1", pathOf(t, http.MethodPost, base+"/dna", `{"name":" Swimmer "}`, http.StatusCreated))

		text, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(text, "//dna: Swimmer\n\n\n"))

		rec := s.doJSON(http.MethodPost, base+"/dna", `{"name":"Swim\nskin_color = red"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("comment", func(t *testing.T) {
		rec := s.doJSON(http.MethodPost, base+"/comments", `{"text":"// keep"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = s.doJSON(http.MethodPost, base+"/comments", `{"text":"two\nlines"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		for _, text := range []string{"//dna: ghost", "//name: Impostor", "  //version: 9"} {
			rec = s.doJSON(http.MethodPost, base+"/comments", `{"text":"`+text+`"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code, text)
		}

		text, err := s.sessions.Text(id)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(text, "\n// keep\n"))
	})

	sess, ok := s.sessions.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, 3, sess.CellCount)
	assert.Equal(t, 2, sess.DnaCount)
	assert.Equal(t, 5, sess.GeneCount)
}
