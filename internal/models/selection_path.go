package models

import (
	"fmt"
	"strconv"
	"strings"
)

const pathRoot = "CreatureDNA"

// PathKind tells what a SelectionPath points at.
type PathKind int

const (
	PathCell PathKind = iota + 1
	PathDnaBlock
	PathGene
)

// SelectionPath is a stable address of a node in a genome tree, e.g.
// "CreatureDNA/cells/3" or "CreatureDNA/dna/0/genes/1/2".
// Indices are list positions, so a path stays valid until the list is edited.
type SelectionPath struct {
	Kind  PathKind
	Cell  int
	Dna   int
	Layer int
	Gene  int
}

// CellPath addresses a cell.
func CellPath(idx int) SelectionPath {
	return SelectionPath{Kind: PathCell, Cell: idx}
}

// GenePath addresses a gene inside a DNA block layer.
func GenePath(dnaIdx, layerIdx, geneIdx int) SelectionPath {
	return SelectionPath{Kind: PathGene, Dna: dnaIdx, Layer: layerIdx, Gene: geneIdx}
}

// ParseSelectionPath parses the textual form produced by String.
func ParseSelectionPath(s string) (SelectionPath, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 3 || parts[0] != pathRoot {
		return SelectionPath{}, fmt.Errorf("invalid selection path: %q", s)
	}

	nums := make([]int, 0, 3)
	for _, p := range parts[2:] {
		if p == "genes" && len(nums) == 1 {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return SelectionPath{}, fmt.Errorf("invalid index %q in selection path %q", p, s)
		}
		nums = append(nums, n)
	}

	switch {
	case parts[1] == "cells" && len(parts) == 3:
		return CellPath(nums[0]), nil
	case parts[1] == "dna" && len(parts) == 3:
		return SelectionPath{Kind: PathDnaBlock, Dna: nums[0]}, nil
	case parts[1] == "dna" && len(parts) == 6 && parts[3] == "genes":
		return GenePath(nums[0], nums[1], nums[2]), nil
	}
	return SelectionPath{}, fmt.Errorf("invalid selection path: %q", s)
}

func (p SelectionPath) String() string {
	switch p.Kind {
	case PathCell:
		return fmt.Sprintf("%s/cells/%d", pathRoot, p.Cell)
	case PathDnaBlock:
		return fmt.Sprintf("%s/dna/%d", pathRoot, p.Dna)
	case PathGene:
		return fmt.Sprintf("%s/dna/%d/genes/%d/%d", pathRoot, p.Dna, p.Layer, p.Gene)
	}
	return pathRoot
}

// Resolve returns the decoded info of the addressed cell or gene.
func (p SelectionPath) Resolve(dna *CreatureDNA) (*DecodedGeneInfo, bool) {
	switch p.Kind {
	case PathCell:
		if p.Cell < 0 || p.Cell >= len(dna.Cells) {
			return nil, false
		}
		return &dna.Cells[p.Cell].Decoded, true
	case PathGene:
		if p.Dna < 0 || p.Dna >= len(dna.DNA) {
			return nil, false
		}
		gene, ok := dna.DNA[p.Dna].Genes.Gene(p.Layer, p.Gene)
		if !ok {
			return nil, false
		}
		return &gene.Decoded, true
	}
	return nil, false
}

// Remove deletes the addressed node and returns the path the selection
// should move to afterwards.
func (p SelectionPath) Remove(dna *CreatureDNA) (string, bool) {
	switch p.Kind {
	case PathCell:
		if !dna.RemoveCell(p.Cell) {
			return "", false
		}
		return pathRoot + "/cells", true
	case PathDnaBlock:
		if p.Dna < 0 || p.Dna >= len(dna.DNA) {
			return "", false
		}
		dna.DNA = append(dna.DNA[:p.Dna], dna.DNA[p.Dna+1:]...)
		if len(dna.DNA) == 0 {
			dna.DNA = nil
		}
		return pathRoot + "/dna", true
	case PathGene:
		if p.Dna < 0 || p.Dna >= len(dna.DNA) {
			return "", false
		}
		layers := &dna.DNA[p.Dna].Genes
		before := len(*layers)
		if !layers.RemoveGene(p.Layer, p.Gene) {
			return "", false
		}
		if len(*layers) < before {
			return SelectionPath{Kind: PathDnaBlock, Dna: p.Dna}.String(), true
		}
		next := min(p.Gene, len((*layers)[p.Layer].Genes)-1)
		return GenePath(p.Dna, p.Layer, next).String(), true
	}
	return "", false
}
