package models

// GeneRecord is a gene placed at a 2D position within its layer.
type GeneRecord struct {
	Index   GridIndex2      `json:"index" msgpack:"index" yaml:"index"`
	Decoded DecodedGeneInfo `json:"decoded" msgpack:"decoded" yaml:"decoded"`
}

// DnaLayer holds all genes of one z-level, in insertion order.
type DnaLayer struct {
	ZLevel uint16       `json:"zLevel" msgpack:"zLevel" yaml:"z_level"`
	Genes  []GeneRecord `json:"genes" msgpack:"genes" yaml:"genes"`
}

// DnaLayers groups genes by z-level. Layers keep the order in which their
// z-level was first pushed; they are never sorted.
type DnaLayers []DnaLayer

// PushGene appends the gene to the layer with the given z-level,
// creating that layer at the end of the list when it does not exist yet.
func (l *DnaLayers) PushGene(zLevel uint16, gene GeneRecord) {
	for i := range *l {
		if (*l)[i].ZLevel == zLevel {
			(*l)[i].Genes = append((*l)[i].Genes, gene)
			return
		}
	}
	*l = append(*l, DnaLayer{ZLevel: zLevel, Genes: []GeneRecord{gene}})
}

// GeneCount sums the genes across all layers.
func (l DnaLayers) GeneCount() int {
	n := 0
	for _, layer := range l {
		n += len(layer.Genes)
	}
	return n
}

// Gene returns the gene at (layerIdx, geneIdx).
func (l DnaLayers) Gene(layerIdx, geneIdx int) (*GeneRecord, bool) {
	if layerIdx < 0 || layerIdx >= len(l) {
		return nil, false
	}
	genes := l[layerIdx].Genes
	if geneIdx < 0 || geneIdx >= len(genes) {
		return nil, false
	}
	return &genes[geneIdx], true
}

// Layer looks up a layer by its z-level.
func (l DnaLayers) Layer(zLevel uint16) (*DnaLayer, bool) {
	for i := range l {
		if l[i].ZLevel == zLevel {
			return &l[i], true
		}
	}
	return nil, false
}

// AddGene appends a default gene at (x, y) to an existing layer and
// returns its index within the layer.
func (l DnaLayers) AddGene(layerIdx int, x, y uint16) (int, bool) {
	if layerIdx < 0 || layerIdx >= len(l) {
		return 0, false
	}
	l[layerIdx].Genes = append(l[layerIdx].Genes, GeneRecord{Index: GridIndex2{X: x, Y: y}})
	return len(l[layerIdx].Genes) - 1, true
}

// RemoveGene deletes a gene. A layer left empty is dropped as well.
func (l *DnaLayers) RemoveGene(layerIdx, geneIdx int) bool {
	if _, ok := l.Gene(layerIdx, geneIdx); !ok {
		return false
	}
	layer := &(*l)[layerIdx]
	layer.Genes = append(layer.Genes[:geneIdx], layer.Genes[geneIdx+1:]...)
	if len(layer.Genes) == 0 {
		*l = append((*l)[:layerIdx], (*l)[layerIdx+1:]...)
		if len(*l) == 0 {
			*l = nil
		}
	}
	return true
}

// Bounds returns the grid extent of one layer.
func (l DnaLayers) Bounds(layerIdx int) (GridBounds, bool) {
	if layerIdx < 0 || layerIdx >= len(l) {
		return GridBounds{}, false
	}
	b := NewGridBounds()
	for _, g := range l[layerIdx].Genes {
		b.Include(g.Index)
	}
	return b, true
}
