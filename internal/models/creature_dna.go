package models

import "fmt"

// GridIndex2 is a 2D grid coordinate.
type GridIndex2 struct {
	X uint16 `json:"x" msgpack:"x" yaml:"x"`
	Y uint16 `json:"y" msgpack:"y" yaml:"y"`
}

// GridIndex3 is a 2D grid coordinate plus a z-level.
type GridIndex3 struct {
	X uint16 `json:"x" msgpack:"x" yaml:"x"`
	Y uint16 `json:"y" msgpack:"y" yaml:"y"`
	Z uint16 `json:"z" msgpack:"z" yaml:"z"`
}

// XY drops the z-level.
func (g GridIndex3) XY() GridIndex2 {
	return GridIndex2{X: g.X, Y: g.Y}
}

// NeuronProperties is a placed cell of the creature.
type NeuronProperties struct {
	Index   GridIndex2      `json:"index" msgpack:"index" yaml:"index"`
	Decoded DecodedGeneInfo `json:"decoded" msgpack:"decoded" yaml:"decoded"`
}

// DnaNameRecord names a DNA block. The game reads at most 9 characters.
type DnaNameRecord struct {
	Index GridIndex2 `json:"index" msgpack:"index" yaml:"index"`
	Name  string     `json:"name" msgpack:"name" yaml:"name"`
}

// DnaCreatorRecord attributes a DNA block to its creator.
type DnaCreatorRecord struct {
	Index   GridIndex2 `json:"index" msgpack:"index" yaml:"index"`
	Creator string     `json:"creator" msgpack:"creator" yaml:"creator"`
}

// DnaData is one DNA block of a genome.
type DnaData struct {
	CommentName *string           `json:"commentName,omitempty" msgpack:"commentName,omitempty" yaml:"comment_name,omitempty"`
	Name        *DnaNameRecord    `json:"name,omitempty" msgpack:"name,omitempty" yaml:"name,omitempty"`
	Location    *GridIndex2       `json:"location,omitempty" msgpack:"location,omitempty" yaml:"location,omitempty"`
	Creator     *DnaCreatorRecord `json:"creator,omitempty" msgpack:"creator,omitempty" yaml:"creator,omitempty"`
	Genes       DnaLayers         `json:"genes" msgpack:"genes" yaml:"genes"`
}

// DisplayName picks the comment name, then the record name, then a positional label.
func (d *DnaData) DisplayName(idx int) string {
	if d.CommentName != nil && *d.CommentName != "" {
		return *d.CommentName
	}
	if d.Name != nil && d.Name.Name != "" {
		return d.Name.Name
	}
	return fmt.Sprintf("DNA[%d]", idx)
}

// DnaMetadata is the free-text header of a genome file.
type DnaMetadata struct {
	Name    *string `json:"name,omitempty" msgpack:"name,omitempty" yaml:"name,omitempty"`
	Date    *string `json:"date,omitempty" msgpack:"date,omitempty" yaml:"date,omitempty"`
	Version *string `json:"version,omitempty" msgpack:"version,omitempty" yaml:"version,omitempty"`
}

// CreatureData holds creature-wide attributes.
type CreatureData struct {
	SkinColor *string `json:"skinColor,omitempty" msgpack:"skinColor,omitempty" yaml:"skin_color,omitempty"`
}

// CreatureDNA is a complete genome.
type CreatureDNA struct {
	Metadata DnaMetadata        `json:"metadata" msgpack:"metadata" yaml:"metadata"`
	Creature CreatureData       `json:"creature" msgpack:"creature" yaml:"creature"`
	Cells    []NeuronProperties `json:"cells" msgpack:"cells" yaml:"cells"`
	DNA      []DnaData          `json:"dna" msgpack:"dna" yaml:"dna"`
	Comments []string           `json:"comments,omitempty" msgpack:"comments,omitempty" yaml:"comments,omitempty"`
}

// GeneCount sums the genes of every DNA block.
func (c *CreatureDNA) GeneCount() int {
	n := 0
	for _, d := range c.DNA {
		n += d.Genes.GeneCount()
	}
	return n
}

// AddCell appends a default cell at (x, y) and returns its index.
func (c *CreatureDNA) AddCell(x, y uint16) int {
	c.Cells = append(c.Cells, NeuronProperties{Index: GridIndex2{X: x, Y: y}})
	return len(c.Cells) - 1
}

// RemoveCell deletes the cell at idx.
func (c *CreatureDNA) RemoveCell(idx int) bool {
	if idx < 0 || idx >= len(c.Cells) {
		return false
	}
	c.Cells = append(c.Cells[:idx], c.Cells[idx+1:]...)
	if len(c.Cells) == 0 {
		c.Cells = nil
	}
	return true
}

// CellAt finds the first cell placed at (x, y).
func (c *CreatureDNA) CellAt(x, y uint16) (int, bool) {
	for i, cell := range c.Cells {
		if cell.Index.X == x && cell.Index.Y == y {
			return i, true
		}
	}
	return 0, false
}

// CellBounds returns the grid extent of the cell list.
func (c *CreatureDNA) CellBounds() GridBounds {
	b := NewGridBounds()
	for _, cell := range c.Cells {
		b.Include(cell.Index)
	}
	return b
}

// MinGridExtent is the smallest grid the editor ever shows.
const MinGridExtent uint16 = 8

// GridBounds is the inclusive extent of a grid of placed items.
type GridBounds struct {
	MaxX uint16 `json:"maxX"`
	MaxY uint16 `json:"maxY"`
}

// NewGridBounds returns the minimum extent.
func NewGridBounds() GridBounds {
	return GridBounds{MaxX: MinGridExtent, MaxY: MinGridExtent}
}

// Include grows the bounds to cover idx.
func (b *GridBounds) Include(idx GridIndex2) {
	b.MaxX = max(b.MaxX, idx.X)
	b.MaxY = max(b.MaxY, idx.Y)
}

// Clone returns a deep copy of the genome.
func (c *CreatureDNA) Clone() *CreatureDNA {
	out := &CreatureDNA{
		Metadata: DnaMetadata{
			Name:    cloneString(c.Metadata.Name),
			Date:    cloneString(c.Metadata.Date),
			Version: cloneString(c.Metadata.Version),
		},
		Creature: CreatureData{SkinColor: cloneString(c.Creature.SkinColor)},
	}
	if c.Cells != nil {
		out.Cells = make([]NeuronProperties, len(c.Cells))
		for i, cell := range c.Cells {
			out.Cells[i] = NeuronProperties{Index: cell.Index, Decoded: cell.Decoded.Clone()}
		}
	}
	if c.DNA != nil {
		out.DNA = make([]DnaData, len(c.DNA))
		for i := range c.DNA {
			out.DNA[i] = c.DNA[i].Clone()
		}
	}
	if c.Comments != nil {
		out.Comments = append([]string(nil), c.Comments...)
	}
	return out
}

// Clone returns a deep copy of the DNA block.
func (d *DnaData) Clone() DnaData {
	out := DnaData{CommentName: cloneString(d.CommentName)}
	if d.Name != nil {
		name := *d.Name
		out.Name = &name
	}
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	if d.Creator != nil {
		creator := *d.Creator
		out.Creator = &creator
	}
	if d.Genes != nil {
		out.Genes = make(DnaLayers, len(d.Genes))
		for i, layer := range d.Genes {
			genes := make([]GeneRecord, len(layer.Genes))
			for k, g := range layer.Genes {
				genes[k] = GeneRecord{Index: g.Index, Decoded: g.Decoded.Clone()}
			}
			out.Genes[i] = DnaLayer{ZLevel: layer.ZLevel, Genes: genes}
		}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
