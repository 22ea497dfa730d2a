package parser

import (
	"fmt"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
)

const (
	dividerLine    = "//--------------------------------------------------"
	markerCreature = "//creature:"
	markerCells    = "//cells:"
)

// WriteCreatureDNA serializes a genome to its text form.
// The output parses back to an equal CreatureDNA; layers are written in
// list order, which is the order their z-level was first seen.
func WriteCreatureDNA(dna *models.CreatureDNA) string {
	var b strings.Builder

	b.WriteString(dividerLine + "\n")
	writeOptional(&b, prefixMetaName, dna.Metadata.Name)
	writeOptional(&b, prefixMetaDate, dna.Metadata.Date)
	writeOptional(&b, prefixMetaVersion, dna.Metadata.Version)
	b.WriteString("\n")

	b.WriteString(markerCreature + "\n")
	if dna.Creature.SkinColor != nil {
		fmt.Fprintf(&b, "%s = %s\n", keySkinColor, *dna.Creature.SkinColor)
	}
	b.WriteString("\n")

	b.WriteString(markerCells + "\n")
	for _, cell := range dna.Cells {
		fmt.Fprintf(&b, "%s[%d][%d] = %s\n", keyNeuronProperties, cell.Index.X, cell.Index.Y, EncodeGeneInfo(cell.Decoded))
	}
	b.WriteString("\n")

	for i := range dna.DNA {
		writeDnaBlock(&b, &dna.DNA[i])
	}

	for _, comment := range dna.Comments {
		b.WriteString(comment + "\n")
	}

	return b.String()
}

func writeDnaBlock(b *strings.Builder, block *models.DnaData) {
	b.WriteString(prefixDnaBlock)
	if block.CommentName != nil && *block.CommentName != "" {
		b.WriteString(" " + *block.CommentName)
	}
	b.WriteString("\n")

	if block.Name != nil {
		fmt.Fprintf(b, "%s[%d][%d] = %s\n", keyDnaName, block.Name.Index.X, block.Name.Index.Y, block.Name.Name)
	}
	if block.Location != nil {
		fmt.Fprintf(b, "%s = [%d][%d]\n", keyDnaLocation, block.Location.X, block.Location.Y)
	}
	if block.Creator != nil {
		fmt.Fprintf(b, "%s[%d][%d] = %s\n", keyDnaCreator, block.Creator.Index.X, block.Creator.Index.Y, block.Creator.Creator)
	}
	b.WriteString("\n")

	for _, layer := range block.Genes {
		for _, gene := range layer.Genes {
			fmt.Fprintf(b, "%s[%d][%d][%d] = %s\n", keyGene, gene.Index.X, gene.Index.Y, layer.ZLevel, EncodeGeneInfo(gene.Decoded))
		}
	}
	b.WriteString("\n")
}

func writeOptional(b *strings.Builder, prefix string, value *string) {
	if value == nil {
		return
	}
	b.WriteString(prefix + " " + *value + "\n")
}
