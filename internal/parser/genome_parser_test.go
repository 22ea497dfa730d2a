package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreatureDNA(t *testing.T) {
	dna, err := ParseCreatureDNA(testutil.SampleGenome)
	require.NoError(t, err)

	t.Run("metadata", func(t *testing.T) {
		require.NotNil(t, dna.Metadata.Name)
		assert.Equal(t, "Crab", *dna.Metadata.Name)
		assert.Equal(t, "2024-05-01", *dna.Metadata.Date)
		assert.Equal(t, "1.0", *dna.Metadata.Version)
		require.NotNil(t, dna.Creature.SkinColor)
		assert.Equal(t, "#ff8800", *dna.Creature.SkinColor)
	})

	t.Run("cells", func(t *testing.T) {
		require.Len(t, dna.Cells, 2)
		assert.Equal(t, models.GridIndex2{X: 1, Y: 0}, dna.Cells[1].Index)

		info := dna.Cells[1].Decoded
		require.NotNil(t, info.Ampersand)
		assert.Equal(t, models.PropertyValue(25), *info.Ampersand)
		assert.Equal(t, models.PropertyValue(1), info.Mirroring)
		assert.Equal(t, []models.OutputTag{{Tag: 2, Weight: 38}}, info.OutputTags)
	})

	t.Run("dna block", func(t *testing.T) {
		require.Len(t, dna.DNA, 1)
		block := dna.DNA[0]
		assert.Equal(t, "Walker", *block.CommentName)
		assert.Equal(t, &models.DnaNameRecord{Name: "walker"}, block.Name)
		assert.Equal(t, &models.GridIndex2{X: 3, Y: 4}, block.Location)
		assert.Equal(t, &models.DnaCreatorRecord{Creator: "alice"}, block.Creator)

		require.Len(t, block.Genes, 2)
		assert.Equal(t, uint16(0), block.Genes[0].ZLevel)
		assert.Len(t, block.Genes[0].Genes, 2)
		assert.Equal(t, uint16(2), block.Genes[1].ZLevel)
		assert.Equal(t, models.GridIndex2{X: 0, Y: 1}, block.Genes[1].Genes[0].Index)
		assert.Equal(t, models.PropertyValue(3), block.Genes[1].Genes[0].Decoded.NeuronType)
	})

	t.Run("serializes back to the same text", func(t *testing.T) {
		assert.Equal(t, testutil.SampleGenome, WriteCreatureDNA(dna))
	})
}

func TestParseCreatureDNA_Blocks(t *testing.T) {
	t.Run("dna lines without a header open a block", func(t *testing.T) {
		dna, err := ParseCreatureDNA("gene[1][2][3] = *B\ndna_location = [5][6]\n")
		require.NoError(t, err)
		require.Len(t, dna.DNA, 1)
		assert.Nil(t, dna.DNA[0].CommentName)
		assert.Equal(t, &models.GridIndex2{X: 5, Y: 6}, dna.DNA[0].Location)

		layer, ok := dna.DNA[0].Genes.Layer(3)
		require.True(t, ok)
		assert.Equal(t, models.GridIndex2{X: 1, Y: 2}, layer.Genes[0].Index)
	})

	t.Run("lines attach to the latest header", func(t *testing.T) {
		dna, err := ParseCreatureDNA("//dna: First\ngene[0][0][0] = *A\n//dna:\ngene[0][0][1] = *B\ngene[1][0][1] = *C\n")
		require.NoError(t, err)
		require.Len(t, dna.DNA, 2)
		assert.Equal(t, 1, dna.DNA[0].Genes.GeneCount())
		assert.Nil(t, dna.DNA[1].CommentName)
		assert.Equal(t, 2, dna.DNA[1].Genes.GeneCount())
	})

	t.Run("free comments and blank lines are skipped", func(t *testing.T) {
		dna, err := ParseCreatureDNA("\n  // a note\n\n//name:\n\t skin_color = #abc  \n")
		require.NoError(t, err)
		assert.Empty(t, dna.Comments)
		assert.Equal(t, "", *dna.Metadata.Name)
		assert.Equal(t, "#abc", *dna.Creature.SkinColor)
	})

	t.Run("empty input", func(t *testing.T) {
		dna, err := ParseCreatureDNA("")
		require.NoError(t, err)
		assert.Equal(t, &models.CreatureDNA{}, dna)
	})
}

func TestParseCreatureDNA_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		kind    models.ErrorKind
	}{
		{"unrecognized line", testutil.BrokenGenome, 3, models.ErrorKindStructural},
		{"index out of range", "gene[70000][0][0] = *A", 1, models.ErrorKindStructural},
		{"missing index", "//cells:\ngene[0][0] = *A", 2, models.ErrorKindStructural},
		{"non-numeric index", "neuron_properties[a][0] = *A", 1, models.ErrorKindStructural},
		{"unclosed index", "dna_name[0 = x", 1, models.ErrorKindStructural},
		{"missing assignment", "skin_color #fff", 1, models.ErrorKindStructural},
		{"trailing location text", "dna_location = [1][2] x", 1, models.ErrorKindStructural},
		{"bad packed value", "neuron_properties[0][0] = *A$", 1, models.ErrorKindValue},
		{"unknown packed key", "\n\ngene[0][0][0] = *AxA", 3, models.ErrorKindValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dna, err := ParseCreatureDNA(tt.content)
			require.Error(t, err)
			assert.Nil(t, dna)

			var pe *models.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.NotEmpty(t, pe.Content)
		})
	}

	t.Run("error after valid lines rejects the file", func(t *testing.T) {
		content := strings.Replace(testutil.SampleGenome, "gene[0][1][2]", "gene[0][1]", 1)
		dna, err := ParseCreatureDNA(content)
		require.Error(t, err)
		assert.Nil(t, dna)
	})
}

func TestWriteCreatureDNA(t *testing.T) {
	t.Run("empty genome", func(t *testing.T) {
		out := WriteCreatureDNA(&models.CreatureDNA{})
		assert.Equal(t, dividerLine+"\n\n//creature:\n\n//cells:\n\n", out)

		dna, err := ParseCreatureDNA(out)
		require.NoError(t, err)
		assert.Equal(t, &models.CreatureDNA{}, dna)
	})

	t.Run("comments follow the dna blocks", func(t *testing.T) {
		dna, err := ParseCreatureDNA(testutil.SampleGenome)
		require.NoError(t, err)
		dna.Comments = []string{"// tuned by hand"}

		out := WriteCreatureDNA(dna)
		assert.True(t, strings.HasSuffix(out, "\n\n// tuned by hand\n"))

		reparsed, err := ParseCreatureDNA(out)
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleGenome, WriteCreatureDNA(reparsed))
	})

	t.Run("unnamed block", func(t *testing.T) {
		dna := &models.CreatureDNA{DNA: []models.DnaData{{}}}
		dna.DNA[0].Genes.PushGene(4, models.GeneRecord{Index: models.GridIndex2{X: 2, Y: 3}})

		out := WriteCreatureDNA(dna)
		assert.Contains(t, out, "\n//dna:\n\ngene[2][3][4] = *A$A#A@A%A^A+A|A{A}A~A\n\n")

		reparsed, err := ParseCreatureDNA(out)
		require.NoError(t, err)
		assert.Equal(t, dna, reparsed)
	})

	t.Run("layers keep first-seen order", func(t *testing.T) {
		enc := EncodeGeneInfo(models.DecodedGeneInfo{})
		in := "//dna: Order\n" +
			"gene[0][0][5] = " + enc + "\n" +
			"gene[1][0][0] = " + enc + "\n" +
			"gene[2][0][5] = " + enc + "\n"

		dna, err := ParseCreatureDNA(in)
		require.NoError(t, err)
		require.Len(t, dna.DNA[0].Genes, 2)
		assert.Equal(t, uint16(5), dna.DNA[0].Genes[0].ZLevel)
		assert.Equal(t, uint16(0), dna.DNA[0].Genes[1].ZLevel)

		out := WriteCreatureDNA(dna)
		first := strings.Index(out, "gene[0][0][5]")
		second := strings.Index(out, "gene[2][0][5]")
		last := strings.Index(out, "gene[1][0][0]")
		require.True(t, first >= 0 && second >= 0 && last >= 0, out)
		assert.Less(t, first, second)
		assert.Less(t, second, last)

		reparsed, err := ParseCreatureDNA(out)
		require.NoError(t, err)
		assert.Equal(t, dna, reparsed)
	})
}
