package parser

import (
	"errors"
	"fmt"

	"github.com/gridworld-editor/backend/internal/models"
)

// ErrUnstableGenome reports a genome whose text form does not read back as
// the same genome.
var ErrUnstableGenome = errors.New("genome does not survive a save and reload")

// VerifyRoundTrip serializes dna and checks that the text parses back to an
// equal genome. Free comments are skipped by the parser, so they are carried
// over before comparing; a comment that the parser would treat as metadata
// or a DNA header still shows up as a difference.
func VerifyRoundTrip(dna *models.CreatureDNA) (string, error) {
	if err := checkValues(dna); err != nil {
		return "", err
	}

	text := WriteCreatureDNA(dna)
	reparsed, err := ParseCreatureDNA(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnstableGenome, err)
	}
	reparsed.Comments = dna.Comments

	if again := WriteCreatureDNA(reparsed); again != text {
		return "", fmt.Errorf("%w: %s", ErrUnstableGenome, firstDifference(text, again))
	}
	return text, nil
}

func checkValues(dna *models.CreatureDNA) error {
	for i := range dna.Cells {
		if err := checkInfo(dna.Cells[i].Decoded); err != nil {
			return fmt.Errorf("%w: cell %d: %v", ErrUnstableGenome, i, err)
		}
	}
	for d := range dna.DNA {
		for l, layer := range dna.DNA[d].Genes {
			for g := range layer.Genes {
				if err := checkInfo(layer.Genes[g].Decoded); err != nil {
					return fmt.Errorf("%w: DNA block %d layer %d gene %d: %v", ErrUnstableGenome, d, l, g, err)
				}
			}
		}
	}
	return nil
}

func checkInfo(info models.DecodedGeneInfo) error {
	values := []models.PropertyValue{info.NeuronType, info.Tag, info.Bias, info.Mirroring}
	values = append(values, info.Properties[:]...)
	if info.Ampersand != nil {
		values = append(values, *info.Ampersand)
	}
	for _, out := range info.OutputTags {
		values = append(values, out.Tag, out.Weight)
	}

	for _, v := range values {
		if v > models.MaxPropertyValue {
			return fmt.Errorf("value %d out of range", v)
		}
	}
	return nil
}

// firstDifference names the first line where the two texts disagree.
func firstDifference(want, got string) string {
	line := 1
	start := 0
	for i := 0; i < len(want) && i < len(got); i++ {
		if want[i] != got[i] {
			return fmt.Sprintf("line %d reads back as %q", line, lineAt(got, start))
		}
		if want[i] == '\n' {
			line++
			start = i + 1
		}
	}
	return fmt.Sprintf("line %d reads back as %q", line, lineAt(got, start))
}

func lineAt(s string, start int) string {
	if start >= len(s) {
		return ""
	}
	end := start
	for end < len(s) && s[end] != '\n' {
		end++
	}
	return s[start:end]
}
