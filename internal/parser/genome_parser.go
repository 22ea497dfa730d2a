package parser

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
)

// Line prefixes of the genome text format.
const (
	prefixMetaName    = "//name:"
	prefixMetaDate    = "//date:"
	prefixMetaVersion = "//version:"
	prefixDnaBlock    = "//dna:"
	prefixComment     = "//"

	keySkinColor        = "skin_color"
	keyNeuronProperties = "neuron_properties"
	keyDnaName          = "dna_name"
	keyDnaCreator       = "dna_creator"
	keyDnaLocation      = "dna_location"
	keyGene             = "gene"
)

// maxLineLength bounds a single genome line.
const maxLineLength = 1024 * 1024

// genomeParser carries the state of one ParseCreatureDNA call.
type genomeParser struct {
	dna     models.CreatureDNA
	current int // index of the open DNA block, -1 when none is open
	lineNum int
	line    string
}

// ParseCreatureDNA parses a whole genome file. The first error aborts the
// parse and no partial genome is returned.
func ParseCreatureDNA(content string) (*models.CreatureDNA, error) {
	p := &genomeParser{current: -1}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		p.lineNum++
		p.line = strings.TrimSpace(scanner.Text())
		if p.line == "" {
			continue
		}
		if err := p.parseLine(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &models.ParseError{
				Kind:   models.ErrorKindStructural,
				Line:   p.lineNum + 1,
				Reason: "line too long",
			}
		}
		return nil, fmt.Errorf("reading genome: %w", err)
	}

	return &p.dna, nil
}

func (p *genomeParser) parseLine() error {
	line := p.line

	switch {
	case strings.HasPrefix(line, prefixMetaName):
		p.dna.Metadata.Name = textValue(line[len(prefixMetaName):])
	case strings.HasPrefix(line, prefixMetaDate):
		p.dna.Metadata.Date = textValue(line[len(prefixMetaDate):])
	case strings.HasPrefix(line, prefixMetaVersion):
		p.dna.Metadata.Version = textValue(line[len(prefixMetaVersion):])

	case strings.HasPrefix(line, prefixDnaBlock):
		var block models.DnaData
		if name := strings.TrimSpace(line[len(prefixDnaBlock):]); name != "" {
			block.CommentName = &name
		}
		p.dna.DNA = append(p.dna.DNA, block)
		p.current = len(p.dna.DNA) - 1

	case strings.HasPrefix(line, keySkinColor):
		value, err := p.assignedValue(line[len(keySkinColor):])
		if err != nil {
			return err
		}
		p.dna.Creature.SkinColor = &value

	case strings.HasPrefix(line, keyNeuronProperties+"["):
		idx, rest, err := p.indices(line[len(keyNeuronProperties):], 2)
		if err != nil {
			return err
		}
		info, err := p.geneInfo(rest)
		if err != nil {
			return err
		}
		p.dna.Cells = append(p.dna.Cells, models.NeuronProperties{
			Index:   models.GridIndex2{X: idx[0], Y: idx[1]},
			Decoded: info,
		})

	case strings.HasPrefix(line, keyDnaName+"["):
		idx, rest, err := p.indices(line[len(keyDnaName):], 2)
		if err != nil {
			return err
		}
		name, err := p.assignedValue(rest)
		if err != nil {
			return err
		}
		p.currentBlock().Name = &models.DnaNameRecord{
			Index: models.GridIndex2{X: idx[0], Y: idx[1]},
			Name:  name,
		}

	case strings.HasPrefix(line, keyDnaCreator+"["):
		idx, rest, err := p.indices(line[len(keyDnaCreator):], 2)
		if err != nil {
			return err
		}
		creator, err := p.assignedValue(rest)
		if err != nil {
			return err
		}
		p.currentBlock().Creator = &models.DnaCreatorRecord{
			Index:   models.GridIndex2{X: idx[0], Y: idx[1]},
			Creator: creator,
		}

	case strings.HasPrefix(line, keyDnaLocation):
		value, err := p.assignedValue(line[len(keyDnaLocation):])
		if err != nil {
			return err
		}
		idx, rest, err := p.indices(value, 2)
		if err != nil {
			return err
		}
		if strings.TrimSpace(rest) != "" {
			return p.structuralError("trailing text after location")
		}
		p.currentBlock().Location = &models.GridIndex2{X: idx[0], Y: idx[1]}

	case strings.HasPrefix(line, keyGene+"["):
		idx, rest, err := p.indices(line[len(keyGene):], 3)
		if err != nil {
			return err
		}
		info, err := p.geneInfo(rest)
		if err != nil {
			return err
		}
		p.currentBlock().Genes.PushGene(idx[2], models.GeneRecord{
			Index:   models.GridIndex2{X: idx[0], Y: idx[1]},
			Decoded: info,
		})

	case strings.HasPrefix(line, prefixComment):
		// free comment

	default:
		return p.structuralError("unrecognized line")
	}

	return nil
}

// currentBlock returns the open DNA block, opening a new one if none is open.
func (p *genomeParser) currentBlock() *models.DnaData {
	if p.current < 0 {
		p.dna.DNA = append(p.dna.DNA, models.DnaData{})
		p.current = len(p.dna.DNA) - 1
	}
	return &p.dna.DNA[p.current]
}

// indices reads n bracketed unsigned 16-bit indices from the start of s.
func (p *genomeParser) indices(s string, n int) ([3]uint16, string, error) {
	var out [3]uint16
	for k := 0; k < n; k++ {
		if !strings.HasPrefix(s, "[") {
			return out, s, p.structuralError("expected '[' before index")
		}
		s = s[1:]

		j := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == 0 {
			return out, s, p.structuralError("expected digits in index")
		}
		v, err := strconv.ParseUint(s[:j], 10, 16)
		if err != nil {
			return out, s, p.structuralError(fmt.Sprintf("index %s out of range", s[:j]))
		}
		out[k] = uint16(v)
		s = s[j:]

		if !strings.HasPrefix(s, "]") {
			return out, s, p.structuralError("missing ']' after index")
		}
		s = s[1:]
	}
	return out, s, nil
}

// assignedValue expects "= value" and returns the trimmed value.
func (p *genomeParser) assignedValue(s string) (string, error) {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, "=") {
		return "", p.structuralError("expected '='")
	}
	return strings.TrimSpace(s[1:]), nil
}

// geneInfo decodes the packed string assigned in s.
func (p *genomeParser) geneInfo(s string) (models.DecodedGeneInfo, error) {
	encoded, err := p.assignedValue(s)
	if err != nil {
		return models.DecodedGeneInfo{}, err
	}
	info, err := ParseGeneInfo(encoded)
	if err != nil {
		var pe *models.ParseError
		if errors.As(err, &pe) {
			return models.DecodedGeneInfo{}, &models.ParseError{
				Kind:    pe.Kind,
				Line:    p.lineNum,
				Content: p.line,
				Offset:  pe.Offset,
				Reason:  fmt.Sprintf("%s at offset %d of packed properties %q", pe.Reason, pe.Offset, encoded),
			}
		}
		return models.DecodedGeneInfo{}, err
	}
	return info, nil
}

func (p *genomeParser) structuralError(reason string) *models.ParseError {
	return &models.ParseError{
		Kind:    models.ErrorKindStructural,
		Line:    p.lineNum,
		Content: p.line,
		Reason:  reason,
	}
}

// IsFreeComment reports whether line is a "//" comment the parser skips,
// as opposed to a metadata line or a DNA block header.
func IsFreeComment(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefixComment) {
		return false
	}
	for _, prefix := range []string{prefixMetaName, prefixMetaDate, prefixMetaVersion, prefixDnaBlock} {
		if strings.HasPrefix(line, prefix) {
			return false
		}
	}
	return true
}

func textValue(s string) *string {
	v := strings.TrimSpace(s)
	return &v
}
