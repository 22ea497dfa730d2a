package parser

import (
	"fmt"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
)

// PropertyKey is one of the symbols that introduce a value in a packed property string.
type PropertyKey uint8

const (
	KeyNeuron PropertyKey = iota
	KeyTag
	KeyProp1
	KeyProp2
	KeyProp3
	KeyProp4
	KeyProp5
	KeyProp6
	KeyProp7
	KeyProp8
	KeyBias
	KeyAmpersand
	KeyMirror
	KeyOutputTag

	numPropertyKeys
)

// keySymbols is indexed by PropertyKey. The eight property keys are contiguous.
var keySymbols = [numPropertyKeys]byte{
	KeyNeuron:    '*',
	KeyTag:       '$',
	KeyProp1:     '#',
	KeyProp2:     '@',
	KeyProp3:     '%',
	KeyProp4:     '^',
	KeyProp5:     '+',
	KeyProp6:     '|',
	KeyProp7:     '{',
	KeyProp8:     '}',
	KeyBias:      '~',
	KeyAmpersand: '&',
	KeyMirror:    '_',
	KeyOutputTag: '[',
}

// keyBySymbol is the reverse of keySymbols; unused entries hold numPropertyKeys.
var keyBySymbol = func() (table [128]PropertyKey) {
	for i := range table {
		table[i] = numPropertyKeys
	}
	for k, sym := range keySymbols {
		table[sym] = PropertyKey(k)
	}
	return table
}()

// Symbol returns the character that introduces k.
func (k PropertyKey) Symbol() byte {
	return keySymbols[k]
}

// propertyKeyFromSymbol maps a key character to its PropertyKey.
func propertyKeyFromSymbol(c byte) (PropertyKey, bool) {
	if c >= 128 {
		return 0, false
	}
	k := keyBySymbol[c]
	return k, k != numPropertyKeys
}

// DecodeGeneInfo decodes a packed property string.
//
// Every key consumes one value character except '[' which consumes a tag
// and a weight. Keys that never appear keep their zero value; a repeated
// single-valued key overwrites the earlier value. The returned remainder is
// the unconsumed input, empty on success and positioned at the failing key
// when an error is returned.
func DecodeGeneInfo(encoded string) (models.DecodedGeneInfo, string, error) {
	var info models.DecodedGeneInfo

	i := 0
	for i < len(encoded) {
		key, ok := propertyKeyFromSymbol(encoded[i])
		if !ok {
			return info, encoded[i:], valueError(encoded, i, fmt.Sprintf("unknown property key %q", rune(encoded[i])))
		}

		if key == KeyOutputTag {
			tag, err := decodeValueAt(encoded, i+1)
			if err != nil {
				return info, encoded[i:], err
			}
			weight, err := decodeValueAt(encoded, i+2)
			if err != nil {
				return info, encoded[i:], err
			}
			info.OutputTags = append(info.OutputTags, models.OutputTag{Tag: tag, Weight: weight})
			i += 3
			continue
		}

		v, err := decodeValueAt(encoded, i+1)
		if err != nil {
			return info, encoded[i:], err
		}
		switch key {
		case KeyNeuron:
			info.NeuronType = v
		case KeyTag:
			info.Tag = v
		case KeyProp1, KeyProp2, KeyProp3, KeyProp4, KeyProp5, KeyProp6, KeyProp7, KeyProp8:
			info.Properties[key-KeyProp1] = v
		case KeyBias:
			info.Bias = v
		case KeyAmpersand:
			info.SetAmpersand(v)
		case KeyMirror:
			info.Mirroring = v
		}
		i += 2
	}

	return info, "", nil
}

// decodeValueAt decodes the value character at byte offset i.
func decodeValueAt(encoded string, i int) (models.PropertyValue, error) {
	if i >= len(encoded) {
		return 0, valueError(encoded, i, "missing value character")
	}
	v, ok := models.PropertyValueFromChar(rune(encoded[i]))
	if !ok {
		return 0, valueError(encoded, i, fmt.Sprintf("invalid value character %q", rune(encoded[i])))
	}
	return v, nil
}

func valueError(encoded string, offset int, reason string) *models.ParseError {
	return &models.ParseError{
		Kind:    models.ErrorKindValue,
		Content: encoded,
		Offset:  offset,
		Reason:  reason,
	}
}

// ParseGeneInfo decodes a packed string and rejects any unconsumed remainder.
func ParseGeneInfo(encoded string) (models.DecodedGeneInfo, error) {
	info, rest, err := DecodeGeneInfo(encoded)
	if err != nil {
		return models.DecodedGeneInfo{}, err
	}
	if rest != "" {
		return models.DecodedGeneInfo{}, &models.ParseError{
			Kind:    models.ErrorKindResidual,
			Content: encoded,
			Offset:  len(encoded) - len(rest),
			Reason:  "unconsumed characters after packed properties",
		}
	}
	return info, nil
}

// EncodeGeneInfo packs a DecodedGeneInfo.
//
// Neuron, tag, the eight properties and bias are always written. Ampersand
// is written only when present and mirroring only when non-zero, so a
// source string carrying "_A" re-encodes without it. Values outside the
// alphabet are clamped to the largest symbol.
func EncodeGeneInfo(info models.DecodedGeneInfo) string {
	var b strings.Builder
	b.Grow(24 + 3*len(info.OutputTags))

	writePair(&b, KeyNeuron, info.NeuronType)
	writePair(&b, KeyTag, info.Tag)
	for i, p := range info.Properties {
		writePair(&b, KeyProp1+PropertyKey(i), p)
	}
	writePair(&b, KeyBias, info.Bias)
	if info.Ampersand != nil {
		writePair(&b, KeyAmpersand, *info.Ampersand)
	}
	if info.Mirroring != 0 {
		writePair(&b, KeyMirror, info.Mirroring)
	}
	for _, out := range info.OutputTags {
		b.WriteByte(KeyOutputTag.Symbol())
		b.WriteByte(valueChar(out.Tag))
		b.WriteByte(valueChar(out.Weight))
	}
	return b.String()
}

func writePair(b *strings.Builder, key PropertyKey, v models.PropertyValue) {
	b.WriteByte(key.Symbol())
	b.WriteByte(valueChar(v))
}

func valueChar(v models.PropertyValue) byte {
	c, ok := v.Char()
	if !ok {
		c, _ = models.MaxPropertyValue.Char()
	}
	return c
}
