package models

import (
	"strconv"
	"strings"
)

// PropertyCount is the number of generic property slots on every gene.
const PropertyCount = 8

// OutputTag is one outgoing connection of a neuron: a target tag and its weight.
type OutputTag struct {
	Tag    PropertyValue `json:"tag" msgpack:"tag" yaml:"tag"`
	Weight PropertyValue `json:"weight" msgpack:"weight" yaml:"weight"`
}

// DecodedGeneInfo is the structured form of a packed property string.
// All eight properties are always present; Ampersand is the only optional slot.
type DecodedGeneInfo struct {
	NeuronType PropertyValue                `json:"neuronType" msgpack:"neuronType" yaml:"neuron_type"`
	Tag        PropertyValue                `json:"tag" msgpack:"tag" yaml:"tag"`
	Properties [PropertyCount]PropertyValue `json:"properties" msgpack:"properties" yaml:"properties"`
	Bias       PropertyValue                `json:"bias" msgpack:"bias" yaml:"bias"`
	Ampersand  *PropertyValue               `json:"ampersand,omitempty" msgpack:"ampersand,omitempty" yaml:"ampersand,omitempty"`
	Mirroring  PropertyValue                `json:"mirroring" msgpack:"mirroring" yaml:"mirroring"`
	OutputTags []OutputTag                  `json:"outputTags,omitempty" msgpack:"outputTags,omitempty" yaml:"output_tags,omitempty"`
}

// SetAmpersand stores v in the optional ampersand slot.
func (g *DecodedGeneInfo) SetAmpersand(v PropertyValue) {
	g.Ampersand = &v
}

// Clone returns a deep copy.
func (g DecodedGeneInfo) Clone() DecodedGeneInfo {
	out := g
	if g.Ampersand != nil {
		out.SetAmpersand(*g.Ampersand)
	}
	if g.OutputTags != nil {
		out.OutputTags = append([]OutputTag(nil), g.OutputTags...)
	}
	return out
}

// Field returns a pointer to the value addressed by name, for stepping edits.
// Names are "neuronType", "tag", "bias", "ampersand", "mirroring",
// "property0".."property7", and "outputTag{i}.tag" / "outputTag{i}.weight".
func (g *DecodedGeneInfo) Field(name string) (*PropertyValue, bool) {
	switch name {
	case "neuronType":
		return &g.NeuronType, true
	case "tag":
		return &g.Tag, true
	case "bias":
		return &g.Bias, true
	case "mirroring":
		return &g.Mirroring, true
	case "ampersand":
		if g.Ampersand == nil {
			return nil, false
		}
		return g.Ampersand, true
	}

	if rest, ok := strings.CutPrefix(name, "property"); ok {
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 || idx >= PropertyCount {
			return nil, false
		}
		return &g.Properties[idx], true
	}
	if rest, ok := strings.CutPrefix(name, "outputTag"); ok {
		num, part, found := strings.Cut(rest, ".")
		idx, err := strconv.Atoi(num)
		if !found || err != nil || idx < 0 || idx >= len(g.OutputTags) {
			return nil, false
		}
		switch part {
		case "tag":
			return &g.OutputTags[idx].Tag, true
		case "weight":
			return &g.OutputTags[idx].Weight, true
		}
	}
	return nil, false
}
