// Package models contains domain types for the Gridworld genome editor.
package models

import (
	"fmt"
	"strconv"
)

// valueAlphabet holds the packed character for each value; index i is value i.
const valueAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789?!"

// MaxPropertyValue is the largest value a single packed character can hold.
const MaxPropertyValue = PropertyValue(len(valueAlphabet) - 1)

// PropertyValue is the 0..63 byte behind every packed genome property.
type PropertyValue uint8

// Representation selects one numeric interpretation of a PropertyValue.
type Representation string

const (
	ReprInt       Representation = "int"
	ReprFloat     Representation = "float"
	ReprThreshold Representation = "threshold"
	ReprWeight    Representation = "weight"
	ReprBias      Representation = "bias"
	ReprMirror    Representation = "mirror"
)

// Representations lists every interpretation in display order.
var Representations = []Representation{ReprInt, ReprFloat, ReprThreshold, ReprWeight, ReprBias, ReprMirror}

// mirrorLabels is indexed modulo its own length so every raw value has a label.
var mirrorLabels = [...]string{
	"P", "P+X", "P+Y", "P+XY", "P+X+Y", "P+X+XY", "P+Y+XY", "P+X+Y+XY",
	"X", "Y", "XY", "X+Y", "X+XY", "Y+XY", "X+Y+XY",
}

// PropertyValueFromChar decodes a packed character.
// It fails for anything outside the 64-symbol alphabet, including non-ASCII runes.
func PropertyValueFromChar(c rune) (PropertyValue, bool) {
	if c < 'A' || c > 'z' {
		switch {
		case c >= '0' && c <= '9':
			return PropertyValue(52 + c - '0'), true
		case c == '?':
			return 62, true
		case c == '!':
			return 63, true
		}
		return 0, false
	}
	switch {
	case c <= 'Z':
		return PropertyValue(c - 'A'), true
	case c >= 'a':
		return PropertyValue(26 + c - 'a'), true
	}
	return 0, false
}

// Char encodes the value back to its packed character.
func (v PropertyValue) Char() (byte, bool) {
	if v > MaxPropertyValue {
		return 0, false
	}
	return valueAlphabet[v], true
}

// String returns the packed character, or the raw number in brackets when out of range.
func (v PropertyValue) String() string {
	if c, ok := v.Char(); ok {
		return string(c)
	}
	return fmt.Sprintf("<%d>", uint8(v))
}

// Int returns the raw byte.
func (v PropertyValue) Int() uint8 { return uint8(v) }

// Float maps the value onto 0..1.
func (v PropertyValue) Float() float32 { return float32(v) / 63.0 }

// Threshold maps the value onto 0..2.5.
func (v PropertyValue) Threshold() float32 { return float32(v) * 2.5 / 63.0 }

// Weight maps the value onto -2.5..2.5.
func (v PropertyValue) Weight() float32 { return float32(v)*5.0/63.0 - 2.5 }

// Bias shares the threshold scale.
func (v PropertyValue) Bias() float32 { return v.Threshold() }

// Mirror returns the mirroring mode label.
func (v PropertyValue) Mirror() string {
	return mirrorLabels[int(v)%len(mirrorLabels)]
}

// View renders the value under the given representation.
func (v PropertyValue) View(repr Representation) string {
	switch repr {
	case ReprFloat:
		return strconv.FormatFloat(float64(v.Float()), 'f', 3, 32)
	case ReprThreshold:
		return strconv.FormatFloat(float64(v.Threshold()), 'f', 3, 32)
	case ReprWeight:
		return strconv.FormatFloat(float64(v.Weight()), 'f', 3, 32)
	case ReprBias:
		return strconv.FormatFloat(float64(v.Bias()), 'f', 3, 32)
	case ReprMirror:
		return v.Mirror()
	default:
		return strconv.Itoa(int(v))
	}
}

// Views renders every representation, keyed by name.
func (v PropertyValue) Views() map[Representation]string {
	out := make(map[Representation]string, len(Representations))
	for _, r := range Representations {
		out[r] = v.View(r)
	}
	return out
}

// Increase steps the value up, saturating at MaxPropertyValue.
func (v *PropertyValue) Increase() {
	if *v >= MaxPropertyValue {
		*v = MaxPropertyValue
		return
	}
	*v++
}

// Decrease steps the value down, saturating at zero.
// Out-of-range values are first clamped to MaxPropertyValue.
func (v *PropertyValue) Decrease() {
	if *v > MaxPropertyValue {
		*v = MaxPropertyValue
	}
	if *v > 0 {
		*v--
	}
}
