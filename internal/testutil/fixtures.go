package testutil

// SampleGenome is a small genome in canonical form: serializing its parse
// yields the same text.
const SampleGenome = `//--------------------------------------------------
//name: Crab
//date: 2024-05-01
//version: 1.0

//creature:
skin_color = #ff8800

//cells:
neuron_properties[0][0] = *B$C#D@E%F^G+H|I{J}K~L
neuron_properties[1][0] = *A$A#A@A%A^A+A|A{A}A~A&Z_B[Cm

//dna: Walker
dna_name[0][0] = walker
dna_location = [3][4]
dna_creator[0][0] = alice

gene[0][0][0] = *B$A#A@A%A^A+A|A{A}A~A
gene[1][0][0] = *C$A#A@A%A^A+A|A{A}A~A
gene[0][1][2] = *D$A#A@A%A^A+A|A{A}A~A

`

// SampleGenomeName is the file name used for SampleGenome in tests.
const SampleGenomeName = "crab.txt"

// BrokenGenome fails to parse on line 3.
const BrokenGenome = "//name: Broken\n\nbogus_key = x\n"
