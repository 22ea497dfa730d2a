package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format converts a genome to and from one on-disk or wire representation.
type Format interface {
	// Name returns the unique name of the format.
	Name() string
	// ContentType is the MIME type used when serving the encoded genome.
	ContentType() string
	// Extension is the file extension, including the dot.
	Extension() string
	// Encode serializes the genome.
	Encode(dna *models.CreatureDNA) ([]byte, error)
	// Decode parses a genome previously produced by Encode.
	Decode(data []byte) (*models.CreatureDNA, error)
}

// Registry holds all available formats.
type Registry struct {
	formats []Format
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		formats: []Format{
			genomeTextFormat{},
			jsonFormat{},
			msgpackFormat{},
			yamlFormat{},
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new format to the registry.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// GetFormatByName returns a format by its name.
func (r *Registry) GetFormatByName(name string) (Format, error) {
	name = strings.ToLower(name)
	for _, f := range r.formats {
		if strings.ToLower(f.Name()) == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("format not found: %s", name)
}

// FindFormat picks a format by file extension, defaulting to the genome text format.
func (r *Registry) FindFormat(fileName string) Format {
	lower := strings.ToLower(fileName)
	for _, f := range r.formats {
		if f.Extension() != "" && strings.HasSuffix(lower, f.Extension()) {
			return f
		}
	}
	return r.formats[0]
}

// Names lists the registered format names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formats))
	for _, f := range r.formats {
		names = append(names, f.Name())
	}
	return names
}

type genomeTextFormat struct{}

func (genomeTextFormat) Name() string        { return "genome" }
func (genomeTextFormat) ContentType() string { return "text/plain; charset=utf-8" }
func (genomeTextFormat) Extension() string   { return ".txt" }

func (genomeTextFormat) Encode(dna *models.CreatureDNA) ([]byte, error) {
	return []byte(WriteCreatureDNA(dna)), nil
}

func (genomeTextFormat) Decode(data []byte) (*models.CreatureDNA, error) {
	return ParseCreatureDNA(string(data))
}

type jsonFormat struct{}

func (jsonFormat) Name() string        { return "json" }
func (jsonFormat) ContentType() string { return "application/json" }
func (jsonFormat) Extension() string   { return ".json" }

func (jsonFormat) Encode(dna *models.CreatureDNA) ([]byte, error) {
	return json.MarshalIndent(dna, "", "  ")
}

func (jsonFormat) Decode(data []byte) (*models.CreatureDNA, error) {
	var dna models.CreatureDNA
	if err := json.Unmarshal(data, &dna); err != nil {
		return nil, fmt.Errorf("decoding json genome: %w", err)
	}
	return &dna, nil
}

type msgpackFormat struct{}

func (msgpackFormat) Name() string        { return "msgpack" }
func (msgpackFormat) ContentType() string { return "application/msgpack" }
func (msgpackFormat) Extension() string   { return ".msgpack" }

func (msgpackFormat) Encode(dna *models.CreatureDNA) ([]byte, error) {
	return msgpack.Marshal(dna)
}

func (msgpackFormat) Decode(data []byte) (*models.CreatureDNA, error) {
	var dna models.CreatureDNA
	if err := msgpack.Unmarshal(data, &dna); err != nil {
		return nil, fmt.Errorf("decoding msgpack genome: %w", err)
	}
	return &dna, nil
}

type yamlFormat struct{}

func (yamlFormat) Name() string        { return "yaml" }
func (yamlFormat) ContentType() string { return "application/yaml" }
func (yamlFormat) Extension() string   { return ".yaml" }

func (yamlFormat) Encode(dna *models.CreatureDNA) ([]byte, error) {
	return yaml.Marshal(dna)
}

func (yamlFormat) Decode(data []byte) (*models.CreatureDNA, error) {
	var dna models.CreatureDNA
	if err := yaml.Unmarshal(data, &dna); err != nil {
		return nil, fmt.Errorf("decoding yaml genome: %w", err)
	}
	return &dna, nil
}
