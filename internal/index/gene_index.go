// Package index loads an open genome into DuckDB so its cells and genes can be queried.
package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/marcboeker/go-duckdb"
)

// Source tells whether a row came from the cell list or from a DNA block.
type Source string

const (
	SourceCell Source = "cell"
	SourceGene Source = "gene"
)

// Hit is one indexed cell or gene.
type Hit struct {
	Source      Source `json:"source"`
	Path        string `json:"path"`
	DnaIndex    int    `json:"dnaIndex"`
	ZLevel      int    `json:"zLevel"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	NeuronType  string `json:"neuronType"`
	Tag         string `json:"tag"`
	OutputCount int    `json:"outputCount"`
	Encoded     string `json:"encoded"`
}

// Query filters hits. Zero-value fields do not filter.
type Query struct {
	Source     Source
	NeuronType string // packed character
	Tag        string // packed character
	DnaIndex   *int
	ZLevel     *int
	Limit      int
}

// TypeCount is the number of cells or genes of one neuron type.
type TypeCount struct {
	NeuronType string `json:"neuronType"`
	Source     Source `json:"source"`
	Count      int    `json:"count"`
}

// Options tunes the DuckDB connection.
type Options struct {
	Threads     int
	MemoryLimit string
	TempDir     string // spill directory, empty for none
}

// GeneIndex is an in-memory DuckDB table of one genome's cells and genes.
type GeneIndex struct {
	mu       sync.RWMutex
	db       *sql.DB
	revision int
	rows     int
}

// NewGeneIndex opens an empty in-memory index.
func NewGeneIndex(opts Options) (*GeneIndex, error) {
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "256MB"
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		if opts.TempDir != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA temp_directory='%s'", opts.TempDir))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	// an in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE genes (
			seq          INTEGER NOT NULL,
			source       VARCHAR NOT NULL,
			path         VARCHAR NOT NULL,
			dna_idx      INTEGER NOT NULL,
			z_level      INTEGER NOT NULL,
			x            INTEGER NOT NULL,
			y            INTEGER NOT NULL,
			neuron_type  VARCHAR NOT NULL,
			tag          VARCHAR NOT NULL,
			output_count INTEGER NOT NULL,
			encoded      VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &GeneIndex{db: db, revision: -1}, nil
}

// Revision returns the genome revision the index was last loaded from.
func (g *GeneIndex) Revision() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

// Len returns the number of indexed rows.
func (g *GeneIndex) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rows
}

// Load replaces the index content with the given genome.
func (g *GeneIndex) Load(ctx context.Context, dna *models.CreatureDNA, revision int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM genes"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO genes (seq, source, path, dna_idx, z_level, x, y, neuron_type, tag, output_count, encoded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	insert := func(src Source, path string, dnaIdx, z int, at models.GridIndex2, info *models.DecodedGeneInfo) error {
		rows++
		_, err := stmt.ExecContext(ctx, rows, string(src), path, dnaIdx, z, int(at.X), int(at.Y),
			info.NeuronType.String(), info.Tag.String(), len(info.OutputTags), parser.EncodeGeneInfo(*info))
		return err
	}

	for i := range dna.Cells {
		cell := &dna.Cells[i]
		if err := insert(SourceCell, models.CellPath(i).String(), -1, -1, cell.Index, &cell.Decoded); err != nil {
			return fmt.Errorf("indexing cell %d: %w", i, err)
		}
	}
	for d := range dna.DNA {
		for l, layer := range dna.DNA[d].Genes {
			for k := range layer.Genes {
				gene := &layer.Genes[k]
				path := models.GenePath(d, l, k).String()
				if err := insert(SourceGene, path, d, int(layer.ZLevel), gene.Index, &gene.Decoded); err != nil {
					return fmt.Errorf("indexing %s: %w", path, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	g.revision = revision
	g.rows = rows
	return nil
}

// Search returns the rows matching q in document order.
func (g *GeneIndex) Search(ctx context.Context, q Query) ([]Hit, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	where, args := q.filters()
	sqlQuery := "SELECT source, path, dna_idx, z_level, x, y, neuron_type, tag, output_count, encoded FROM genes"
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY seq"
	if q.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := g.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching genes: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var h Hit
		var src string
		if err := rows.Scan(&src, &h.Path, &h.DnaIndex, &h.ZLevel, &h.X, &h.Y, &h.NeuronType, &h.Tag, &h.OutputCount, &h.Encoded); err != nil {
			return nil, fmt.Errorf("scanning gene row: %w", err)
		}
		h.Source = Source(src)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// TypeCounts groups the indexed rows by source and neuron type.
func (g *GeneIndex) TypeCounts(ctx context.Context) ([]TypeCount, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, `
		SELECT neuron_type, source, COUNT(*) AS n
		FROM genes
		GROUP BY neuron_type, source
		ORDER BY n DESC, neuron_type, source
	`)
	if err != nil {
		return nil, fmt.Errorf("counting neuron types: %w", err)
	}
	defer rows.Close()

	counts := make([]TypeCount, 0)
	for rows.Next() {
		var tc TypeCount
		var src string
		if err := rows.Scan(&tc.NeuronType, &src, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		tc.Source = Source(src)
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// Close releases the database.
func (g *GeneIndex) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Close()
}

func (q Query) filters() ([]string, []any) {
	var where []string
	var args []any
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(q.Source))
	}
	if q.NeuronType != "" {
		where = append(where, "neuron_type = ?")
		args = append(args, q.NeuronType)
	}
	if q.Tag != "" {
		where = append(where, "tag = ?")
		args = append(args, q.Tag)
	}
	if q.DnaIndex != nil {
		where = append(where, "dna_idx = ?")
		args = append(args, *q.DnaIndex)
	}
	if q.ZLevel != nil {
		where = append(where, "z_level = ?")
		args = append(args, *q.ZLevel)
	}
	return where, args
}
