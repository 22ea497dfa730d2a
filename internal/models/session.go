package models

// SessionStatus represents the status of an edit session.
type SessionStatus string

const (
	SessionStatusOpen  SessionStatus = "open"
	SessionStatusDirty SessionStatus = "dirty"
)

// EditSession describes one genome opened for editing.
type EditSession struct {
	ID        string        `json:"id"`
	FileID    string        `json:"fileId"`
	FileName  string        `json:"fileName"`
	Status    SessionStatus `json:"status"`
	Revision  int           `json:"revision"` // bumped on every change
	CellCount int           `json:"cellCount"`
	DnaCount  int           `json:"dnaCount"`
	GeneCount int           `json:"geneCount"`
	OpenedAt  int64         `json:"openedAt"`          // Unix ms
	SavedAt   int64         `json:"savedAt,omitempty"` // Unix ms
}

// NewEditSession creates a new EditSession in open status.
func NewEditSession(id, fileID, fileName string) *EditSession {
	return &EditSession{
		ID:       id,
		FileID:   fileID,
		FileName: fileName,
		Status:   SessionStatusOpen,
	}
}

// UpdateCounts refreshes the summary counters from the genome.
func (s *EditSession) UpdateCounts(dna *CreatureDNA) {
	s.CellCount = len(dna.Cells)
	s.DnaCount = len(dna.DNA)
	s.GeneCount = dna.GeneCount()
}
