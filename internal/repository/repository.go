package repository

import (
	"fmt"

	"github.com/yourusername/gridtune/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Run       RunRepository
	Ranking   RankingRepository
	Selection SelectionRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Run:       NewPostgresRunRepository(db),
		Ranking:   NewPostgresRankingRepository(db),
		Selection: NewPostgresSelectionRepository(db),
	}, nil
}
