package ops

import (
	"database/sql"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/naics"
)

// LevelCount pairs a hierarchy level with its record count.
type LevelCount struct {
	Level     int    `json:"level"`
	LevelName string `json:"level_name"`
	Count     int    `json:"count"`
}

// InventoryOutput summarizes the stored dataset.
type InventoryOutput struct {
	Total   int              `json:"total"`
	Levels  []LevelCount     `json:"levels"`
	Sectors []db.SectorCount `json:"sectors"`
	Batches []db.ImportBatch `json:"batches"`
}

// Inventory reports record counts per level and per sector, plus
// recent import batches.
func Inventory(database *sql.DB) (*InventoryOutput, error) {
	total, err := db.Count(database)
	if err != nil {
		return nil, err
	}

	byLevel, err := db.CountsByLevel(database)
	if err != nil {
		return nil, err
	}
	levels := make([]LevelCount, 0, len(byLevel))
	for level := naics.LevelSector; level <= naics.LevelNationalIndustry; level++ {
		if n, ok := byLevel[level]; ok {
			levels = append(levels, LevelCount{
				Level:     level,
				LevelName: naics.LevelName(level),
				Count:     n,
			})
		}
	}

	sectors, err := db.CountsBySector(database)
	if err != nil {
		return nil, err
	}
	if sectors == nil {
		sectors = []db.SectorCount{}
	}

	batches, err := db.ListBatches(database, 10)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []db.ImportBatch{}
	}

	return &InventoryOutput{
		Total:   total,
		Levels:  levels,
		Sectors: sectors,
		Batches: batches,
	}, nil
}
