package sheets

import (
	"context"
	"fmt"
)

// MemStore is an in-memory Store used by tests and dry runs. Grids grow on
// demand; reads outside the data return empty cells.
type MemStore struct {
	grids map[string][][]string

	// Writes counts WriteRange/UpdateCell calls. Tests use it to assert
	// that idempotent paths issue no write.
	Writes int
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{grids: make(map[string][][]string)}
}

// Seed replaces a sheet's contents with the given grid, starting at A1.
func (m *MemStore) Seed(sheet string, rows [][]string) {
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = append([]string(nil), r...)
	}
	m.grids[sheet] = grid
}

// Cell returns the current value of a cell ("" when out of range).
func (m *MemStore) Cell(sheet string, row, col int) string {
	grid := m.grids[sheet]
	if row < 1 || row > len(grid) {
		return ""
	}
	r := grid[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

func (m *MemStore) ReadRange(_ context.Context, sheet string, row, col, height, width int) ([][]string, error) {
	grid, ok := m.grids[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet not found: %s", sheet)
	}
	if height <= 0 {
		height = len(grid) - row + 1
	}
	if width <= 0 {
		width = 0
		for _, r := range grid {
			if len(r) > width {
				width = len(r)
			}
		}
		width -= col - 1
	}
	if height < 0 {
		height = 0
	}
	rows := make([][]string, 0, height)
	for i := 0; i < height; i++ {
		out := make([]string, width)
		for j := 0; j < width; j++ {
			out[j] = m.Cell(sheet, row+i, col+j)
		}
		rows = append(rows, out)
	}
	return rows, nil
}

func (m *MemStore) WriteRange(_ context.Context, sheet string, row, col int, values [][]string) error {
	if _, ok := m.grids[sheet]; !ok {
		return fmt.Errorf("sheet not found: %s", sheet)
	}
	m.Writes++
	for i, r := range values {
		for j, v := range r {
			m.set(sheet, row+i, col+j, v)
		}
	}
	return nil
}

func (m *MemStore) ReadCell(ctx context.Context, sheet string, row, col int) (string, error) {
	if _, ok := m.grids[sheet]; !ok {
		return "", fmt.Errorf("sheet not found: %s", sheet)
	}
	return m.Cell(sheet, row, col), nil
}

func (m *MemStore) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	return m.WriteRange(ctx, sheet, row, col, [][]string{{value}})
}

func (m *MemStore) LastRow(_ context.Context, sheet string) (int, error) {
	grid, ok := m.grids[sheet]
	if !ok {
		return 0, fmt.Errorf("sheet not found: %s", sheet)
	}
	last := 0
	for i, r := range grid {
		for _, v := range r {
			if v != "" {
				last = i + 1
				break
			}
		}
	}
	return last, nil
}

func (m *MemStore) InsertSheet(_ context.Context, name string) error {
	if _, ok := m.grids[name]; ok {
		return fmt.Errorf("sheet already exists: %s", name)
	}
	m.grids[name] = nil
	return nil
}

func (m *MemStore) set(sheet string, row, col int, value string) {
	grid := m.grids[sheet]
	for len(grid) < row {
		grid = append(grid, nil)
	}
	r := grid[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	grid[row-1] = r
	m.grids[sheet] = grid
}
