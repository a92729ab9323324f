package reinforcement

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"qcar/car"
	"qcar/environment"

	"gonum.org/v1/gonum/floats"
)

// ActionValues holds one value per action, indexed by the car action constants.
type ActionValues [car.NUM_ACTIONS]float64

// Table is the action-value table. States never visited read as the zero vector.
type Table struct {
	values map[environment.State]ActionValues
}

func NewTable() *Table {
	return &Table{values: make(map[environment.State]ActionValues)}
}

// Lookup returns the values of @s without inserting it.
func (t *Table) Lookup(s environment.State) (ActionValues, bool) {
	q, ok := t.values[s]
	return q, ok
}

// GetOrInsert returns the values of @s, inserting the zero vector for an unseen state.
func (t *Table) GetOrInsert(s environment.State) ActionValues {
	q, ok := t.values[s]
	if !ok {
		t.values[s] = q
	}
	return q
}

// Set stores a single action value, inserting the state if needed.
func (t *Table) Set(s environment.State, action int, val float64) {
	q := t.values[s]
	q[action] = val
	t.values[s] = q
}

// Max returns the largest action value of @s.
func (t *Table) Max(s environment.State) float64 {
	q := t.GetOrInsert(s)
	return floats.Max(q[:])
}

// ArgMax returns the index of the largest action value of @s; ties go to the first index.
func (t *Table) ArgMax(s environment.State) int {
	q := t.GetOrInsert(s)
	return floats.MaxIdx(q[:])
}

// Len is the number of visited states.
func (t *Table) Len() int {
	return len(t.values)
}

// Save gob-encodes the table to @w.
func (t *Table) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(t.values); err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	return nil
}

// Load replaces the table contents with the gob-encoded table read from @r.
func (t *Table) Load(r io.Reader) error {
	values := make(map[environment.State]ActionValues)
	if err := gob.NewDecoder(r).Decode(&values); err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	t.values = values
	return nil
}

func (t *Table) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("save table: %w", cerr)
		}
	}()
	return t.Save(f)
}

func (t *Table) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	defer f.Close()
	return t.Load(f)
}
