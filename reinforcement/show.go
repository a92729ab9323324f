package reinforcement

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"qcar/car"

	"gonum.org/v1/gonum/floats"
)

// Console runes of the greedy action, indexed by action.
var actionRunes = [car.NUM_ACTIONS]rune{'.', 'v', '^', '<', '>'}

// ShowPolicy prints the greedy policy over a @width by @height track, downsampled to @cell pixel
// squares. Each square shows the greedy action of its highest-valued visited state, or a space
// if none of its states were visited. Rows run top to bottom as in the track image.
func (t *Table) ShowPolicy(w io.Writer, width, height, cell int) error {
	if cell < 1 {
		cell = 1
	}
	cols := (width + cell - 1) / cell
	rows := (height + cell - 1) / cell

	type best struct {
		val    float64
		action int
	}
	cells := make(map[[2]int]best)
	for s, q := range t.values {
		if s.X < 0 || s.Y < 0 || s.X >= width || s.Y >= height {
			continue
		}
		key := [2]int{s.X / cell, s.Y / cell}
		val := floats.Max(q[:])
		if b, ok := cells[key]; !ok || val > b.val {
			cells[key] = best{val: val, action: floats.MaxIdx(q[:])}
		}
	}

	bw := bufio.NewWriter(w)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r := ' '
			if b, ok := cells[[2]int{x, y}]; ok {
				r = actionRunes[b.action]
			}
			if _, err := bw.WriteRune(r); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ShowValues prints the minimum, maximum and mean greedy value over the visited states.
func (t *Table) ShowValues(w io.Writer) error {
	if len(t.values) == 0 {
		_, err := fmt.Fprintln(w, "no visited states")
		return err
	}
	minVal, maxVal, total := math.Inf(1), math.Inf(-1), 0.0
	for _, q := range t.values {
		val := floats.Max(q[:])
		minVal = math.Min(minVal, val)
		maxVal = math.Max(maxVal, val)
		total += val
	}
	_, err := fmt.Fprintf(w, "states: %d  min: %.2f  max: %.2f  mean: %.2f\n",
		len(t.values), minVal, maxVal, total/float64(len(t.values)))
	return err
}
