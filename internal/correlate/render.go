package correlate

import (
	"encoding/json"
	"io"
)

// Renderer presents a chart. Drawing is left to implementations.
type Renderer interface {
	Render(chart Chart) error
}

// JSONRenderer writes the chart as indented JSON.
type JSONRenderer struct {
	W io.Writer
}

func (j JSONRenderer) Render(chart Chart) error {
	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	return enc.Encode(chart)
}
