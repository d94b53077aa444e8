// Package drawer renders a pipeline descriptor graph as a DOT file,
// heat-colouring each node by its share of processed records.
package drawer

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/basewind/basewind/pkg/stats"
)

const maxRGB = 240

// Drawer writes the node graph of a finished run.
type Drawer struct {
	graph    graph.Graph[string, string]
	fileName string
}

// New creates a drawer for the given descriptor graph.
func New(g graph.Graph[string, string], fileName string) *Drawer {
	return &Drawer{graph: g, fileName: fileName}
}

// Draw renders the graph to the configured file. When a final snapshot
// is supplied, nodes are coloured from blue (idle) to red (busiest) by
// their "<node>.processed" counters.
func (d *Drawer) Draw(final stats.Snapshot) error {
	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	heat, err := nodeColours(d.graph, final)
	if err != nil {
		return err
	}
	return dot(d.graph, file, heat)
}

func nodeColours(g graph.Graph[string, string], final stats.Snapshot) (map[string]string, error) {
	heat := make(map[string]string)
	if len(final) == 0 {
		return heat, nil
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get adjacency map")
	}

	var maxProcessed int64
	counts := make(map[string]int64)
	for vertex := range adjacency {
		n := final[vertex+".processed"]
		counts[vertex] = n
		if n > maxProcessed {
			maxProcessed = n
		}
	}
	if maxProcessed == 0 {
		return heat, nil
	}

	for vertex, n := range counts {
		fraction := float64(n) / float64(maxProcessed)
		red := uint8(maxRGB * fraction)
		blue := uint8(maxRGB * (1 - fraction))
		c, err := colors.RGB(red, 0, blue) //nolint
		if err != nil {
			return nil, errors.Wrap(err, "unable to get colour")
		}
		heat[vertex] = c.ToHEX().String()
	}
	return heat, nil
}

const dotTemplate = `strict digraph {
	{{range $s := .Statements}}
	"{{.Source}}" {{if .Target}}-> "{{.Target}}"{{else}}[ {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} ]{{end}};
	{{end}}
}
`

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
}

type description struct {
	Statements []statement
}

func dot(g graph.Graph[string, string], wrt io.Writer, heat map[string]string) error {
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}

	var desc description
	for vertex, adjacencies := range adjacency {
		attrs := map[string]string{"style": "filled", "fontcolor": "white"}
		if hex, ok := heat[vertex]; ok {
			attrs["fillcolor"] = hex
		} else {
			attrs["fillcolor"] = "gray"
		}
		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceAttributes: attrs,
		})
		for adjacency := range adjacencies {
			desc.Statements = append(desc.Statements, statement{
				Source: vertex,
				Target: adjacency,
			})
		}
	}

	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return errors.Wrap(tpl.Execute(wrt, desc), "unable to execute template")
}
