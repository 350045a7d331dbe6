package scheduler

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// ExportDOT renders the dependency graph for a step list as Graphviz DOT,
// for diagnostics and the control surface. Parallel-safe steps are drawn as
// ellipses, serialized steps as boxes.
func ExportDOT(steps []plan.Step) (string, error) {
	graph := buildGraph(steps)

	g := gographviz.NewGraph()
	if err := g.SetName("plan"); err != nil {
		return "", serr.Wrap(err, "failed to name graph")
	}
	if err := g.SetDir(true); err != nil {
		return "", serr.Wrap(err, "failed to set graph direction")
	}

	for i, step := range steps {
		shape := "box"
		if parallelSafe(step.Op) {
			shape = "ellipse"
		}
		attrs := map[string]string{
			"label": strconv.Quote(fmt.Sprintf("%d: %s", i+1, step.Summary())),
			"shape": shape,
		}
		if err := g.AddNode("plan", nodeName(i), attrs); err != nil {
			return "", serr.Wrap(err, "failed to add node")
		}
	}

	for i, deps := range graph.deps {
		for _, d := range deps {
			if err := g.AddEdge(nodeName(d), nodeName(i), true, nil); err != nil {
				return "", serr.Wrap(err, "failed to add edge")
			}
		}
	}

	return g.String(), nil
}

func nodeName(i int) string {
	return fmt.Sprintf("s%d", i)
}
