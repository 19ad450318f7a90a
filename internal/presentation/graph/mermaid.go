package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwise/pkg/workflow"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	CompletedStages []string
	FailedStage     string
}

// GenerateMermaid produces a Mermaid flowchart of a pipeline description.
// Edges follow data flow: each stage is linked from the producer of every key
// its instruction reads, labeled with the key.
// Shapes:
// - Seed key: ((Circle))
// - Stage with tools: [[Subroutine]]
// - Document stage: [/Parallelogram/]
// - Default: [Rectangle]
// Parallel groups are drawn as subgraphs.
func GenerateMermaid(d workflow.Description, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	producers := make(map[string]string)
	for _, seed := range d.Inputs {
		id := "seed_" + sanitizeMermaidID(seed)
		producers[seed] = id
		sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", id, seed))
	}

	var edges []string
	var prev []string // IDs of the previous element, for ordering edges
	for _, child := range d.Children {
		var current []string
		switch child.Kind {
		case workflow.KindParallel:
			sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s (parallel)\"]\n", sanitizeMermaidID("group_"+child.Name), child.Name))
			for _, member := range child.Children {
				sb.WriteString("    " + stageNode(member))
				current = append(current, sanitizeMermaidID(member.Name))
			}
			sb.WriteString("    end\n")
			for _, member := range child.Children {
				edges = append(edges, dataEdges(member, producers, prev)...)
			}
			for _, member := range child.Children {
				for _, out := range member.Outputs {
					producers[out] = sanitizeMermaidID(member.Name)
				}
			}
		default:
			sb.WriteString(stageNode(child))
			edges = append(edges, dataEdges(child, producers, prev)...)
			for _, out := range child.Outputs {
				producers[out] = sanitizeMermaidID(child.Name)
			}
			current = []string{sanitizeMermaidID(child.Name)}
		}
		prev = current
	}
	for _, e := range edges {
		sb.WriteString(e)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef done fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.CompletedStages {
			id := sanitizeMermaidID(name)
			if !seen[id] && id != "" {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s done;\n", id))
			}
		}
		if overlay.FailedStage != "" {
			sb.WriteString(fmt.Sprintf("    class %s failed;\n", sanitizeMermaidID(overlay.FailedStage)))
		}
	}

	return sb.String()
}

func stageNode(d workflow.Description) string {
	opener, closer := "[", "]"
	switch {
	case len(d.Tools) > 0:
		opener, closer = "[[", "]]"
	case d.Format == string(workflow.FormatDocument):
		opener, closer = "[/", "/]"
	}
	label := d.Name
	if len(d.Tools) > 0 {
		label = fmt.Sprintf("%s <br/> 🔧 %s", d.Name, strings.Join(d.Tools, ", "))
	}
	return fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(d.Name), opener, label, closer)
}

// dataEdges links a stage to the producers of its inputs. A stage reading
// nothing is linked to the previous element with a dotted ordering edge.
func dataEdges(d workflow.Description, producers map[string]string, prev []string) []string {
	id := sanitizeMermaidID(d.Name)
	var out []string
	for _, in := range d.Inputs {
		from, ok := producers[in]
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, in, id))
	}
	if len(out) == 0 {
		for _, p := range prev {
			out = append(out, fmt.Sprintf("    %s -.-> %s\n", p, id))
		}
	}
	return out
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
