// Package diagram turns Mermaid flowchart notation into a self-contained SVG
// artifact. The layout is a simple top-to-bottom column in first-seen node
// order; it trades visual sophistication for a fully deterministic local
// render with no second model call.
package diagram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoEdges is returned when the notation contains no recognizable
// flowchart edges.
var ErrNoEdges = errors.New("no flowchart edges found in notation")

// node is a flowchart vertex with a display label.
type node struct {
	id    string
	label string
}

// edge links two node ids, optionally labelled.
type edge struct {
	from, to string
	label    string
}

// edgeRe matches one "A[Label] -->|note| B[Label]" line. Node labels and the
// edge label are optional; brackets, parens, and braces are all accepted as
// node shapes.
var edgeRe = regexp.MustCompile(`^\s*(\w+)\s*(?:[\[({]+"?([^"\])}]+)"?[\])}]+)?\s*-->\s*(?:\|([^|]*)\|)?\s*(\w+)\s*(?:[\[({]+"?([^"\])}]+)"?[\])}]+)?\s*$`)

// StripFences removes a surrounding ```mermaid / ``` code fence, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```mermaid")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parse extracts nodes (in first-seen order) and edges from the notation.
func parse(notation string) ([]node, []edge, error) {
	var (
		nodes []node
		edges []edge
		seen  = map[string]int{}
	)

	record := func(id, label string) {
		if idx, ok := seen[id]; ok {
			if label != "" && nodes[idx].label == nodes[idx].id {
				nodes[idx].label = label
			}
			return
		}
		if label == "" {
			label = id
		}
		seen[id] = len(nodes)
		nodes = append(nodes, node{id: id, label: label})
	}

	for _, line := range strings.Split(notation, "\n") {
		m := edgeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		record(m[1], strings.TrimSpace(m[2]))
		record(m[4], strings.TrimSpace(m[5]))
		edges = append(edges, edge{from: m[1], to: m[4], label: strings.TrimSpace(m[3])})
	}

	if len(edges) == 0 {
		return nil, nil, ErrNoEdges
	}
	return nodes, edges, nil
}

const (
	boxWidth   = 240
	boxHeight  = 44
	vSpacing   = 80
	marginTop  = 30
	canvasPad  = 40
	fontFamily = "Arial, sans-serif"
)

// RenderSVG lays the flowchart out as a vertical column and returns an SVG
// document. Edges between non-adjacent nodes are drawn as offset side arcs
// so they stay legible.
func RenderSVG(notation string) (string, error) {
	nodes, edges, err := parse(StripFences(notation))
	if err != nil {
		return "", err
	}

	width := boxWidth + 2*canvasPad + 120
	height := marginTop + len(nodes)*(boxHeight+vSpacing)
	cx := width / 2

	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.id] = marginTop + i*(boxHeight+vSpacing)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	sb.WriteString(`<defs><marker id="arrow" markerWidth="10" markerHeight="8" refX="9" refY="4" orient="auto"><path d="M0,0 L10,4 L0,8 z" fill="#334155"/></marker></defs>`)
	sb.WriteString(`<rect width="100%" height="100%" fill="#f8fafc"/>`)

	for _, e := range edges {
		fromY, okF := pos[e.from]
		toY, okT := pos[e.to]
		if !okF || !okT {
			continue
		}
		y1 := fromY + boxHeight
		y2 := toY
		if y2 > y1 && y2-y1 <= vSpacing {
			// Adjacent nodes: straight vertical arrow.
			fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#334155" stroke-width="1.5" marker-end="url(#arrow)"/>`, cx, y1, cx, y2)
		} else {
			// Long or backward edge: side arc.
			sideX := cx + boxWidth/2 + 40
			fmt.Fprintf(&sb, `<path d="M%d,%d C%d,%d %d,%d %d,%d" fill="none" stroke="#64748b" stroke-width="1.2" marker-end="url(#arrow)"/>`,
				cx+boxWidth/2, fromY+boxHeight/2, sideX, fromY+boxHeight/2, sideX, toY+boxHeight/2, cx+boxWidth/2, toY+boxHeight/2)
		}
		if e.label != "" {
			fmt.Fprintf(&sb, `<text x="%d" y="%d" font-family="%s" font-size="11" fill="#64748b" text-anchor="middle">%s</text>`,
				cx+boxWidth/2+8, (y1+y2)/2, fontFamily, escape(e.label))
		}
	}

	for i, n := range nodes {
		y := pos[n.id]
		fill := "#ffffff"
		if i == 0 {
			fill = "#dcfce7" // start event
		} else if i == len(nodes)-1 {
			fill = "#fee2e2" // end event
		}
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" rx="8" fill="%s" stroke="#334155" stroke-width="1.5"/>`,
			cx-boxWidth/2, y, boxWidth, boxHeight, fill)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-family="%s" font-size="13" fill="#0f172a" text-anchor="middle" dominant-baseline="middle">%s</text>`,
			cx, y+boxHeight/2, fontFamily, escape(truncate(n.label, 34)))
	}

	sb.WriteString(`</svg>`)
	return sb.String(), nil
}

// FallbackSVG is returned when notation cannot be rendered; the Mermaid
// text itself is still available to the caller.
const FallbackSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="600" height="400">` +
	`<rect width="100%" height="100%" fill="#f8f9fa"/>` +
	`<text x="50%" y="45%" text-anchor="middle" font-family="Arial" font-size="20" font-weight="bold">Workflow Diagram</text>` +
	`<text x="50%" y="55%" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">Could not generate visualization</text>` +
	`</svg>`

// DataURL wraps an SVG document as an inline image URL.
func DataURL(svg string) string {
	return "data:image/svg+xml," + url.PathEscape(svg)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
