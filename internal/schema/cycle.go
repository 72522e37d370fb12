package schema

import (
	"fmt"
	"strings"
)

// RecursionReport describes one group of mutually recursive records.
//
// Recursion is legal: the grammar compiler terminates on it. A group is
// reported at "warning" level when the records reach each other only
// through non-nullable, non-container fields: no finite value of such a
// record exists.
type RecursionReport struct {
	Path    []string `json:"path"` // ["Node", "Node"] or ["A", "B", "A"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// edge links a record to a record reachable from one of its fields.
// Strong edges are non-nullable direct references.
type edge struct {
	to     *Node
	strong bool
}

type recordGraph struct {
	order []*Node
	edges map[*Node][]edge
}

// AnalyzeRecursion finds recursive record groups reachable from roots
// using Tarjan's algorithm. Non-recursive schemas return an empty list.
func AnalyzeRecursion(roots ...*Node) []RecursionReport {
	g := buildRecordGraph(roots)

	strong := make(map[*Node]bool)
	for _, scc := range tarjanSCC(g, func(e edge) bool { return e.strong }) {
		if isCycle(scc, g, func(e edge) bool { return e.strong }) {
			for _, n := range scc {
				strong[n] = true
			}
		}
	}

	reports := []RecursionReport{}
	for _, scc := range tarjanSCC(g, func(edge) bool { return true }) {
		if !isCycle(scc, g, func(edge) bool { return true }) {
			continue
		}
		level := "info"
		for _, n := range scc {
			if strong[n] {
				level = "warning"
			}
		}
		reports = append(reports, sccToReport(scc, g, level))
	}
	return reports
}

// AnalyzePackageRecursion runs AnalyzeRecursion over every declared type.
func AnalyzePackageRecursion(pkg *Package) []RecursionReport {
	roots := make([]*Node, 0, len(pkg.Names))
	for _, name := range pkg.Names {
		roots = append(roots, pkg.Types[name])
	}
	return AnalyzeRecursion(roots...)
}

func buildRecordGraph(roots []*Node) *recordGraph {
	g := &recordGraph{edges: make(map[*Node][]edge)}

	var visit func(*Node)
	visit = func(n *Node) {
		if n == nil || n.Kind != KindRecord {
			return
		}
		if _, seen := g.edges[n]; seen {
			return
		}
		g.edges[n] = []edge{}
		g.order = append(g.order, n)
		for _, f := range n.Fields {
			for _, target := range reachableRecords(f.Type, !f.Nullable) {
				g.edges[n] = append(g.edges[n], target)
				visit(target.to)
			}
		}
	}
	for _, r := range roots {
		visit(r)
		for _, target := range reachableRecords(r, false) {
			visit(target.to)
		}
	}
	return g
}

// reachableRecords returns the records a field type leads to without
// passing through another record.
func reachableRecords(n *Node, strong bool) []edge {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindRecord:
		return []edge{{to: n, strong: strong}}
	case KindArray, KindMap, KindCounter:
		return reachableRecords(n.Elem, false)
	}
	return nil
}

func isCycle(scc []*Node, g *recordGraph, follow func(edge) bool) bool {
	if len(scc) > 1 {
		return true
	}
	for _, e := range g.edges[scc[0]] {
		if e.to == scc[0] && follow(e) {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components over the edges follow
// accepts, visiting nodes in discovery order for stable output.
func tarjanSCC(g *recordGraph, follow func(edge) bool) [][]*Node {
	var (
		index   = 0
		stack   []*Node
		indices = make(map[*Node]int)
		lowlink = make(map[*Node]int)
		onStack = make(map[*Node]bool)
		sccs    [][]*Node
	)

	var strongConnect func(*Node)
	strongConnect = func(v *Node) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.edges[v] {
			if !follow(e) {
				continue
			}
			w := e.to
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []*Node
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			// Restore discovery order within the component.
			for i, j := 0, len(scc)-1; i < j; i, j = i+1, j-1 {
				scc[i], scc[j] = scc[j], scc[i]
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.order {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func recordName(n *Node) string {
	if n.Name == "" {
		return "<anonymous>"
	}
	return n.Name
}

func sccToReport(scc []*Node, g *recordGraph, level string) RecursionReport {
	if len(scc) == 1 {
		name := recordName(scc[0])
		return RecursionReport{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-recursive record: %s → %s", name, name),
			Level:   level,
		}
	}

	path := reconstructCyclePath(scc, g)
	return RecursionReport{
		Path:    path,
		Message: fmt.Sprintf("Mutually recursive records: %s", strings.Join(path, " → ")),
		Level:   level,
	}
}

// reconstructCyclePath follows edges inside the component from its first
// member until it returns there.
func reconstructCyclePath(scc []*Node, g *recordGraph) []string {
	members := make(map[*Node]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{recordName(current)}
	visited := make(map[*Node]bool)

	for {
		visited[current] = true

		var next *Node
		for _, e := range g.edges[current] {
			if members[e.to] && (!visited[e.to] || e.to == start) {
				next = e.to
				break
			}
		}
		if next == nil {
			break
		}
		path = append(path, recordName(next))
		if next == start {
			break
		}
		current = next
	}
	return path
}
