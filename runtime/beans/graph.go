package beans

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/conduit-lang/nucleus/runtime/symbols"
)

// EdgeKind says how one bean depends on another
type EdgeKind string

const (
	EdgeField     EdgeKind = "field"     // explicit reference in the bean's fields
	EdgeInject    EdgeKind = "inject"    // inject-tagged field not wired explicitly
	EdgeComponent EdgeKind = "component" // component wiring
)

// Graph is the dependency graph of every bean in a table. Node ids are
// "Class/bean", or the class name alone for the implicit empty bean.
type Graph struct {
	Nodes map[string]*GraphNode `json:"nodes"`
	Edges []GraphEdge           `json:"edges"`

	outgoing map[string][]GraphEdge
	incoming map[string][]GraphEdge
}

// GraphNode is one bean. A Missing node stands for a reference that does
// not resolve.
type GraphNode struct {
	ID        string `json:"id"`
	Class     string `json:"class,omitempty"`
	Bean      string `json:"bean,omitempty"`
	Singleton bool   `json:"singleton,omitempty"`
	Missing   bool   `json:"missing,omitempty"`
}

// GraphEdge points from a bean to a bean it needs. Via is the field name or,
// for components, the attach priority.
type GraphEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
	Via  string   `json:"via"`
}

// GraphOptions configures Subgraph
type GraphOptions struct {
	Depth   int        // maximum traversal depth, 0 for unlimited
	Reverse bool       // follow edges backwards: what depends on the start node
	Kinds   []EdgeKind // only follow these edge kinds; empty follows all
}

// NodeID returns the graph id of bean on class
func NodeID(class *symbols.SymClass, bean *symbols.Bean) string {
	if bean == nil || bean.Name == "" {
		return class.Name
	}
	return class.Name + "/" + bean.Name
}

func newGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*GraphNode),
		outgoing: make(map[string][]GraphEdge),
		incoming: make(map[string][]GraphEdge),
	}
}

func (g *Graph) addNode(n *GraphNode) {
	if _, ok := g.Nodes[n.ID]; !ok {
		g.Nodes[n.ID] = n
	}
}

func (g *Graph) addEdge(e GraphEdge) {
	g.Edges = append(g.Edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	g.incoming[e.To] = append(g.incoming[e.To], e)
}

// Graph builds the dependency graph of every declared bean. References are
// resolved the way Get resolves them; unresolvable ones end in Missing nodes.
func (c *Container) Graph() *Graph {
	g := newGraph()
	for _, class := range c.table.All() {
		names := make([]string, 0, len(class.Beans))
		for name := range class.Beans {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.addBean(g, class, class.Beans[name])
		}
	}
	return g
}

func (c *Container) addBean(g *Graph, class *symbols.SymClass, bean *symbols.Bean) string {
	from := NodeID(class, bean)
	if _, done := g.Nodes[from]; done {
		return from
	}
	g.addNode(&GraphNode{ID: from, Class: class.Name, Bean: bean.Name, Singleton: bean.Singleton})

	target := func(refClass *symbols.SymClass, refBean *symbols.Bean, err error, missing string) string {
		if err != nil {
			g.addNode(&GraphNode{ID: missing, Missing: true})
			return missing
		}
		return c.addBean(g, refClass, refBean)
	}

	wired := make(map[string]bool, len(bean.Fields))
	for _, f := range bean.Fields {
		wired[f.Field] = true
		if !f.IsReference() {
			continue
		}
		refClass, refBean, err := c.Resolve(f.RefType, f.RefName)
		to := target(refClass, refBean, err, missingID(f.RefType, f.RefName))
		g.addEdge(GraphEdge{From: from, To: to, Kind: EdgeField, Via: f.Field})
	}

	for _, field := range c.fields(class) {
		tag, ok := symbols.Find[symbols.Inject](field.Tags)
		if !ok || wired[field.Name] {
			continue
		}
		refClass, refBean, err := c.injectTarget(field, tag)
		if err != nil && tag.Optional {
			continue
		}
		to := target(refClass, refBean, err, missingID("", tag.Name))
		g.addEdge(GraphEdge{From: from, To: to, Kind: EdgeInject, Via: field.Name})
	}

	for _, w := range bean.Components {
		refClass, refBean, err := c.Resolve(w.RefType, w.RefName)
		to := target(refClass, refBean, err, missingID(w.RefType, w.RefName))
		g.addEdge(GraphEdge{From: from, To: to, Kind: EdgeComponent, Via: strconv.Itoa(w.Priority)})
	}
	return from
}

func missingID(refType, refName string) string {
	switch {
	case refType == "":
		return "?" + refName
	case refName == "":
		return "?" + refType
	default:
		return fmt.Sprintf("?%s/%s", refType, refName)
	}
}

// Subgraph returns the nodes reachable from the start nodes, breadth first,
// within opts. Start nodes that exist are always included.
func (g *Graph) Subgraph(opts GraphOptions, starts ...string) *Graph {
	result := newGraph()

	kinds := make(map[EdgeKind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	type step struct {
		id    string
		depth int
	}
	visited := make(map[string]bool)
	var queue []step
	for _, start := range starts {
		node, ok := g.Nodes[start]
		if !ok || visited[start] {
			continue
		}
		visited[start] = true
		result.addNode(node)
		queue = append(queue, step{start, 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges := g.outgoing[current.id]
		if opts.Reverse {
			edges = g.incoming[current.id]
		}
		for _, e := range edges {
			if len(kinds) > 0 && !kinds[e.Kind] {
				continue
			}
			result.addEdge(e)

			next := e.To
			if opts.Reverse {
				next = e.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			result.addNode(g.Nodes[next])
			if opts.Depth == 0 || current.depth+1 < opts.Depth {
				queue = append(queue, step{next, current.depth + 1})
			}
		}
	}
	return result
}

// Roots returns the ids of the nodes built from class, optionally only bean
func (g *Graph) Roots(class, bean string) []string {
	var result []string
	for _, id := range g.sortedIDs() {
		n := g.Nodes[id]
		if n.Class == class && (bean == "" || n.Bean == bean) {
			result = append(result, id)
		}
	}
	return result
}

// Cycles returns every dependency cycle found by a depth-first walk, each
// closed by repeating its first node. Node ids are visited in sorted order so
// the result is stable.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var path []string

	var walk func(id string)
	walk = func(id string) {
		visited[id] = true
		onPath[id] = true
		path = append(path, id)

		for _, e := range g.outgoing[id] {
			switch {
			case onPath[e.To]:
				for i, n := range path {
					if n == e.To {
						cycle := append(append([]string(nil), path[i:]...), e.To)
						cycles = append(cycles, cycle)
						break
					}
				}
			case !visited[e.To]:
				walk(e.To)
			}
		}

		path = path[:len(path)-1]
		onPath[id] = false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] {
			walk(id)
		}
	}
	return cycles
}

// Missing returns the ids of unresolved references, sorted
func (g *Graph) Missing() []string {
	var result []string
	for _, id := range g.sortedIDs() {
		if g.Nodes[id].Missing {
			result = append(result, id)
		}
	}
	return result
}

// Depth returns the length of the longest acyclic dependency chain from start
func (g *Graph) Depth(start string) int {
	onPath := make(map[string]bool)
	var longest func(id string) int
	longest = func(id string) int {
		onPath[id] = true
		defer delete(onPath, id)
		best := 0
		for _, e := range g.outgoing[id] {
			if onPath[e.To] {
				continue
			}
			if d := longest(e.To) + 1; d > best {
				best = d
			}
		}
		return best
	}
	if _, ok := g.Nodes[start]; !ok {
		return 0
	}
	return longest(start)
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
