package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/nucleus/internal/cli/ui"
	"github.com/conduit-lang/nucleus/runtime/beans"
)

// DepsReport is the dependency subgraph of one class's beans
type DepsReport struct {
	Class   string            `json:"class"`
	Roots   []string          `json:"roots"`
	Depth   int               `json:"depth"`
	Nodes   []beans.GraphNode `json:"nodes"`
	Edges   []beans.GraphEdge `json:"edges"`
	Cycles  [][]string        `json:"cycles,omitempty"`
	Missing []string          `json:"missing,omitempty"`
}

type depsOptions struct {
	depth   int
	reverse bool
	kinds   []string
}

func newIntrospectDepsCommand(flags *introspectFlags) *cobra.Command {
	opts := &depsOptions{}

	cmd := &cobra.Command{
		Use:   "deps <class>[/<bean>]",
		Short: "Show the bean dependencies of a class",
		Long: `Show the bean dependency graph of a class.

Edges follow explicit bean field references, inject-tagged fields and
component wirings, resolved the way the bean container resolves them.
References that do not resolve are listed as missing; dependency cycles are
reported.

With --reverse the graph shows the beans depending on the class instead.`,
		Example: `  nucleus introspect deps Orc
  nucleus introspect deps Orc/warlord --kind component
  nucleus introspect deps Sword --reverse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseEdgeKinds(opts.kinds)
			if err != nil {
				return err
			}

			s, err := openSession(flags.globalFlags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			name, bean, _ := strings.Cut(args[0], "/")
			class, names := findClass(s.kernel, name)
			if class == nil {
				suggestions := ui.FindSimilar(name, names, nil)
				fmt.Fprint(cmd.ErrOrStderr(), ui.ClassNotFoundError(name, suggestions, flags.plain()))
				return fmt.Errorf("class %q not found", name)
			}

			graph := s.kernel.Beans().Graph()
			roots := graph.Roots(class.Name, bean)
			sub := graph.Subgraph(beans.GraphOptions{Depth: opts.depth, Reverse: opts.reverse, Kinds: kinds}, roots...)

			report := DepsReport{
				Class:   class.Name,
				Roots:   roots,
				Edges:   sub.Edges,
				Cycles:  sub.Cycles(),
				Missing: sub.Missing(),
			}
			for _, id := range sortedNodeIDs(sub) {
				report.Nodes = append(report.Nodes, *sub.Nodes[id])
			}
			if !opts.reverse {
				for _, root := range roots {
					report.Depth = max(report.Depth, graph.Depth(root))
				}
			}

			out := cmd.OutOrStdout()
			if flags.json() {
				return writeJSON(out, report)
			}
			renderDeps(out, report, flags.plain())
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.depth, "depth", 0, "Maximum traversal depth (0 for unlimited)")
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "Show beans that depend on the class")
	cmd.Flags().StringSliceVar(&opts.kinds, "kind", nil, "Only follow these edge kinds: field, inject, component")
	return cmd
}

func parseEdgeKinds(names []string) ([]beans.EdgeKind, error) {
	var kinds []beans.EdgeKind
	for _, name := range names {
		switch k := beans.EdgeKind(name); k {
		case beans.EdgeField, beans.EdgeInject, beans.EdgeComponent:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown edge kind %q (supported: field, inject, component)", name)
		}
	}
	return kinds, nil
}

func sortedNodeIDs(g *beans.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func renderDeps(w io.Writer, r DepsReport, plain bool) {
	ui.Header(w, r.Class+" DEPENDENCIES", plain)
	if len(r.Roots) == 0 {
		fmt.Fprintln(w, "No beans found.")
		return
	}

	kv := ui.NewKeyValueTable(w, plain)
	kv.AddRow("Beans", strings.Join(r.Roots, ", "))
	kv.AddRow("Depth", fmt.Sprint(r.Depth))
	kv.Render()

	if len(r.Edges) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, []string{"FROM", "TO", "KIND", "VIA"}, &ui.TableOptions{NoColor: plain})
		for _, e := range r.Edges {
			table.AddRow(e.From, e.To, string(e.Kind), e.Via)
		}
		table.Render()
	}

	for _, cycle := range r.Cycles {
		fmt.Fprint(w, ui.Warning("dependency cycle: "+strings.Join(cycle, " -> "), plain))
	}
	for _, id := range r.Missing {
		fmt.Fprint(w, ui.Warning("unresolved reference: "+strings.TrimPrefix(id, "?"), plain))
	}
}
