package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/nucleus/internal/cli/ui"
	"github.com/conduit-lang/nucleus/runtime/beans"
	"github.com/conduit-lang/nucleus/runtime/lifecycle"
	"github.com/conduit-lang/nucleus/runtime/symbols"
)

type introspectFlags struct {
	*globalFlags
	format  string
	verbose bool
}

func (f *introspectFlags) json() bool { return f.format == "json" }

func (f *introspectFlags) plain() bool { return f.noColor || color.NoColor }

// NewIntrospectCommand creates the introspect command group
func NewIntrospectCommand(global *globalFlags) *cobra.Command {
	flags := &introspectFlags{globalFlags: global}

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Introspect loaded classes, phase handlers and beans",
		Long: `Introspect the runtime metadata.

The kernel is booted with the configured bean manifests and every class is
extracted and loaded, exactly as at runtime. The subcommands then report what
the loaders recorded: display names, categories, event and message bindings,
phase handler routing and bean descriptors.`,
		Example: `  # List every loaded class
  nucleus introspect classes

  # Show bindings and beans of one class
  nucleus introspect class Orc

  # Show which phase handler serves each class
  nucleus introspect handlers

  # Show what the warlord bean depends on
  nucleus introspect deps Orc/warlord

  # Check a bean manifest against the loaded classes
  nucleus introspect beans beans.yaml

  # JSON output for tooling
  nucleus introspect classes --format json`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.noColor {
				color.NoColor = true
			}
			switch flags.format {
			case "table", "json":
				return nil
			}
			return fmt.Errorf("unsupported format: %s (supported: json, table)", flags.format)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.format, "format", "table", "Output format: json or table")
	cmd.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "Show all details")

	cmd.AddCommand(newIntrospectClassesCommand(flags))
	cmd.AddCommand(newIntrospectClassCommand(flags))
	cmd.AddCommand(newIntrospectHandlersCommand(flags))
	cmd.AddCommand(newIntrospectBeansCommand(flags))
	cmd.AddCommand(newIntrospectDepsCommand(flags))

	return cmd
}

func newIntrospectClassesCommand(flags *introspectFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List every extracted class",
		Long: `List every extracted class with its category and binding counts.

Classes outside the scene, object, view and component categories are
extracted only and listed under the "class" category.`,
		Example: `  nucleus introspect classes
  nucleus introspect classes --category object
  nucleus introspect classes --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags.globalFlags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			rows := collectClasses(s.kernel)
			if category != "" {
				if categoryOrder(category) == 4 && category != plainCategory {
					return fmt.Errorf("unknown category: %s", category)
				}
				filtered := rows[:0]
				for _, r := range rows {
					if r.Category == category {
						filtered = append(filtered, r)
					}
				}
				rows = filtered
			}

			out := cmd.OutOrStdout()
			if flags.json() {
				return writeJSON(out, rows)
			}
			return renderClasses(out, rows, flags)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category: scene, object, view, component or class")
	return cmd
}

func renderClasses(w io.Writer, rows []ClassSummary, flags *introspectFlags) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No classes found.")
		return nil
	}

	ui.Header(w, fmt.Sprintf("CLASSES (%d total)", len(rows)), flags.plain())
	headers := []string{"NAME", "CATEGORY", "EVENTS", "MESSAGES", "BEANS"}
	if flags.verbose {
		headers = append(headers, "CLASS", "BASE")
	}
	table := ui.NewTable(w, headers, &ui.TableOptions{NoColor: flags.plain()})
	for _, r := range rows {
		cells := []string{r.Name, r.Category, fmt.Sprint(r.Events), fmt.Sprint(r.Messages), fmt.Sprint(r.Beans)}
		if flags.verbose {
			cells = append(cells, r.Class, r.Base)
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}

func newIntrospectClassCommand(flags *introspectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "class <name>",
		Short: "Show the metadata of one class",
		Long: `Show the metadata of one class: category attributes, tags, fields,
event and message bindings, and beans.

The name may be the display name, the type name or the package qualified
type name.`,
		Example: `  nucleus introspect class Orc
  nucleus introspect class OrcObject --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags.globalFlags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			class, names := findClass(s.kernel, args[0])
			if class == nil {
				suggestions := ui.FindSimilar(args[0], names, nil)
				fmt.Fprint(cmd.ErrOrStderr(), ui.ClassNotFoundError(args[0], suggestions, flags.plain()))
				return fmt.Errorf("class %q not found", args[0])
			}

			detail := describeClass(s.kernel, class)
			out := cmd.OutOrStdout()
			if flags.json() {
				return writeJSON(out, detail)
			}
			renderClass(out, detail, flags)
			return nil
		},
	}
}

func renderClass(w io.Writer, d ClassDetail, flags *introspectFlags) {
	plain := flags.plain()
	ui.Header(w, d.Name, plain)

	kv := ui.NewKeyValueTable(w, plain)
	kv.AddRow("Category", d.Category)
	kv.AddRow("Class", d.Class)
	if d.Base != "" {
		kv.AddRow("Base", d.Base)
	}
	kv.AddRow("Flags", d.Flags)
	if len(d.Tags) > 0 {
		kv.AddRow("Tags", strings.Join(d.Tags, ", "))
	}
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv.AddRow(k, d.Attributes[k])
	}
	kv.Render()

	if flags.verbose && len(d.Fields) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, []string{"FIELD", "TYPE", "TAGS"}, &ui.TableOptions{NoColor: plain})
		for _, f := range d.Fields {
			table.AddRow(f.Name, f.Type, strings.Join(f.Tags, ", "))
		}
		table.Render()
	}

	if len(d.Bindings) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, []string{"KIND", "ID", "PAYLOAD", "PHASE", "METHOD"}, &ui.TableOptions{NoColor: plain})
		for _, b := range d.Bindings {
			table.AddRow(b.Kind, b.ID, b.Payload, b.Phase, b.Method)
		}
		table.Render()
	}

	if len(d.BeanList) > 0 {
		fmt.Fprintln(w)
		renderBeans(w, d.BeanList, nil, plain)
	}
}

func newIntrospectHandlersCommand(flags *introspectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "Show phase handlers and the handler each class resolves to",
		Long: `Show the registered phase handlers, most specific first, and for every
loaded class the Start and Destroy handler that would serve its instances.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags.globalFlags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			handlers := collectHandlers(s.kernel)
			routes := collectRoutes(s.kernel)
			out := cmd.OutOrStdout()
			if flags.json() {
				return writeJSON(out, struct {
					Handlers []HandlerSummary `json:"handlers"`
					Routes   []RouteSummary   `json:"routes"`
				}{handlers, routes})
			}

			plain := flags.plain()
			ui.Header(out, "PHASE HANDLERS", plain)
			table := ui.NewTable(out, []string{"PHASE", "TARGET", "PENDING"}, &ui.TableOptions{NoColor: plain})
			for _, h := range handlers {
				table.AddRow(h.Phase, h.Target, fmt.Sprint(h.Pending))
			}
			table.Render()

			fmt.Fprintln(out)
			ui.Header(out, "ROUTES", plain)
			table = ui.NewTable(out, []string{"CLASS", lifecycle.Start.String(), lifecycle.Destroy.String()}, &ui.TableOptions{NoColor: plain})
			for _, r := range routes {
				table.AddRow(r.Class, r.Start, r.Destroy)
			}
			table.Render()
			return nil
		},
	}
}

// BeanCheck is the validation result of one manifest bean
type BeanCheck struct {
	BeanDetail
	Error string `json:"error,omitempty"`
}

func newIntrospectBeansCommand(flags *introspectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "beans <file>",
		Short: "Check a bean manifest against the loaded classes",
		Long: `Check a bean manifest against the loaded classes.

The manifest is applied to a kernel without any other manifest. Every bean is
then built, which resolves its references and decodes its literal values, and
every component reference is resolved.`,
		Example: `  nucleus introspect beans internal/sandbox/beans.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			s, err := openSession(flags.globalFlags, false)
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := beans.LoadManifest(path)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ManifestError(path, err, flags.plain()))
				return err
			}
			if err := s.kernel.ApplyManifest(m); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ManifestError(path, err, flags.plain()))
				return err
			}

			var checks []BeanCheck
			failed := 0
			for _, entry := range m.Classes {
				for i := range entry.Beans {
					check := BeanCheck{BeanDetail: describeBean(entry.Class, &entry.Beans[i])}
					if err := checkBean(s.kernel.Beans(), entry.Class, entry.Beans[i]); err != nil {
						check.Error = err.Error()
						failed++
					}
					checks = append(checks, check)
				}
			}

			out := cmd.OutOrStdout()
			if flags.json() {
				if err := writeJSON(out, checks); err != nil {
					return err
				}
			} else {
				details := make([]BeanDetail, len(checks))
				errs := make([]string, len(checks))
				for i, c := range checks {
					details[i], errs[i] = c.BeanDetail, c.Error
				}
				renderBeans(out, details, errs, flags.plain())
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d beans invalid", failed, len(checks))
			}
			if !flags.json() {
				fmt.Fprintln(out)
				ui.WriteSuccess(out, fmt.Sprintf("%d beans valid", len(checks)), flags.plain())
			}
			return nil
		},
	}
}

// checkBean builds the bean and resolves its component references
func checkBean(c *beans.Container, class string, b symbols.Bean) error {
	if _, err := c.Get(class, b.Name); err != nil {
		return err
	}
	for _, comp := range b.Components {
		if _, err := beans.Activation(comp); err != nil {
			return err
		}
		if _, _, err := c.Resolve(comp.RefType, comp.RefName); err != nil {
			return err
		}
	}
	return nil
}

// renderBeans writes a bean table; errs, when set, adds a status column
func renderBeans(w io.Writer, list []BeanDetail, errs []string, plain bool) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No beans found.")
		return
	}
	headers := []string{"CLASS", "BEAN", "SINGLETON", "INHERIT", "FIELDS", "COMPONENTS"}
	if list[0].Class == "" {
		headers = headers[1:]
	}
	if errs != nil {
		headers = append(headers, "STATUS")
	}

	table := ui.NewTable(w, headers, &ui.TableOptions{NoColor: plain})
	for i, b := range list {
		var cells []string
		if b.Class != "" {
			cells = append(cells, b.Class)
		}
		cells = append(cells, b.Name, yesNo(b.Singleton), yesNo(b.Inherit),
			strings.Join(b.Fields, " "), strings.Join(b.Components, " "))
		if errs != nil {
			status := "ok"
			if errs[i] != "" {
				status = errs[i]
			}
			cells = append(cells, status)
		}
		table.AddRow(cells...)
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
