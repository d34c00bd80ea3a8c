package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/nucleus/internal/sandbox"
	"github.com/conduit-lang/nucleus/runtime/kernel"
)

// writeConfig writes a quiet nucleus.yaml listing manifests and returns its path
func writeConfig(t *testing.T, manifests ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("log:\n  level: error\nwatch:\n  debounce: 20ms\n")
	if len(manifests) > 0 {
		b.WriteString("beans:\n  manifests:\n")
		for _, m := range manifests {
			fmt.Fprintf(&b, "    - %s\n", m)
		}
	}
	path := filepath.Join(t.TempDir(), "nucleus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "nucleus", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	for _, name := range []string{"version", "introspect", "run", "watch", "completion"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	defer func() { Version = "dev" }()

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nucleus version: 1.0.0-test")
	assert.Contains(t, out, "Go version: ")
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "nucleus")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestIntrospectCommand(t *testing.T) {
	cmd := NewIntrospectCommand(&globalFlags{})
	assert.Equal(t, "introspect", cmd.Use)
	assert.NotEmpty(t, cmd.Example)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "table", format.DefValue)

	for _, name := range []string{"classes", "class", "handlers", "beans", "deps"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	_, _, err := execute(t, "--config", writeConfig(t), "introspect", "classes", "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestIntrospectClasses(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "introspect", "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASSES (8 total)")
	assert.Regexp(t, `Orc\s+object\s+2\s+1\s+2`, out)
	assert.Regexp(t, `Sword\s+class\s+0\s+0\s+1`, out)

	out, _, err = execute(t, "--config", cfg, "introspect", "classes", "--format", "json")
	require.NoError(t, err)
	var rows []ClassSummary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 8)
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"Arena", "Creature", "Orc", "Hud", "Scoreboard", "Armor", "Health", "Sword"}, names)
	assert.Equal(t, "entity.View", rows[3].Base)

	out, _, err = execute(t, "--config", cfg, "introspect", "classes", "--category", "view", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)

	_, _, err = execute(t, "--config", cfg, "introspect", "classes", "--category", "widget")
	assert.ErrorContains(t, err, "unknown category")
}

func TestIntrospectClass(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "introspect", "class", "Orc", "--format", "json")
	require.NoError(t, err)
	var detail ClassDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "object", detail.Category)
	assert.Equal(t, "1", detail.Attributes["functional_category"])
	assert.Contains(t, detail.Tags, "object")

	require.Len(t, detail.Bindings, 3)
	assert.Equal(t, BindingDetail{Kind: "event", ID: "1", Payload: "*sandbox.Hit", Phase: "start", Method: "OnHit(int32, *sandbox.Hit)"}, detail.Bindings[0])
	assert.Equal(t, "destroy", detail.Bindings[1].Phase)
	assert.Equal(t, "message", detail.Bindings[2].Kind)

	require.Len(t, detail.BeanList, 2)
	assert.Equal(t, "default", detail.BeanList[0].Name)
	assert.Equal(t, "warlord", detail.BeanList[1].Name)
	assert.Equal(t, []string{"ArmorComponent/plated@start", "HealthComponent@start"}, detail.BeanList[1].Components)

	out, _, err = execute(t, "--config", cfg, "introspect", "class", "OrcObject", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Orc\n")
	assert.Regexp(t, `Weapon\s+\*sandbox\.Sword\s+inject`, out)
	assert.Regexp(t, `message\s+10\s+start\s+OnTaunt\(int32\) error`, out)
}

func TestIntrospectClass_NotFound(t *testing.T) {
	_, errOut, err := execute(t, "--config", writeConfig(t), "introspect", "class", "Ork")
	assert.ErrorContains(t, err, `class "Ork" not found`)
	assert.Contains(t, errOut, "CLASS NOT FOUND: Ork")
	assert.Contains(t, errOut, "Orc")
}

func TestIntrospectHandlers(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "introspect", "handlers")
	require.NoError(t, err)
	assert.Contains(t, out, "PHASE HANDLERS")
	assert.Contains(t, out, "ROUTES")

	out, _, err = execute(t, "--config", cfg, "introspect", "handlers", "--format", "json")
	require.NoError(t, err)
	var result struct {
		Handlers []HandlerSummary `json:"handlers"`
		Routes   []RouteSummary   `json:"routes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Handlers, 8)
	require.Len(t, result.Routes, 7, "every categorized class")

	for _, r := range result.Routes {
		if r.Class == "OrcObject" {
			assert.Equal(t, "entity.Object", r.Start)
			assert.Equal(t, "entity.Object", r.Destroy)
		}
	}
}

func TestCollectHandlers_PendingPerTarget(t *testing.T) {
	k, err := sandbox.BootClasses(kernel.Options{})
	require.NoError(t, err)
	world := k.World()
	require.NoError(t, world.Create(&sandbox.OrcObject{}, "orc"))
	require.NoError(t, world.Create(&sandbox.ArenaScene{}, "arena"))
	require.NoError(t, world.Create(&sandbox.OrcObject{}, "orc2"))

	pending := make(map[string]int)
	for _, h := range collectHandlers(k) {
		pending[h.Phase+" "+h.Target] = h.Pending
	}
	assert.Equal(t, 2, pending["start entity.Object"])
	assert.Equal(t, 1, pending["start entity.Scene"])
	assert.Equal(t, 0, pending["start entity.View"])
	assert.Equal(t, 0, pending["destroy entity.Object"])
}

func TestIntrospectBeans(t *testing.T) {
	cfg := writeConfig(t)
	path := writeManifest(t, string(sandbox.DefaultManifest))

	out, _, err := execute(t, "--config", cfg, "introspect", "beans", path)
	require.NoError(t, err)
	assert.Regexp(t, `OrcObject\s+warlord\s+no\s+no\s+HP=120`, out)
	assert.Contains(t, out, "✓ 2 beans valid")
}

func TestIntrospectBeans_Invalid(t *testing.T) {
	cfg := writeConfig(t)

	path := writeManifest(t, `
classes:
  - class: OrcObject
    beans:
      - name: broken
        fields:
          - field: Mana
            value: 3
      - name: odd
        components:
          - ref_type: ArmorComponent
            phase: destroy
`)
	out, _, err := execute(t, "--config", cfg, "introspect", "beans", path, "--format", "json")
	assert.ErrorContains(t, err, "2 of 2 beans invalid")
	var checks []BeanCheck
	require.NoError(t, json.Unmarshal([]byte(out), &checks))
	require.Len(t, checks, 2)
	assert.Contains(t, checks[0].Error, "unknown bean field")
	assert.Contains(t, checks[1].Error, "unsupported activation phase")

	path = writeManifest(t, "classes:\n  - class: Dragon\n    beans:\n      - name: x\n")
	_, errOut, err := execute(t, "--config", cfg, "introspect", "beans", path)
	assert.Error(t, err)
	assert.Contains(t, errOut, "MANIFEST REJECTED")

	_, errOut, err = execute(t, "--config", cfg, "introspect", "beans", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, errOut, "MANIFEST REJECTED")
}

func TestIntrospectDeps(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "introspect", "deps", "Orc", "--format", "json")
	require.NoError(t, err)
	var report DepsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "OrcObject", report.Class)
	assert.Equal(t, []string{"OrcObject/default", "OrcObject/warlord"}, report.Roots)
	assert.Equal(t, 1, report.Depth)
	assert.Len(t, report.Nodes, 5)
	require.Len(t, report.Edges, 4)
	assert.Equal(t, "Sword/steel", report.Edges[0].To)
	assert.Equal(t, "inject", string(report.Edges[0].Kind))
	assert.Equal(t, "ArmorComponent/plated", report.Edges[2].To)
	assert.Empty(t, report.Cycles)
	assert.Empty(t, report.Missing)

	out, _, err = execute(t, "--config", cfg, "introspect", "deps", "Orc/warlord", "--kind", "component")
	require.NoError(t, err)
	assert.Contains(t, out, "OrcObject DEPENDENCIES")
	assert.Regexp(t, `OrcObject/warlord\s+ArmorComponent/plated\s+component\s+1`, out)
	assert.Regexp(t, `OrcObject/warlord\s+HealthComponent/default\s+component\s+0`, out)
	assert.NotContains(t, out, "Sword/steel")

	out, _, err = execute(t, "--config", cfg, "introspect", "deps", "Sword", "--reverse", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Edges, 2)
	assert.Len(t, report.Nodes, 3)

	_, _, err = execute(t, "--config", cfg, "introspect", "deps", "Orc", "--kind", "wire")
	assert.ErrorContains(t, err, "unknown edge kind")

	_, errOut, err := execute(t, "--config", cfg, "introspect", "deps", "Ork")
	assert.ErrorContains(t, err, `class "Ork" not found`)
	assert.Contains(t, errOut, "Orc")
}

func TestIntrospectDeps_Missing(t *testing.T) {
	path := writeManifest(t, `
classes:
  - class: OrcObject
    beans:
      - name: unarmed
        fields:
          - field: Weapon
            ref_type: Sword
            ref_name: rusty
`)
	out, _, err := execute(t, "--config", writeConfig(t, path), "introspect", "deps", "Orc/unarmed")
	require.NoError(t, err)
	assert.Contains(t, out, "! unresolved reference: Sword/rusty")
}

func TestRunCommand(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "run", "--for", "200ms", "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "nucleus kernel running")
	assert.Contains(t, out, "classes:   8")
	assert.Contains(t, out, "stopped after")
	assert.NotContains(t, out, "watching:")

	_, _, err = execute(t, "--config", writeConfig(t), "run", "--interval", "0s")
	assert.ErrorContains(t, err, "--interval must be positive")
}

func TestWatchCommand_RequiresManifests(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t), "watch", "--for", "100ms")
	assert.ErrorContains(t, err, "no bean manifests to watch")
}

func TestWatchCommand_Reload(t *testing.T) {
	path := writeManifest(t, string(sandbox.DefaultManifest))
	cfg := writeConfig(t, path)

	done := make(chan struct{})
	var out string
	var err error
	go func() {
		defer close(done)
		out, _, err = execute(t, "--config", cfg, "watch", "--for", "2s", "--interval", "10ms")
	}()

	time.Sleep(400 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, append(append([]byte(nil), sandbox.DefaultManifest...), "# edited\n"...), 0644))
	<-done

	require.NoError(t, err)
	assert.Contains(t, out, "watching:  "+path)
	assert.Contains(t, out, "✓ reloaded (tick")
}

func TestFormatReload(t *testing.T) {
	assert.Equal(t, "✓ reloaded (tick 3)", FormatReload(3, true))
}
