package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

// writeKnowledgeBase creates a small corpus and a config pointing at an
// embedding host that refuses connections, so the engine runs lexically.
func writeKnowledgeBase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"frameworks/moat.md":     "护城河来自网络效应、品牌和转换成本等竞争优势。",
		"frameworks/demand.md":   "需求分析：明确目标用户，估算市场规模。",
		"benchmarks/retail.json": `{"industry": "零售", "metric": "复购率"}`,
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	configPath := filepath.Join(root, "kbase.yaml")
	config := "embedding:\n" +
		"  host: http://127.0.0.1:1\n" +
		"  probe_timeout: 1s\n" +
		"vector_db:\n" +
		"  persist_directory: " + filepath.Join(root, "db") + "\n" +
		"knowledge_base:\n" +
		"  root: " + root + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))
	return configPath
}

func TestReembedCommandFlags(t *testing.T) {
	app := newApp()
	cmd := findCommand(t, app, "reembed")

	t.Run("embedding-model is required", func(t *testing.T) {
		err := newApp().Run([]string{"kbase", "reembed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding-model")
	})

	t.Run("embedding-model has no default value", func(t *testing.T) {
		var modelFlag *cli.StringFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "embedding-model" {
				modelFlag = f
				break
			}
		}
		require.NotNil(t, modelFlag)
		assert.Empty(t, modelFlag.Value)
		assert.True(t, modelFlag.Required)
		assert.Empty(t, modelFlag.EnvVars)
	})

	t.Run("numeric defaults", func(t *testing.T) {
		defaults := map[string]int{}
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok {
				defaults[f.Name] = f.Value
			}
		}
		assert.Equal(t, map[string]int{
			"batch-size":      100,
			"report-interval": 100,
			"max-retries":     3,
		}, defaults)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		err := newApp().Run([]string{"kbase", "reembed", "--embedding-model", "m", "--batch-size", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("invalid max retries", func(t *testing.T) {
		err := newApp().Run([]string{"kbase", "reembed", "--embedding-model", "m", "--max-retries", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max-retries")
	})
}

func TestCommandsRequireArguments(t *testing.T) {
	for command, name := range map[string]string{
		"search":     "query",
		"context":    "category",
		"benchmarks": "industry",
	} {
		t.Run(command, func(t *testing.T) {
			err := newApp().Run([]string{"kbase", command})
			require.Error(t, err)
			assert.Contains(t, err.Error(), name+" is required")
		})
	}
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := newApp().Run([]string{"kbase", "--config", filepath.Join(t.TempDir(), "none.yaml"), "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config")
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kbase.ini")
		require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
		err := newApp().Run([]string{"kbase", "--config", path, "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})
}

func TestCategoriesCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"kbase", "categories"}))
	for _, name := range []string{"acquisition", "demand", "earning", "moat", "resolution"} {
		assert.Contains(t, out.String(), name)
	}
	assert.Contains(t, out.String(), "护城河")
}

func TestLexicalFallbackCommands(t *testing.T) {
	configPath := writeKnowledgeBase(t)

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		require.NoError(t, app.Run(append([]string{"kbase", "--log-level", "error", "--config", configPath}, args...)))
		return out.String()
	}

	t.Run("stats", func(t *testing.T) {
		out := run(t, "stats")
		assert.Contains(t, out, "Backend:    lexical")
		assert.Contains(t, out, "Chunks:     3")
	})

	t.Run("search with type filter", func(t *testing.T) {
		out := run(t, "search", "--type", "framework", "护城河 竞争优势")
		assert.Contains(t, out, "[1]")
		assert.Contains(t, out, "type=framework")
		assert.Contains(t, out, "护城河来自网络效应")
		assert.NotContains(t, out, "type=benchmark")
	})

	t.Run("search without matches", func(t *testing.T) {
		assert.Contains(t, run(t, "search", "zzzz"), "No results.")
	})

	t.Run("context", func(t *testing.T) {
		assert.Contains(t, run(t, "context", "moat"), "护城河")
	})

	t.Run("benchmarks", func(t *testing.T) {
		assert.Contains(t, run(t, "benchmarks", "零售"), "metric: 复购率")
	})

	t.Run("rebuild", func(t *testing.T) {
		assert.Contains(t, run(t, "rebuild"), "Chunks:     3")
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Value: "info"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test", "--log-level", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newApp().Run([]string{"kbase", "--log-level", "invalid", "categories"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.Equal(t, "debug", c.String("log-level"))
				return nil
			},
		}
		require.NoError(t, app.Run([]string{"test", "-l", "debug"}))
	})
}
