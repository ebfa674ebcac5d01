package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/gemini"
)

type stubSummarizer struct {
	got []gemini.Source
}

func (s *stubSummarizer) Summarize(_ context.Context, sources []gemini.Source) gemini.Summary {
	s.got = sources
	return gemini.Summary{Text: "summary", Files: len(sources)}
}

func memRoot(t *testing.T, files map[string]string) agent.Root {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo", 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/repo", name), []byte(content), 0o644))
	}
	return agent.Root{Path: "/repo", FS: fs}
}

func run(t *testing.T, root agent.Root, s Summarizer) agent.Result {
	t.Helper()
	a := New(s)(root, nil)
	require.Equal(t, "parser_results", a.Name())
	res, err := a.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestSingleFunction(t *testing.T) {
	res := run(t, memRoot(t, map[string]string{"foo.py": "def foo(): pass\n"}), &stubSummarizer{})

	assert.Equal(t, 1, res["file_count"])
	assert.Equal(t, 1, res["function_count"])
	assert.Equal(t, 1, res["call_graph_nodes"])
	assert.Equal(t, 0, res["call_graph_edges"])
	assert.Equal(t, "summary", res["gemini_summary"])
}

func TestCallGraph(t *testing.T) {
	src := `
def main():
    load()
    load()
    run(1)

def load():
    return open("x")

class Worker:
    def run(self):
        print("hi")
`
	res := run(t, memRoot(t, map[string]string{"app.py": src}), &stubSummarizer{})

	assert.Equal(t, 3, res["function_count"])
	// app.py:main, app.py:load, app.py:run plus callees load, run, open, print.
	assert.Equal(t, 7, res["call_graph_nodes"])
	// main->load, main->run, load->open, run->print; duplicates collapse.
	assert.Equal(t, 4, res["call_graph_edges"])
}

func TestSyntaxErrorsSkipped(t *testing.T) {
	s := &stubSummarizer{}
	res := run(t, memRoot(t, map[string]string{
		"good.py": "def ok(): pass\n",
		"bad.py":  "def broken(:\n",
	}), s)

	assert.Equal(t, 2, res["file_count"])
	assert.Equal(t, 1, res["function_count"])
	assert.Equal(t, 1, res["parse_errors"])
	assert.Len(t, s.got, 2, "summarizer still sees every readable file")
}

func TestEmptyRepository(t *testing.T) {
	res := run(t, memRoot(t, nil), &stubSummarizer{})
	assert.Equal(t, 0, res["file_count"])
	assert.Equal(t, 0, res["function_count"])
}

func TestExcludeDirsOption(t *testing.T) {
	root := memRoot(t, map[string]string{
		"src/a.py":    "def a(): pass\n",
		"vendor/b.py": "def b(): pass\n",
		".venv/c.py":  "def c(): pass\n",
	})
	res, err := New(nil)(root, agent.Options{"exclude_dirs": []string{"vendor"}}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res["file_count"])
	assert.Equal(t, "summarizer not configured", res["summary_error"])
}

func TestMissingRootIsError(t *testing.T) {
	a := New(nil)(agent.Root{Path: "/missing", FS: afero.NewMemMapFs()}, nil)
	_, err := a.Run(context.Background())
	assert.Error(t, err)
}
