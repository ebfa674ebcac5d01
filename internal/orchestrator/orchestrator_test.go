package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubAgent struct {
	name  string
	res   agent.Result
	err   error
	panic any
	delay time.Duration
	runs  *int32
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Run(ctx context.Context) (agent.Result, error) {
	if s.runs != nil {
		atomic.AddInt32(s.runs, 1)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panic != nil {
		panic(s.panic)
	}
	return s.res, s.err
}

func factory(a *stubAgent) agent.Factory {
	return func(agent.Root, agent.Options) agent.Agent { return a }
}

type recordingRenderer struct {
	calls   int
	lastDoc *agent.Document
	written []string
	err     error
}

func (r *recordingRenderer) Generate(base string, doc *agent.Document, formats []string) ([]string, error) {
	r.calls++
	r.lastDoc = doc
	return r.written, r.err
}

func memRoot() agent.Root {
	return agent.Root{Path: "/repo", FS: afero.NewMemMapFs()}
}

func TestRunOrderAndKeys(t *testing.T) {
	rr := &recordingRenderer{written: []string{"out.json"}}
	o := New(memRoot(), rr)
	o.Register(factory(&stubAgent{name: "parser_results", res: agent.Result{"file_count": 1}}), nil)
	o.Register(factory(&stubAgent{name: "security_findings", res: agent.Result{"count": 0}}), nil)
	o.Register(factory(&stubAgent{name: "performance_issues", res: agent.Result{"count": 2}}), nil)

	doc, written, err := o.Run(context.Background(), "out", []string{"json"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := []string{"parser_results", "security_findings", "performance_issues"}
	if diff := cmp.Diff(want, doc.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if rr.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", rr.calls)
	}
	if rr.lastDoc != doc {
		t.Error("renderer received a different document")
	}
	if diff := cmp.Diff([]string{"out.json"}, written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRecordsFailures(t *testing.T) {
	rr := &recordingRenderer{}
	o := New(memRoot(), rr)
	o.Register(factory(&stubAgent{name: "broken", err: errors.New("disk on fire")}), nil)
	o.Register(factory(&stubAgent{name: "panicky", panic: "nil map"}), nil)
	o.Register(factory(&stubAgent{name: "fine", res: agent.Result{"count": 0}}), nil)

	doc, _, err := o.Run(context.Background(), "out", nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	got := entries(doc)
	want := map[string]any{
		"broken":  agent.Result{"error": "disk on fire"},
		"panicky": agent.Result{"error": "panic: nil map"},
		"fine":    agent.Result{"count": 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInvalidFormatRunsNothing(t *testing.T) {
	var runs int32
	rr := &recordingRenderer{}
	o := New(memRoot(), rr)
	o.Register(factory(&stubAgent{name: "a", runs: &runs}), nil)

	_, _, err := o.Run(context.Background(), "out", []string{"invalid_format"})
	var ufe *report.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("error = %v, want UnsupportedFormatError", err)
	}
	if !strings.Contains(err.Error(), "invalid_format") {
		t.Errorf("error should name the format: %v", err)
	}
	if runs != 0 {
		t.Errorf("agent ran %d times before validation", runs)
	}
	if rr.calls != 0 {
		t.Error("renderer invoked for invalid formats")
	}
}

func TestRunZeroAgents(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := New(memRoot(), report.New(report.WithFs(fs)))

	doc, written, err := o.Run(context.Background(), "empty", []string{"json"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if doc.Len() != 0 {
		t.Errorf("document has %d keys, want 0", doc.Len())
	}
	if diff := cmp.Diff([]string{"empty.json"}, written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
	data, err := afero.ReadFile(fs, "empty.json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Errorf("json = %q, want {}", data)
	}
}

func TestRunRenderErrorKeepsDocument(t *testing.T) {
	rr := &recordingRenderer{err: errors.New("json failed")}
	o := New(memRoot(), rr)
	o.Register(factory(&stubAgent{name: "a", res: agent.Result{"count": 1}}), nil)

	doc, _, err := o.Run(context.Background(), "out", nil)
	if err == nil {
		t.Fatal("expected render error")
	}
	if doc == nil || doc.Len() != 1 {
		t.Errorf("document should be returned alongside render error")
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	build := func(opts ...Option) *Orchestrator {
		o := New(memRoot(), &recordingRenderer{}, opts...)
		o.Register(factory(&stubAgent{name: "slow", delay: 30 * time.Millisecond, res: agent.Result{"n": 1}}), nil)
		o.Register(factory(&stubAgent{name: "fast", res: agent.Result{"n": 2}}), nil)
		o.Register(factory(&stubAgent{name: "bad", err: errors.New("nope")}), nil)
		return o
	}

	seq, _, err := build().Run(context.Background(), "out", nil)
	if err != nil {
		t.Fatal(err)
	}
	par, _, err := build(WithParallel(3)).Run(context.Background(), "out", nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(seq.Keys(), par.Keys()); diff != "" {
		t.Errorf("key order differs (-seq +par):\n%s", diff)
	}
	if diff := cmp.Diff(entries(seq), entries(par)); diff != "" {
		t.Errorf("content differs (-seq +par):\n%s", diff)
	}
}

func TestRegisterPassesOptions(t *testing.T) {
	var got agent.Options
	var gotRoot agent.Root
	f := func(root agent.Root, opts agent.Options) agent.Agent {
		got, gotRoot = opts, root
		return &stubAgent{name: "x"}
	}

	root := memRoot()
	o := New(root, &recordingRenderer{})
	o.Register(f, agent.Options{"max_lines": 10})

	if got.Int("max_lines", 0) != 10 {
		t.Errorf("options not forwarded: %v", got)
	}
	if gotRoot.Path != "/repo" {
		t.Errorf("root = %q", gotRoot.Path)
	}
	if diff := cmp.Diff([]string{"x"}, o.Agents()); diff != "" {
		t.Errorf("agents mismatch (-want +got):\n%s", diff)
	}
}

func entries(doc *agent.Document) map[string]any {
	out := make(map[string]any, doc.Len())
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		out[k] = v
	}
	return out
}
