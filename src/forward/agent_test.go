package forward

import (
	"context"
	"errors"
	"testing"
	"time"

	"devsonar/src/logger"
	"devsonar/src/session"
)

type runCall struct {
	dir   string
	name  string
	args  []string
	stdin string
}

type fakeRunner struct {
	calls   []runCall
	results []fakeResult
}

type fakeResult struct {
	stdout string
	err    error
}

func (f *fakeRunner) run(ctx context.Context, dir, name string, args []string, stdin string) (string, string, error) {
	f.calls = append(f.calls, runCall{dir: dir, name: name, args: args, stdin: stdin})
	if len(f.results) == 0 {
		return "", "", nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.stdout, "", r.err
}

func hasResume(args []string) (string, bool) {
	for i, a := range args {
		if a == "--resume" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func newAgentForwarder(t *testing.T, runner *fakeRunner, sessionID string) (*AgentForwarder, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(t.TempDir(), nil)
	if sessionID != "" {
		if err := sessions.Save(sessionID); err != nil {
			t.Fatal(err)
		}
	}
	return &AgentForwarder{
		Command:        "claude",
		ProjectDir:     "/srv/project",
		MaxStackLength: 2000,
		Sessions:       sessions,
		Logger:         logger.NewSilentLogger(),
		Run:            runner.run,
		Now:            func() time.Time { return promptNow },
	}, sessions
}

func TestAgentForwarder_NewSession(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{stdout: `{"session_id":"sess-new","result":"Fixed it"}`}}}
	f, sessions := newAgentForwarder(t, runner, "")

	if err := f.Forward(context.Background(), sampleReports()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.calls))
	}

	call := runner.calls[0]
	if call.name != "claude" || call.dir != "/srv/project" {
		t.Errorf("unexpected invocation %+v", call)
	}
	if call.args[0] != "-p" || call.args[1] != "--dangerously-skip-permissions" {
		t.Errorf("unexpected args %v", call.args)
	}
	if _, ok := hasResume(call.args); ok {
		t.Error("expected no --resume without a session")
	}
	if call.stdin != BuildPrompt(sampleReports(), 2000, promptNow) {
		t.Error("expected the prompt on stdin")
	}
	if sessions.ID() != "sess-new" {
		t.Errorf("expected session id to be saved, got %q", sessions.ID())
	}
}

func TestAgentForwarder_ResumesSession(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{stdout: "plain text answer"}}}
	f, sessions := newAgentForwarder(t, runner, "sess-1")

	if err := f.Forward(context.Background(), sampleReports()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, ok := hasResume(runner.calls[0].args); !ok || id != "sess-1" {
		t.Errorf("expected --resume sess-1, got %v", runner.calls[0].args)
	}
	if sessions.ID() != "sess-1" {
		t.Errorf("expected session unchanged, got %q", sessions.ID())
	}
}

func TestAgentForwarder_ResetsSessionAndRetriesOnce(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: errors.New("exit status 1")},
		{stdout: `{"session_id":"sess-2"}`},
	}}
	f, sessions := newAgentForwarder(t, runner, "stale")

	if err := f.Forward(context.Background(), sampleReports()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(runner.calls))
	}
	if _, ok := hasResume(runner.calls[1].args); ok {
		t.Error("expected retry without --resume")
	}
	if sessions.ID() != "sess-2" {
		t.Errorf("expected new session saved, got %q", sessions.ID())
	}
}

func TestAgentForwarder_NoRetryWithoutSession(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{err: errors.New("exit status 1")}}}
	f, _ := newAgentForwarder(t, runner, "")

	if err := f.Forward(context.Background(), sampleReports()); err == nil {
		t.Fatal("expected error")
	}
	if len(runner.calls) != 1 {
		t.Errorf("expected a single invocation, got %d", len(runner.calls))
	}
}

func TestAgentForwarder_RetryFailureIsReturned(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: errors.New("resume failed")},
		{err: errors.New("still failing")},
	}}
	f, sessions := newAgentForwarder(t, runner, "stale")

	err := f.Forward(context.Background(), sampleReports())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(runner.calls) != 2 {
		t.Errorf("expected exactly one retry, got %d invocations", len(runner.calls))
	}
	if sessions.ID() != "" {
		t.Errorf("expected session to stay reset, got %q", sessions.ID())
	}
}
