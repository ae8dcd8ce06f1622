package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"devsonar/src/contracts"
	"devsonar/src/logger"
	"devsonar/src/session"
)

// DefaultAgentTimeout bounds one agent invocation.
const DefaultAgentTimeout = 5 * time.Minute

// CommandRunner runs name with args in dir, feeding stdin, and returns what the process printed.
type CommandRunner func(ctx context.Context, dir, name string, args []string, stdin string) (stdout, stderr string, err error)

// ExecRunner is the CommandRunner backed by os/exec.
func ExecRunner(ctx context.Context, dir, name string, args []string, stdin string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// AgentForwarder pipes the remediation prompt into a coding agent CLI running in the
// project directory, resuming the previous conversation when one is known.
type AgentForwarder struct {
	Command        string
	ProjectDir     string
	Timeout        time.Duration
	MaxStackLength int
	Sessions       *session.Manager
	Logger         logger.Logger
	Run            CommandRunner
	Now            func() time.Time
}

// agentResult is the subset of the agent's JSON output that is used.
type agentResult struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	IsError   bool   `json:"is_error"`
}

// Forward sends the batch. When a resumed session fails, the session is reset and the
// prompt is sent once more in a fresh session.
func (f *AgentForwarder) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	prompt := BuildPrompt(reports, f.MaxStackLength, f.now())
	f.log().Debug("[AgentForwarder] === Prompt ===\n%s\n[AgentForwarder] === End Prompt ===", prompt)

	sessionID := f.sessionID()
	err := f.invoke(ctx, prompt, sessionID)
	if err == nil || sessionID == "" || ctx.Err() != nil {
		return err
	}

	f.log().Warn("[AgentForwarder] Resume failed for session %s, retrying with new session: %v", sessionID, err)
	if resetErr := f.Sessions.Reset(); resetErr != nil {
		f.log().Error("[AgentForwarder] Failed to reset session: %v", resetErr)
	}
	return f.invoke(ctx, prompt, "")
}

func (f *AgentForwarder) invoke(ctx context.Context, prompt, sessionID string) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", "--dangerously-skip-permissions", "--output-format", "json"}
	if sessionID != "" {
		args = append(args, "--resume", sessionID)
	}

	command := f.Command
	if command == "" {
		command = "claude"
	}
	run := f.Run
	if run == nil {
		run = ExecRunner
	}

	if sessionID == "" {
		f.log().Info("[AgentForwarder] Sending to %s (new session)", command)
	} else {
		f.log().Info("[AgentForwarder] Sending to %s (session %s)", command, sessionID)
	}

	stdout, stderr, err := run(ctx, f.ProjectDir, command, args, prompt)
	if stderr != "" {
		f.log().Warn("[AgentForwarder] %s stderr: %s", command, strings.TrimSpace(stderr))
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", command, err)
	}

	f.handleOutput(stdout)
	return nil
}

func (f *AgentForwarder) handleOutput(stdout string) {
	var result agentResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		if stdout != "" {
			f.log().Info("[AgentForwarder] === Agent Response ===\n%s\n[AgentForwarder] === End Agent Response ===", stdout)
		}
		return
	}

	if result.Result != "" {
		f.log().Info("[AgentForwarder] === Agent Response ===\n%s\n[AgentForwarder] === End Agent Response ===", result.Result)
	}
	if result.IsError {
		f.log().Warn("[AgentForwarder] Agent reported an error result")
	}
	if result.SessionID != "" && f.Sessions != nil && result.SessionID != f.Sessions.ID() {
		if err := f.Sessions.Save(result.SessionID); err != nil {
			f.log().Error("[AgentForwarder] Failed to save session: %v", err)
		}
	}
}

func (f *AgentForwarder) sessionID() string {
	if f.Sessions == nil {
		return ""
	}
	return f.Sessions.ID()
}

func (f *AgentForwarder) log() logger.Logger {
	if f.Logger == nil {
		return logger.NewSilentLogger()
	}
	return f.Logger
}

func (f *AgentForwarder) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}
