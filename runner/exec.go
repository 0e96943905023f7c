package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/solaudit/sentry/generator"
)

// execConfirmCollaborator implements ConfirmCollaborator by shelling out to
// an external binary on PATH, the way git invokes a credential helper by
// fixed name: --llm-confirm is a bool, not a path, so the binary itself
// (confirmCollaboratorBinary) carries whatever LLM integration an operator
// wants to plug in. The candidate's confirmation prompt is piped in on
// stdin; the binary must print one JSON object on stdout.
const confirmCollaboratorBinary = "sentry-llm-confirm"

// ExecPoCRunner implements PoCCollaborator by invoking the binary named by
// --poc-runner with the candidate serialized as JSON on stdin and reading
// one JSON object from stdout, as execConfirmCollaborator does.
type ExecPoCRunner struct {
	BinaryPath string
}

type execConfirmCollaborator struct{}

// NewExecConfirmCollaborator returns a ConfirmCollaborator backed by
// confirmCollaboratorBinary. Callers should check exec.LookPath first (see
// cmd/scan.go) so a missing binary fails at startup rather than once per
// candidate.
func NewExecConfirmCollaborator() ConfirmCollaborator {
	return execConfirmCollaborator{}
}

type execVerdictWire struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (execConfirmCollaborator) Confirm(ctx context.Context, candidate generator.VulnCandidate) (ConfirmVerdict, error) {
	prompt := BuildConfirmationPrompt(candidate)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, confirmCollaboratorBinary)
	cmd.Stdin = bytes.NewBufferString(prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ConfirmVerdict{}, fmt.Errorf("%s: %w: %s", confirmCollaboratorBinary, err, stderr.String())
	}
	var wire execVerdictWire
	if err := json.Unmarshal(stdout.Bytes(), &wire); err != nil {
		return ConfirmVerdict{}, fmt.Errorf("%s: malformed verdict: %w", confirmCollaboratorBinary, err)
	}
	return ConfirmVerdict{Verdict: wire.Verdict, Confidence: wire.Confidence, Rationale: wire.Rationale}, nil
}

type execPoCWire struct {
	Verdict string `json:"verdict"`
	Logs    string `json:"logs"`
}

func (r ExecPoCRunner) Execute(ctx context.Context, candidate generator.VulnCandidate) (PoCResult, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return PoCResult{}, fmt.Errorf("marshal candidate %s: %w", candidate.ID, err)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.BinaryPath, candidate.ID)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return PoCResult{Verdict: generator.PoCError, Logs: stderr.String()}, fmt.Errorf("%s: %w", r.BinaryPath, err)
	}
	var wire execPoCWire
	if err := json.Unmarshal(stdout.Bytes(), &wire); err != nil {
		return PoCResult{Verdict: generator.PoCError, Logs: stdout.String()}, fmt.Errorf("%s: malformed result: %w", r.BinaryPath, err)
	}
	return PoCResult{Verdict: wire.Verdict, Logs: wire.Logs}, nil
}

// ConfirmCollaboratorBinary exposes the fixed LLM-confirmation binary name
// so cmd/scan.go can exec.LookPath it before committing to --llm-confirm.
func ConfirmCollaboratorBinary() string { return confirmCollaboratorBinary }
