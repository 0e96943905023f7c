package runner

import (
	"context"
	"fmt"

	"github.com/solaudit/sentry/generator"
)

// ConfirmCollaborator is the optional LLM confirmation interface (PROVE
// mode): given a VulnCandidate, it returns a verdict on whether the
// candidate is a real, exploitable issue. Absent configuration (nil) is
// tolerated everywhere in runner — confirmation never blocks a SCAN-mode
// result.
type ConfirmCollaborator interface {
	Confirm(ctx context.Context, candidate generator.VulnCandidate) (ConfirmVerdict, error)
}

// ConfirmVerdict is the collaborator's answer for one candidate, per
// spec.md §4.6: a three-way verdict plus the confidence it was given at.
type ConfirmVerdict struct {
	Verdict    string // generator.ConfirmConfirmed | ConfirmUncertain | ConfirmRejected
	Confidence float64
	Rationale  string
}

// PoCCollaborator is the optional proof-of-concept execution interface
// (FIXPLAN mode): given a VulnCandidate, it attempts to produce a runnable
// exploit transaction against a local validator and reports whether it
// landed.
type PoCCollaborator interface {
	Execute(ctx context.Context, candidate generator.VulnCandidate) (PoCResult, error)
}

// PoCResult is the outcome of one proof-of-concept execution attempt, per
// spec.md §4.6's grade-A requirement.
type PoCResult struct {
	Verdict string // generator.PoCProven | PoCDisproven | PoCError
	Logs    string
}

// BuildConfirmationPrompt constructs the natural-language prompt an
// external LLM confirmation collaborator is expected to answer: does this
// candidate reach its sink with the claimed guard genuinely absent. Kept
// here, outside any one collaborator; execConfirmCollaborator (exec.go)
// pipes it to an external binary, which carries the LLM integration itself
// (§1 scopes LLM/PoC execution out as an external, user-supplied integration).
func BuildConfirmationPrompt(c generator.VulnCandidate) string {
	return fmt.Sprintf(`Vulnerability candidate %s (%s, severity %s, confidence %.2f)

Instruction: %s
Location: %s:%d-%d
Reason: %s

Excerpt:
%s

Does the account/guard state described above genuinely allow an attacker
to reach this sink without the expected authorization? Answer confirmed,
rejected, or uncertain, with a one-sentence rationale.`,
		c.ID, c.VulnClass, c.Severity, c.Confidence,
		c.Instruction, c.Span.File, c.Span.StartLine, c.Span.EndLine,
		c.Reason, c.Excerpt)
}
