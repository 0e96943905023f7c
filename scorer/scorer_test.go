package scorer

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreExactMatch(t *testing.T) {
	f := gradefilter.ActionableFinding{
		VulnClass:   "missing_signer",
		Instruction: "withdraw",
		Severity:    factgraph.SeverityCritical,
		Span:        factgraph.AstSpan{File: "programs/vault/src/lib.rs"},
		InvolvedAccounts: []generator.InvolvedAccount{{Name: "authority"}},
	}
	e := ExpectedFinding{
		Criteria: MatchCriteria{
			VulnClass:    "missing_signer",
			Instruction:  "withdraw",
			AccountNames: []string{"authority"},
			File:         "lib.rs",
			MinSeverity:  factgraph.SeverityHigh,
		},
	}
	assert.Equal(t, 1.0, score(f, e))
}

// TestScoreAccountsScaledByPartialMatchFraction covers §4.7's "accounts"
// criterion: the 0.15 weight is scaled by the fraction of expected account
// names that partially match, not awarded all-or-nothing for any overlap.
func TestScoreAccountsScaledByPartialMatchFraction(t *testing.T) {
	f := gradefilter.ActionableFinding{
		VulnClass:        "missing_signer",
		Instruction:      "withdraw",
		InvolvedAccounts: []generator.InvolvedAccount{{Name: "vault_authority"}},
	}
	e := ExpectedFinding{
		Criteria: MatchCriteria{
			VulnClass:    "missing_signer",
			Instruction:  "withdraw",
			AccountNames: []string{"authority", "mint"},
		},
	}
	// "authority" partially matches "vault_authority"; "mint" matches nothing,
	// so only half of the 0.15 accounts weight is earned.
	want := (weightClass + weightInstruction + weightAccounts*0.5) / (weightClass + weightInstruction + weightAccounts)
	assert.InDelta(t, want, score(f, e), 0.001)
}

func TestScoreClassMismatchScoresLow(t *testing.T) {
	f := gradefilter.ActionableFinding{VulnClass: "missing_owner", Instruction: "withdraw"}
	e := ExpectedFinding{Criteria: MatchCriteria{VulnClass: "missing_signer", Instruction: "withdraw"}}
	assert.Less(t, score(f, e), matchThreshold)
}

func TestScoreAltVulnClass(t *testing.T) {
	f := gradefilter.ActionableFinding{VulnClass: "close_revive"}
	e := ExpectedFinding{Criteria: MatchCriteria{VulnClass: "account_close", AltVulnClasses: []string{"close_revive"}}}
	assert.Equal(t, 1.0, score(f, e))
}

func TestScoreRepoMatchesAndCountsFalseNegatives(t *testing.T) {
	repo := GoldenRepo{
		ID: "fix-missing-signer",
		ExpectedFindings: []ExpectedFinding{
			{ID: "exp-1", Criteria: MatchCriteria{VulnClass: "missing_signer", Instruction: "withdraw"}},
			{ID: "exp-2", Criteria: MatchCriteria{VulnClass: "arbitrary_cpi", Instruction: "swap"}},
		},
	}
	findings := []gradefilter.ActionableFinding{
		{VulnClass: "missing_signer", Instruction: "withdraw", Severity: factgraph.SeverityCritical},
	}

	result := ScoreRepo(repo, findings)
	assert.Len(t, result.TruePositives, 1)
	assert.Len(t, result.FalseNegatives, 1)
	assert.Empty(t, result.FalsePositives)
	assert.Equal(t, 1.0, result.Precision)
	assert.InDelta(t, 0.5, result.Recall, 0.001)
}

func TestScoreRepoFlagsTrapHit(t *testing.T) {
	repo := GoldenRepo{
		ID: "cashio",
		ExpectedFindings: []ExpectedFinding{
			{ID: "trap-1", IsTrap: true, Criteria: MatchCriteria{VulnClass: "missing_signer", Instruction: "deposit"}},
		},
	}
	findings := []gradefilter.ActionableFinding{
		{VulnClass: "missing_signer", Instruction: "deposit", Severity: factgraph.SeverityCritical},
	}

	result := ScoreRepo(repo, findings)
	require.Len(t, result.TrapHits, 1)
	assert.Len(t, result.FalsePositives, 1)
	assert.Empty(t, result.TruePositives)
}

func TestScoreSuiteMicroAverages(t *testing.T) {
	repos := []GoldenRepo{
		{ID: "r1", ExpectedFindings: []ExpectedFinding{{Criteria: MatchCriteria{VulnClass: "missing_signer", Instruction: "withdraw"}}}},
		{ID: "r2", ExpectedFindings: []ExpectedFinding{{Criteria: MatchCriteria{VulnClass: "arbitrary_cpi", Instruction: "swap"}}}},
	}
	byRepo := map[string][]gradefilter.ActionableFinding{
		"r1": {{VulnClass: "missing_signer", Instruction: "withdraw"}},
		"r2": {},
	}

	suite := ScoreSuite(repos, byRepo)
	assert.Equal(t, 1, suite.TotalTP)
	assert.Equal(t, 1, suite.TotalFN)
	assert.Equal(t, 0, suite.TotalFP)
	assert.InDelta(t, 0.5, suite.Recall, 0.001)
}
