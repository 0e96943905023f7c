// Package scorer implements the Scorer (C7): matching ActionableFindings
// against a golden repo's expected findings with a weighted similarity
// score, then rolling per-repo and suite-wide precision/recall/F1.
package scorer

import (
	"strings"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
	"github.com/solaudit/sentry/gradefilter"
)

// MatchCriteria names the dimensions an ExpectedFinding is scored against,
// each carrying its own weight in the overall match score.
type MatchCriteria struct {
	VulnClass       string
	AltVulnClasses  []string // alternate acceptable classes, same weight as VulnClass
	Instruction     string
	AccountNames    []string
	File            string
	MinSeverity     factgraph.Severity
}

// ExpectedFinding is one ground-truth entry in a GoldenRepo fixture.
type ExpectedFinding struct {
	ID          string
	Description string
	Criteria    MatchCriteria
	IsTrap      bool // false-positive trap: must NOT be matched by any finding
}

// GoldenRepo is one fixture repo with its expected findings, per spec.md §7.
type GoldenRepo struct {
	ID               string
	RepoPath         string
	ExpectedFindings []ExpectedFinding
}

// Weights implement the §4.7 scoring formula: class 0.40, instruction 0.30,
// accounts 0.15, file 0.10, severity 0.05, normalized by the max applicable
// weight (a criterion with an empty value doesn't count against the match).
const (
	weightClass       = 0.40
	weightInstruction = 0.30
	weightAccounts    = 0.15
	weightFile        = 0.10
	weightSeverity    = 0.05
	matchThreshold    = 0.60
)

// score computes the weighted similarity between one finding and one
// expected finding, normalized to [0,1].
func score(f gradefilter.ActionableFinding, e ExpectedFinding) float64 {
	var total, applicable float64

	classOK := f.VulnClass == e.Criteria.VulnClass
	if !classOK {
		for _, alt := range e.Criteria.AltVulnClasses {
			if f.VulnClass == alt {
				classOK = true
				break
			}
		}
	}
	applicable += weightClass
	if classOK {
		total += weightClass
	}

	if e.Criteria.Instruction != "" {
		applicable += weightInstruction
		if f.Instruction == e.Criteria.Instruction || containsString(f.InstructionAliases, e.Criteria.Instruction) {
			total += weightInstruction
		}
	}

	if len(e.Criteria.AccountNames) > 0 {
		applicable += weightAccounts
		total += weightAccounts * accountOverlapFraction(f.InvolvedAccounts, e.Criteria.AccountNames)
	}

	if e.Criteria.File != "" {
		applicable += weightFile
		if strings.HasSuffix(f.Span.File, e.Criteria.File) || strings.HasSuffix(e.Criteria.File, f.Span.File) {
			total += weightFile
		}
	}

	if e.Criteria.MinSeverity != "" {
		applicable += weightSeverity
		if f.Severity.AtLeast(e.Criteria.MinSeverity) {
			total += weightSeverity
		}
	}

	if applicable == 0 {
		return 0
	}
	return total / applicable
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// accountOverlapFraction implements §4.7's "accounts" criterion: the
// fraction of expected account names that partially match (case-
// insensitive substring, either direction — not a strict equality) at
// least one of the finding's involved account names. This rewards a
// finding naming "vault_authority" when the fixture expects "authority",
// rather than requiring the exact identifier the generator happened to use.
func accountOverlapFraction(found []generator.InvolvedAccount, names []string) float64 {
	if len(names) == 0 {
		return 0
	}
	matched := 0
	for _, n := range names {
		want := strings.ToLower(n)
		for _, f := range found {
			got := strings.ToLower(f.Name)
			if strings.Contains(got, want) || strings.Contains(want, got) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(names))
}

// RepoResult is the scored outcome of running one golden repo.
type RepoResult struct {
	RepoID         string
	TruePositives  []ExpectedFinding
	FalsePositives []gradefilter.ActionableFinding
	FalseNegatives []ExpectedFinding
	TrapHits       []gradefilter.ActionableFinding
	Precision      float64
	Recall         float64
	F1             float64
	ByClass        map[string]*ClassMetrics
}

// ClassMetrics is the per-vuln-class precision/recall/F1 breakdown.
type ClassMetrics struct {
	VulnClass string
	TP, FP, FN int
	Precision, Recall, F1 float64
}

// ScoreRepo matches findings against a GoldenRepo's expected findings using
// the weighted formula above, with each expected finding claimed by at most
// one finding (best score first) and each finding claimed by at most one
// expected finding.
func ScoreRepo(repo GoldenRepo, findings []gradefilter.ActionableFinding) RepoResult {
	result := RepoResult{RepoID: repo.ID, ByClass: map[string]*ClassMetrics{}}

	type pair = struct {
		fi, ei int
		s      float64
	}
	var pairs []pair
	for fi, f := range findings {
		for ei, e := range repo.ExpectedFindings {
			if e.IsTrap {
				continue
			}
			s := score(f, e)
			if s > matchThreshold {
				pairs = append(pairs, pair{fi, ei, s})
			}
		}
	}
	sortPairsDesc(pairs)

	claimedFinding := map[int]bool{}
	claimedExpected := map[int]bool{}
	for _, p := range pairs {
		if claimedFinding[p.fi] || claimedExpected[p.ei] {
			continue
		}
		claimedFinding[p.fi] = true
		claimedExpected[p.ei] = true
		e := repo.ExpectedFindings[p.ei]
		result.TruePositives = append(result.TruePositives, e)
		classMetric(result.ByClass, e.Criteria.VulnClass).TP++
	}

	for ei, e := range repo.ExpectedFindings {
		if e.IsTrap || claimedExpected[ei] {
			continue
		}
		result.FalseNegatives = append(result.FalseNegatives, e)
		classMetric(result.ByClass, e.Criteria.VulnClass).FN++
	}

	for fi, f := range findings {
		if claimedFinding[fi] {
			continue
		}
		isTrapHit := false
		for _, e := range repo.ExpectedFindings {
			if !e.IsTrap {
				continue
			}
			if score(f, e) > matchThreshold {
				isTrapHit = true
				break
			}
		}
		if isTrapHit {
			result.TrapHits = append(result.TrapHits, f)
		}
		result.FalsePositives = append(result.FalsePositives, f)
		classMetric(result.ByClass, f.VulnClass).FP++
	}

	result.Precision, result.Recall, result.F1 = prf(len(result.TruePositives), len(result.FalsePositives), len(result.FalseNegatives))
	for _, cm := range result.ByClass {
		cm.Precision, cm.Recall, cm.F1 = prf(cm.TP, cm.FP, cm.FN)
	}
	return result
}

func classMetric(m map[string]*ClassMetrics, class string) *ClassMetrics {
	cm, ok := m[class]
	if !ok {
		cm = &ClassMetrics{VulnClass: class}
		m[class] = cm
	}
	return cm
}

func prf(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return
}

func sortPairsDesc(pairs []struct {
	fi, ei int
	s      float64
}) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].s > pairs[j-1].s; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
}

// SuiteResult micro-averages every repo's confusion-matrix counts into one
// suite-wide precision/recall/F1, per §4.7's "micro-averaged suite
// aggregation".
type SuiteResult struct {
	Repos          []RepoResult
	TotalTP        int
	TotalFP        int
	TotalFN        int
	Precision      float64
	Recall         float64
	F1             float64
}

func ScoreSuite(repos []GoldenRepo, findingsByRepo map[string][]gradefilter.ActionableFinding) SuiteResult {
	suite := SuiteResult{}
	for _, repo := range repos {
		r := ScoreRepo(repo, findingsByRepo[repo.ID])
		suite.Repos = append(suite.Repos, r)
		suite.TotalTP += len(r.TruePositives)
		suite.TotalFP += len(r.FalsePositives)
		suite.TotalFN += len(r.FalseNegatives)
	}
	suite.Precision, suite.Recall, suite.F1 = prf(suite.TotalTP, suite.TotalFP, suite.TotalFN)
	return suite
}
