// Package factgraph defines the canonical data model the parser lifts Rust
// source into: Programs, Instructions, Accounts, Constraints, Sinks, Guards,
// PDAs and CPIs, all addressed by stable string ids. The graph is the single
// product every downstream stage (generator, detectors, grade filter,
// scorer, report builder) consumes; it owns every node and is immutable once
// built.
package factgraph

import "sort"

// StableId is a deterministic string derived from file path and structural
// position, e.g. "programs/amm/src/lib.rs::swap::ctx.vault_a". It is the
// only cross-reference form used inside the graph.
type StableId string

// Severity ranks a finding's impact.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRank orders severities from most to least severe; lower is worse.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// SeverityWeight is used by the generator's sort key (severityWeight x confidence).
var SeverityWeight = map[Severity]float64{
	SeverityCritical: 100,
	SeverityHigh:     75,
	SeverityMedium:   50,
	SeverityLow:      25,
	SeverityInfo:     10,
}

// AtLeast reports whether s is at least as severe as min (s <= min in rank order).
func (s Severity) AtLeast(min Severity) bool {
	sr, ok1 := severityRank[s]
	mr, ok2 := severityRank[min]
	if !ok1 || !ok2 {
		return false
	}
	return sr <= mr
}

// Framework classifies the program's dialect.
type Framework string

const (
	FrameworkAnchor  Framework = "anchor"
	FrameworkNative  Framework = "native"
	FrameworkUnknown Framework = "unknown"
)

// AstSpan locates a node in source.
type AstSpan struct {
	File      string
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// SourceFile is one file ingested by Source Ingest (C1).
type SourceFile struct {
	Path        string
	Content     string
	Lines       []string
	ContentHash string
}

// Program is the top-level node: one Cargo/Anchor crate under the repo.
type Program struct {
	ID        StableId
	Name      string
	Address   string // optional on-chain address, empty if unknown
	Framework Framework
	Files     []ProgramFile
}

// ProgramFile records per-file bookkeeping for invariant 6 (determinism).
type ProgramFile struct {
	Path        string
	LineCount   int
	ContentHash string
}

// AccountWrapper is the Anchor account type wrapping a field.
type AccountWrapper string

const (
	WrapperSigner           AccountWrapper = "Signer"
	WrapperAccount          AccountWrapper = "Account"
	WrapperProgram          AccountWrapper = "Program"
	WrapperUncheckedAccount AccountWrapper = "UncheckedAccount"
	WrapperAccountInfo      AccountWrapper = "AccountInfo"
	WrapperInterfaceAccount AccountWrapper = "InterfaceAccount"
	WrapperUnknown          AccountWrapper = ""
)

// ConstraintKind enumerates every #[account(...)] constraint kind this
// system understands. The set is closed (spec.md §9 "variants are
// enumerated, not open") so dedup and grade logic stay total.
type ConstraintKind string

const (
	ConstraintSigner           ConstraintKind = "signer"
	ConstraintOwner            ConstraintKind = "owner"
	ConstraintHasOne           ConstraintKind = "has_one"
	ConstraintExpr             ConstraintKind = "constraint"
	ConstraintAddress          ConstraintKind = "address"
	ConstraintSeeds            ConstraintKind = "seeds"
	ConstraintBump             ConstraintKind = "bump"
	ConstraintInit             ConstraintKind = "init"
	ConstraintInitIfNeeded     ConstraintKind = "init_if_needed"
	ConstraintClose            ConstraintKind = "close"
	ConstraintRealloc          ConstraintKind = "realloc"
	ConstraintTokenMint        ConstraintKind = "token_mint"
	ConstraintTokenAuthority   ConstraintKind = "token_authority"
	ConstraintTokenProgram     ConstraintKind = "token_program"
	ConstraintAssociatedToken  ConstraintKind = "associated_token"
	ConstraintMut              ConstraintKind = "mut"
)

// Constraint is one clause inside #[account(...)].
type Constraint struct {
	Kind       ConstraintKind
	Expr       string // optional expression text, preserved verbatim
	Seeds      []string
	BumpExpr   string
	Span       AstSpan
}

// Account is one field of a #[derive(Accounts)] struct.
type Account struct {
	ID              StableId
	Name            string
	InstructionID   StableId
	Wrapper         AccountWrapper
	InnerType       string // e.g. "TokenAccount", "Mint"
	RawType         string
	IsSigner        bool
	IsMut           bool
	Constraints     []Constraint
	LinkedPDAID     StableId // empty if none
	Span            AstSpan
}

// SinkKind enumerates every sink class the parser recognizes.
type SinkKind string

const (
	SinkTokenTransfer      SinkKind = "token_transfer"
	SinkTokenMintTo        SinkKind = "token_mint_to"
	SinkTokenBurn          SinkKind = "token_burn"
	SinkTokenApprove       SinkKind = "token_approve"
	SinkTokenRevoke        SinkKind = "token_revoke"
	SinkTokenSetAuthority  SinkKind = "token_set_authority"
	SinkTokenCloseAccount  SinkKind = "token_close_account"
	SinkSystemTransfer     SinkKind = "system_transfer"
	SinkLamportMutation    SinkKind = "lamport_mutation"
	SinkInvoke             SinkKind = "invoke"
	SinkInvokeSigned       SinkKind = "invoke_signed"
	SinkAccountClose       SinkKind = "account_close"
	SinkAccountRealloc     SinkKind = "account_realloc"
	SinkSysvarInstructions SinkKind = "sysvar_instructions_read"
	SinkStateWrite         SinkKind = "state_write"
	SinkOracleRead         SinkKind = "oracle_read"
)

// DangerousSinks is the subset the instruction-level missing_signer
// structural scanner treats as requiring a guarded authority.
var DangerousSinks = map[SinkKind]bool{
	SinkTokenTransfer:     true,
	SinkTokenMintTo:       true,
	SinkTokenBurn:         true,
	SinkTokenSetAuthority: true,
	SinkSystemTransfer:    true,
	SinkLamportMutation:   true,
	SinkInvoke:            true,
	SinkInvokeSigned:      true,
}

// Sink is one value-critical code location inside an instruction body.
type Sink struct {
	ID               StableId
	Kind             SinkKind
	InstructionID    StableId
	InvolvedAccounts []string // account field names referenced
	Excerpt          string
	Span             AstSpan
}

// GuardKind mirrors ConstraintKind plus body-level checks.
type GuardKind string

const (
	GuardRequire GuardKind = "require"
	GuardAssert  GuardKind = "assert"
	GuardIf      GuardKind = "if"
)

// Guard is a structural or body-level check protecting an account or sink.
type Guard struct {
	ID            StableId
	Kind          string // ConstraintKind value, or one of GuardKind
	ProtectsID    StableId // account or sink StableId this guard protects
	Expr          string
	Span          AstSpan
}

// BumpSource classifies where a PDA's bump byte came from.
type BumpSource string

const (
	BumpCanonical     BumpSource = "canonical"
	BumpStored        BumpSource = "stored"
	BumpUserProvided  BumpSource = "user_provided"
	BumpUnknown       BumpSource = "unknown"
)

// PDASource distinguishes a constraint-derived PDA from an inline derivation.
type PDASource string

const (
	PDASourceConstraint PDASource = "constraint"
	PDASourceInline     PDASource = "inline"
)

// SeedExpr is one PDA seed with an attacker-control classification.
type SeedExpr struct {
	Expr               string
	AttackerControlled bool
}

// PDA is a Program Derived Address derivation site.
type PDA struct {
	ID            StableId
	InstructionID StableId
	Seeds         []SeedExpr
	BumpSource    BumpSource
	Source        PDASource
	Span          AstSpan
}

// CPI is a cross-program invocation call site.
type CPI struct {
	ID               StableId
	InstructionID    StableId
	TargetProgram    string // StableId-like reference, or "dynamic"
	Signed           bool   // true for invoke_signed
	SignerSeeds      []string
	AccountMetas     []string
	ProgramValidated bool
	Span             AstSpan
}

// ArithmeticOp is a +,-,*,/ over a financial-root identifier.
type ArithmeticOp struct {
	InstructionID StableId
	Identifier    string
	Operator      string
	Checked       bool
	Span          AstSpan
}

// Instruction is one callable program entry point (Anchor `pub fn`, or a
// native dispatch-target function).
type Instruction struct {
	ID                StableId
	Name              string
	ProgramID         StableId
	AccountsTypeName  string // empty when unresolved (§9 cross-file refs)
	AccountIDs        []StableId
	SinkIDs           []StableId
	GuardIDs          []StableId
	Visibility        string // "public" | "gated"
	RequiredSigners   []string
	Parameters        []string
	CalledFunctions   []string
	BodyExcerpt       string
	Span              AstSpan
	// DispatchAliases holds match-arm variant names that route to this
	// instruction in a native program, for scorer instruction matching.
	DispatchAliases   []string
}

// SinkNeighborhood is the precomputed bundle detectors and the generator
// consult instead of the raw AST.
type SinkNeighborhood struct {
	SinkID           StableId
	InstructionID    StableId
	Accounts         []*Account
	GuardsPresent    []*Guard
	MissingGuards    []string
	TaintPaths       []string
}

// sortedNames returns a sorted copy, used by fingerprints.
func sortedNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
