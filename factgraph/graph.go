package factgraph

import (
	"fmt"
	"strings"

	"github.com/solaudit/sentry/auditerr"
)

// Graph is the immutable, process-wide product of the Parser (C2). It
// exclusively owns every node; edges are expressed as StableId references.
// Once the Parser's ParsePrograms returns, no field is mutated again.
type Graph struct {
	programs      map[StableId]*Program
	instructions  map[StableId]*Instruction
	accounts      map[StableId]*Account
	sinks         map[StableId]*Sink
	guards        map[StableId]*Guard
	pdas          map[StableId]*PDA
	cpis          map[StableId]*CPI
	arithmeticOps []*ArithmeticOp

	neighborhoods map[StableId]*SinkNeighborhood

	// fieldIndex indexes account fields by (structName, fieldName) for
	// findField, populated once per instruction's resolved AccountsTypeName.
	fieldIndex map[string]*Account

	// structFields indexes every field declared under a #[derive(Accounts)]
	// struct name, in declaration order, before the owning instruction is
	// known. Used by the cross-file resolution pass (§9).
	structFields map[string][]*Account

	instructionsByProgram map[StableId][]StableId

	// pendingDispatchAliases maps a native handler function name to the
	// lowercase match-arm variant names that dispatch to it, collected
	// during lift before the handler's Instruction exists.
	pendingDispatchAliases map[string][]string
}

// NewGraph returns an empty, mutable builder. Use the Add* setters during
// the Parser's single construction pass, then treat the result as
// read-only.
func NewGraph() *Graph {
	return &Graph{
		programs:              map[StableId]*Program{},
		instructions:          map[StableId]*Instruction{},
		accounts:              map[StableId]*Account{},
		sinks:                 map[StableId]*Sink{},
		guards:                map[StableId]*Guard{},
		pdas:                  map[StableId]*PDA{},
		cpis:                  map[StableId]*CPI{},
		neighborhoods:         map[StableId]*SinkNeighborhood{},
		fieldIndex:            map[string]*Account{},
		structFields:           map[string][]*Account{},
		instructionsByProgram:  map[StableId][]StableId{},
		pendingDispatchAliases: map[string][]string{},
	}
}

// RegisterDispatchAlias records that variant (a native dispatch match-arm
// name) routes to targetFunction.
func (g *Graph) RegisterDispatchAlias(targetFunction, variant string) {
	g.pendingDispatchAliases[targetFunction] = append(g.pendingDispatchAliases[targetFunction], variant)
}

// DispatchAliasesFor returns the recorded variant aliases for a function
// name.
func (g *Graph) DispatchAliasesFor(functionName string) []string {
	return g.pendingDispatchAliases[functionName]
}

func (g *Graph) AddProgram(p *Program)         { g.programs[p.ID] = p }
func (g *Graph) AddGuard(gd *Guard)            { g.guards[gd.ID] = gd }
func (g *Graph) AddPDA(p *PDA)                 { g.pdas[p.ID] = p }
func (g *Graph) AddCPI(c *CPI)                 { g.cpis[c.ID] = c }
func (g *Graph) AddArithmeticOp(a *ArithmeticOp) { g.arithmeticOps = append(g.arithmeticOps, a) }

func (g *Graph) AddInstruction(i *Instruction) {
	g.instructions[i.ID] = i
	g.instructionsByProgram[i.ProgramID] = append(g.instructionsByProgram[i.ProgramID], i.ID)
}

func (g *Graph) AddAccount(a *Account) {
	g.accounts[a.ID] = a
}

func (g *Graph) AddSink(s *Sink) {
	g.sinks[s.ID] = s
}

// IndexField registers an account as reachable by (structName, fieldName)
// for FindField, used once AccountsTypeName resolution completes.
func (g *Graph) IndexField(structName, fieldName string, a *Account) {
	g.fieldIndex[structName+"::"+fieldName] = a
}

// RegisterStructField records a field declared under an Accounts struct
// before its owning instruction is known (see IndexField/FieldsOfStruct).
func (g *Graph) RegisterStructField(structName string, a *Account) {
	g.structFields[structName] = append(g.structFields[structName], a)
}

// FieldsOfStruct returns every field registered under a #[derive(Accounts)]
// struct name, in declaration order.
func (g *Graph) FieldsOfStruct(structName string) []*Account {
	return g.structFields[structName]
}

// ---- Query API (spec.md §4.3) ----

func (g *Graph) Instruction(id StableId) (*Instruction, bool) {
	i, ok := g.instructions[id]
	return i, ok
}

func (g *Graph) AccountsOf(instructionID StableId) []*Account {
	inst, ok := g.instructions[instructionID]
	if !ok {
		return nil
	}
	out := make([]*Account, 0, len(inst.AccountIDs))
	for _, id := range inst.AccountIDs {
		if a, ok := g.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (g *Graph) SinkNeighborhood(sinkID StableId) (*SinkNeighborhood, bool) {
	n, ok := g.neighborhoods[sinkID]
	return n, ok
}

func (g *Graph) CpisOf(instructionID StableId) []*CPI {
	var out []*CPI
	for _, c := range g.cpis {
		if c.InstructionID == instructionID {
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) PdasOf(instructionID StableId) []*PDA {
	var out []*PDA
	for _, p := range g.pdas {
		if p.InstructionID == instructionID {
			out = append(out, p)
		}
	}
	return out
}

func (g *Graph) FindField(structName, name string) (*Account, bool) {
	a, ok := g.fieldIndex[structName+"::"+name]
	return a, ok
}

func (g *Graph) IsSigner(fieldID StableId) bool {
	a, ok := g.accounts[fieldID]
	if !ok {
		return false
	}
	if a.IsSigner || a.Wrapper == WrapperSigner {
		return true
	}
	for _, c := range a.Constraints {
		if c.Kind == ConstraintSigner {
			return true
		}
	}
	return false
}

// HasOwnerValidation reports whether an account field carries a constraint
// or address/owner check. Used by the missing_owner structural scanner.
func (g *Graph) HasOwnerValidation(fieldID StableId) bool {
	a, ok := g.accounts[fieldID]
	if !ok {
		return false
	}
	for _, c := range a.Constraints {
		switch c.Kind {
		case ConstraintExpr, ConstraintAddress, ConstraintOwner, ConstraintHasOne:
			return true
		}
	}
	return false
}

// HasAuthorityCheck implements the "Authority check present" heuristic from
// §4.4: a has_one on this field, a constraint expression referencing
// `<field>.key()`, or a body require! referencing `<field>.key()` or
// `<field>.is_signer`.
func (g *Graph) HasAuthorityCheck(structName, fieldName, body string) bool {
	if a, ok := g.FindField(structName, fieldName); ok {
		for _, c := range a.Constraints {
			if c.Kind == ConstraintHasOne && strings.EqualFold(c.Expr, fieldName) {
				return true
			}
			if c.Kind == ConstraintExpr && strings.Contains(c.Expr, fieldName+".key()") {
				return true
			}
		}
	}
	if strings.Contains(body, fieldName+".key()") || strings.Contains(body, fieldName+".is_signer") {
		return true
	}
	return false
}

// Programs, Instructions, Sinks, PDAs, CPIs, Accounts, ArithmeticOps expose
// read-only slices for callers that must iterate the whole graph (generator,
// report builder, scorer).

func (g *Graph) Programs() []*Program {
	out := make([]*Program, 0, len(g.programs))
	for _, p := range g.programs {
		out = append(out, p)
	}
	return out
}

func (g *Graph) Instructions() []*Instruction {
	out := make([]*Instruction, 0, len(g.instructions))
	for _, i := range g.instructions {
		out = append(out, i)
	}
	return out
}

func (g *Graph) InstructionsOf(programID StableId) []*Instruction {
	out := make([]*Instruction, 0)
	for _, id := range g.instructionsByProgram[programID] {
		if i, ok := g.instructions[id]; ok {
			out = append(out, i)
		}
	}
	return out
}

func (g *Graph) Sinks() []*Sink {
	out := make([]*Sink, 0, len(g.sinks))
	for _, s := range g.sinks {
		out = append(out, s)
	}
	return out
}

func (g *Graph) Sink(id StableId) (*Sink, bool) {
	s, ok := g.sinks[id]
	return s, ok
}

func (g *Graph) PDAs() []*PDA { out := make([]*PDA, 0, len(g.pdas)); for _, p := range g.pdas { out = append(out, p) }; return out }

func (g *Graph) CPIs() []*CPI { out := make([]*CPI, 0, len(g.cpis)); for _, c := range g.cpis { out = append(out, c) }; return out }

func (g *Graph) Accounts() []*Account {
	out := make([]*Account, 0, len(g.accounts))
	for _, a := range g.accounts {
		out = append(out, a)
	}
	return out
}

func (g *Graph) ArithmeticOps() []*ArithmeticOp { return g.arithmeticOps }

func (g *Graph) Guards() []*Guard {
	out := make([]*Guard, 0, len(g.guards))
	for _, gd := range g.guards {
		out = append(out, gd)
	}
	return out
}

func (g *Graph) GuardsFor(protectsID StableId) []*Guard {
	var out []*Guard
	for _, gd := range g.guards {
		if gd.ProtectsID == protectsID {
			out = append(out, gd)
		}
	}
	return out
}

// BuildSinkNeighborhoods computes the precomputed bundle for every sink once
// all nodes exist (spec.md §4.2 "Sink neighborhoods"). Must run after every
// Add* call completes and before any detector or generator reads the graph.
func (g *Graph) BuildSinkNeighborhoods(expectedGuards map[SinkKind][]string) {
	for _, s := range g.sinks {
		accounts := make([]*Account, 0, len(s.InvolvedAccounts))
		inst, _ := g.instructions[s.InstructionID]
		var structName string
		if inst != nil {
			structName = inst.AccountsTypeName
		}
		for _, name := range s.InvolvedAccounts {
			if a, ok := g.FindField(structName, name); ok {
				accounts = append(accounts, a)
			}
		}

		var guardsPresent []*Guard
		seen := map[StableId]bool{}
		for _, a := range accounts {
			for _, gd := range g.GuardsFor(a.ID) {
				if !seen[gd.ID] {
					seen[gd.ID] = true
					guardsPresent = append(guardsPresent, gd)
				}
			}
		}
		for _, gd := range g.GuardsFor(s.ID) {
			if !seen[gd.ID] {
				seen[gd.ID] = true
				guardsPresent = append(guardsPresent, gd)
			}
		}

		var missing []string
		present := map[string]bool{}
		for _, gd := range guardsPresent {
			present[gd.Kind] = true
		}
		for _, want := range expectedGuards[s.Kind] {
			if !present[want] {
				missing = append(missing, want)
			}
		}

		g.neighborhoods[s.ID] = &SinkNeighborhood{
			SinkID:        s.ID,
			InstructionID: s.InstructionID,
			Accounts:      accounts,
			GuardsPresent: guardsPresent,
			MissingGuards: missing,
		}
	}
}

// CheckInvariants validates invariants 1-2 from spec.md §3: every sink's
// instructionId resolves, and every StableId referenced by an edge resolves
// in the same graph. Returns the first violation found, or nil.
func (g *Graph) CheckInvariants() error {
	for _, s := range g.sinks {
		if _, ok := g.instructions[s.InstructionID]; !ok {
			return auditerr.NewGraphInvariantViolation("sink-instruction-resolves", string(s.ID),
				fmt.Sprintf("sink references missing instruction %q", s.InstructionID))
		}
	}
	for _, inst := range g.instructions {
		for _, aid := range inst.AccountIDs {
			if _, ok := g.accounts[aid]; !ok {
				return auditerr.NewGraphInvariantViolation("edge-resolves", string(inst.ID),
					fmt.Sprintf("instruction references missing account %q", aid))
			}
		}
		for _, sid := range inst.SinkIDs {
			if _, ok := g.sinks[sid]; !ok {
				return auditerr.NewGraphInvariantViolation("edge-resolves", string(inst.ID),
					fmt.Sprintf("instruction references missing sink %q", sid))
			}
		}
	}
	for _, c := range g.cpis {
		if _, ok := g.instructions[c.InstructionID]; !ok {
			return auditerr.NewGraphInvariantViolation("cpi-instruction-resolves", string(c.ID),
				fmt.Sprintf("cpi references missing instruction %q", c.InstructionID))
		}
	}
	for _, p := range g.pdas {
		if _, ok := g.instructions[p.InstructionID]; !ok {
			return auditerr.NewGraphInvariantViolation("pda-instruction-resolves", string(p.ID),
				fmt.Sprintf("pda references missing instruction %q", p.InstructionID))
		}
	}
	return nil
}

// ExpectedGuardMap is the §4.4 default guard expectation used by
// BuildSinkNeighborhoods: which guard kinds the report builder should list
// as "missing" when absent for a given sink kind.
func ExpectedGuardMap() map[SinkKind][]string {
	return map[SinkKind][]string{
		SinkTokenTransfer:     {string(ConstraintSigner), string(ConstraintHasOne)},
		SinkTokenMintTo:       {string(ConstraintSigner), string(ConstraintTokenAuthority)},
		SinkTokenBurn:         {string(ConstraintSigner), string(ConstraintTokenAuthority)},
		SinkTokenSetAuthority: {string(ConstraintSigner)},
		SinkSystemTransfer:    {string(ConstraintSigner)},
		SinkLamportMutation:   {string(ConstraintSigner)},
		SinkInvoke:            {string(ConstraintAddress)},
		SinkInvokeSigned:      {string(ConstraintAddress)},
		SinkOracleRead:        {string(ConstraintOwner)},
	}
}
