package factgraph

import "fmt"

// ProgramID derives a Program's StableId from its crate root path.
func ProgramID(rootPath string) StableId {
	return StableId(rootPath)
}

// InstructionID derives an Instruction's StableId from its owning file and
// name: "<file>::<name>". Deterministic across re-parses of identical
// source (invariant 6); depends only on file path and structural position,
// never on byte offsets, so whitespace/comment edits outside the body never
// change it.
func InstructionID(file, name string) StableId {
	return StableId(fmt.Sprintf("%s::%s", file, name))
}

// AccountID derives a field's StableId from its owning instruction and
// field name: "<instructionId>.<field>".
func AccountID(instructionID StableId, field string) StableId {
	return StableId(fmt.Sprintf("%s.%s", instructionID, field))
}

// SinkID derives a Sink's StableId from its owning instruction, kind, and
// ordinal occurrence within that instruction (not byte offset) so it stays
// stable under unrelated whitespace edits.
func SinkID(instructionID StableId, kind SinkKind, ordinal int) StableId {
	return StableId(fmt.Sprintf("%s::sink[%s#%d]", instructionID, kind, ordinal))
}

// GuardID derives a Guard's StableId from the node it protects and an
// ordinal, since an account or sink may carry more than one guard.
func GuardID(protectsID StableId, ordinal int) StableId {
	return StableId(fmt.Sprintf("%s::guard#%d", protectsID, ordinal))
}

// PDAID derives a PDA's StableId from its owning instruction and ordinal.
func PDAID(instructionID StableId, ordinal int) StableId {
	return StableId(fmt.Sprintf("%s::pda#%d", instructionID, ordinal))
}

// CPIID derives a CPI's StableId from its owning instruction and ordinal.
func CPIID(instructionID StableId, ordinal int) StableId {
	return StableId(fmt.Sprintf("%s::cpi#%d", instructionID, ordinal))
}
