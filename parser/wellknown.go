package parser

import (
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// wellKnownProgramConstants maps the conventional Anchor/native constant
// paths a source file uses to reference a well-known program to the
// program they denote. A `.key() == <constant>` check against one of these
// counts as a validated CPI target per spec.md §4.2 option (b), even when
// the source never types the account Program<'info, T>.
var wellKnownProgramConstants = map[string]solana.PublicKey{
	"system_program::ID":              solana.SystemProgramID,
	"anchor_lang::system_program::ID": solana.SystemProgramID,
	"token::ID":                       solana.TokenProgramID,
	"anchor_spl::token::ID":           solana.TokenProgramID,
	"spl_token::ID":                   solana.TokenProgramID,
	"associated_token::ID":            solana.SPLAssociatedTokenAccountProgramID,
	"anchor_spl::associated_token::ID": solana.SPLAssociatedTokenAccountProgramID,
}

var base58LiteralRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// isValidatedProgramConstant reports whether tok names a well-known
// program: either one of the conventional Anchor/native constant paths
// above, or a literal base58 address that decodes to the same program id.
func isValidatedProgramConstant(tok string) bool {
	tok = strings.TrimSpace(tok)
	if _, ok := wellKnownProgramConstants[tok]; ok {
		return true
	}
	if !base58LiteralRe.MatchString(tok) {
		return false
	}
	pk, err := solana.PublicKeyFromBase58(tok)
	if err != nil {
		return false
	}
	for _, known := range wellKnownProgramConstants {
		if pk.Equals(known) {
			return true
		}
	}
	return false
}
