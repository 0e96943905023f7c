package parser

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func TestIsValidatedProgramConstantRecognizesConventionalPaths(t *testing.T) {
	assert.True(t, isValidatedProgramConstant("token::ID"))
	assert.True(t, isValidatedProgramConstant("anchor_spl::token::ID"))
	assert.True(t, isValidatedProgramConstant("system_program::ID"))
	assert.False(t, isValidatedProgramConstant("some_other_program::ID"))
}

func TestIsValidatedProgramConstantRecognizesLiteralAddress(t *testing.T) {
	assert.True(t, isValidatedProgramConstant(solana.TokenProgramID.String()))
	assert.True(t, isValidatedProgramConstant(solana.SystemProgramID.String()))
}

func TestIsValidatedProgramConstantRejectsArbitraryText(t *testing.T) {
	assert.False(t, isValidatedProgramConstant("attacker_program"))
	assert.False(t, isValidatedProgramConstant(""))
}
