package service

import (
	"fmt"
	"math/rand"
	"time"
)

// maxCodeAttempts bounds the uniqueness retry loop when drawing voucher
// codes. Running out of attempts surfaces as entity.ErrCodeExhausted.
const maxCodeAttempts = 25

// CodeGenerator produces human-readable voucher codes. Uniqueness is
// advisory: the caller verifies each draw against the store and retries.
type CodeGenerator interface {
	Generate(base time.Time) string
}

type randomCodeGenerator struct{}

// NewCodeGenerator creates the production code generator.
func NewCodeGenerator() CodeGenerator {
	return randomCodeGenerator{}
}

// Generate draws a code in the form VC-YYYYMM-NNN where NNN is a random
// three-digit suffix.
func (randomCodeGenerator) Generate(base time.Time) string {
	return fmt.Sprintf("VC-%s-%03d", base.Format("200601"), rand.Intn(1000))
}
