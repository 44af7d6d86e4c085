// Package codegen produces the short human-readable codes printed on visitor
// passes.
package codegen

import (
	"context"
	"crypto/rand"

	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/sentinel"
)

// alphabet intentionally excludes lowercase: gate guards read these codes
// aloud and type them on terminals.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the fixed length of every pass code.
const CodeLength = 7

// defaultMaxAttempts bounds the generate-then-check loop. With 36^7 possible
// codes the loop terminates on the first try in any realistic population; the
// bound exists so a misbehaving store cannot spin the generator forever.
const defaultMaxAttempts = 10

// CodeChecker reports whether a code is already taken. The check is advisory:
// the store's unique constraint at commit time is the correctness guarantee,
// and a commit-time collision must be retried by the caller (see Generator
// docs).
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator issues candidate codes verified as unused at generation time.
//
// Generation and insertion are not atomic: two concurrent issuances can both
// see a code as unused. The generator therefore only narrows the race window;
// the pass store's unique index on code is what makes duplicates impossible,
// and issuance code treats a uniqueness violation at commit as "regenerate",
// never as a fatal error.
type Generator struct {
	checker     CodeChecker
	maxAttempts int
}

// New constructs a code generator backed by the given uniqueness check.
func New(checker CodeChecker) *Generator {
	return &Generator{checker: checker, maxAttempts: defaultMaxAttempts}
}

// Generate returns a fresh code that was unused when checked. It fails with
// an unavailable error when the underlying store cannot be reached; it never
// returns a code without a successful uniqueness verification.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate pass code")
		}
		exists, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "pass code uniqueness check failed")
		}
		if !exists {
			return code, nil
		}
	}
	return "", dErrors.Wrap(sentinel.ErrConflict, dErrors.CodeUnavailable,
		"could not find an unused pass code")
}

// randomCode draws CodeLength characters from the alphabet using crypto/rand.
// Rejection sampling keeps the distribution uniform.
func randomCode() (string, error) {
	const maxByte = 255 - (256 % len(alphabet))

	buf := make([]byte, CodeLength)
	raw := make([]byte, CodeLength)
	filled := 0
	for filled < CodeLength {
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		for _, b := range raw {
			if int(b) > maxByte {
				continue
			}
			buf[filled] = alphabet[int(b)%len(alphabet)]
			filled++
			if filled == CodeLength {
				break
			}
		}
	}
	return string(buf), nil
}
