package engine

import (
	"context"
	"math"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// IssuedToken is a freshly created token. Code is never stored.
type IssuedToken struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// IssueTokens creates count finalist tokens of the given number of digits.
// Codes are unique within the batch; only their hashes are stored, so they
// cannot be checked against earlier batches. A warning is logged once the
// token total makes a repeat across batches likely.
func (e *Engine) IssueTokens(ctx context.Context, count, digits int) ([]IssuedToken, error) {
	seen := make(map[string]bool, count)
	out := make([]IssuedToken, 0, count)
	now := e.clock()
	for len(out) < count {
		code, err := security.NumericCode(digits)
		if err != nil {
			return out, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true

		hash, err := e.hasher.Hash(code)
		if err != nil {
			return out, err
		}
		id, err := e.store.Create(ctx, store.Tokens, "", ctf.Token{Hash: hash, CreatedAt: now})
		if err != nil {
			return out, ctf.Transient(err)
		}
		out = append(out, IssuedToken{ID: id, Code: code})
	}
	e.logger.InfoContext(ctx, "tokens issued", "count", len(out))

	var all []ctf.Token
	if err := e.store.List(ctx, store.Tokens, nil, &all); err != nil {
		e.logger.WarnContext(ctx, "counting tokens", "error", err)
		return out, nil
	}
	if p := repeatChance(len(all), digits); p > maxRepeatChance {
		e.logger.WarnContext(ctx, "token codes may repeat across batches, raise TOKEN_DIGITS",
			"tokens", len(all),
			"digits", digits,
			"repeat_chance", p,
		)
	}
	return out, nil
}

const maxRepeatChance = 0.01

// repeatChance approximates the chance that n random codes of the given
// digits contain a repeat.
func repeatChance(n, digits int) float64 {
	return 1 - math.Exp(-float64(n)*float64(n-1)/(2*math.Pow(10, float64(digits))))
}
