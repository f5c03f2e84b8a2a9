package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codenotate/pkg/types"
)

// CodeFingerprint summarises the code of a document independently of comments
type CodeFingerprint struct {
	Hash     string
	Keywords map[string]int
}

// Fingerprint hashes the right-trimmed code lines of text and counts the
// policy's structural keywords in them.
func (v *Validator) Fingerprint(text string) CodeFingerprint {
	code := v.policy.CodeLines(strings.Split(text, "\n"))
	h := sha256.New()
	for _, line := range code {
		h.Write([]byte(strings.TrimRight(line, " \t\r")))
		h.Write([]byte{'\n'})
	}

	counts := make(map[string]int, len(v.policy.StructuralKeywords))
	joined := strings.Join(code, "\n")
	for _, kw := range v.policy.StructuralKeywords {
		counts[kw] = len(v.keywordPattern(kw).FindAllStringIndex(joined, -1))
	}
	return CodeFingerprint{Hash: hex.EncodeToString(h.Sum(nil)), Keywords: counts}
}

// Coarse compares a candidate against the original by code hash and
// per-keyword counts. Both must match exactly.
func (v *Validator) Coarse(original, candidate string) LayerResult {
	res := LayerResult{Layer: types.LayerCoarse, Passed: true, Score: 1}
	want := v.Fingerprint(original)
	got := v.Fingerprint(candidate)

	if want.Hash != got.Hash {
		res.Issues = append(res.Issues, types.NewIssue(types.LayerCoarse, types.IssueContentViolation, types.SeverityError,
			"code hash changed from %s to %s", want.Hash[:12], got.Hash[:12]))
	}

	var drift []string
	for kw, n := range want.Keywords {
		if got.Keywords[kw] != n {
			drift = append(drift, fmt.Sprintf("%s %d->%d", kw, n, got.Keywords[kw]))
		}
	}
	if len(drift) > 0 {
		sort.Strings(drift)
		res.Issues = append(res.Issues, types.NewIssue(types.LayerCoarse, types.IssueContentViolation, types.SeverityError,
			"structural keyword counts changed: %s", strings.Join(drift, ", ")))
	}

	if len(res.Issues) > 0 {
		res.Passed = false
		res.Score = 0
		v.logger.Error("coarse content check failed", zap.Int("issues", len(res.Issues)))
	}
	return res
}

// keywordPattern matches a possibly multi-word keyword on word boundaries
func (v *Validator) keywordPattern(kw string) *regexp.Regexp {
	words := strings.Fields(kw)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	expr := `\b` + strings.Join(words, `\s+`) + `\b`
	if v.policy.CaseInsensitive {
		expr = `(?i)` + expr
	}
	return regexp.MustCompile(expr)
}
