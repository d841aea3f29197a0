package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// IdempotencyKey is a deterministic fingerprint of the claim content
// {patient, date of service, procedure lines}. It is stable across line
// reordering and whitespace/case differences in line names, and changes
// whenever a billed amount or line set changes. Both the submitting side
// and the receiving side derive the same key from the same claim.
func IdempotencyKey(c *Claim) string {
	lines := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		name := strings.Join(strings.Fields(strings.ToLower(line.Name)), " ")
		lines = append(lines, fmt.Sprintf("%s:%.2f", name, line.Billed))
	}
	sort.Strings(lines)

	parts := append([]string{
		strings.TrimSpace(c.PatientSSN),
		c.DateOfService.String(),
	}, lines...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
