package adjudicator

import (
	"fmt"
	"strings"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/resolver"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

func fmtUSD(x float64) string {
	return usd.Sprintf("$%.2f", x)
}

func itemLines(line models.ClaimLine, match *resolver.Match,
	allowed, payable, patientOnAllowed, balanceBill float64,
	used, limit int, limited, limitReached bool) []string {

	lines := []string{
		fmt.Sprintf("• %s → matched '%s' [%s]", line.Name, match.CanonicalName, match.Category),
		fmt.Sprintf("  Billed %s | Reference %s | Allowed %s | Payable %s",
			fmtUSD(line.Billed), fmtUSD(match.ReferencePrice), fmtUSD(allowed), fmtUSD(payable)),
	}

	if !limited {
		lines = append(lines, "  Limit: no annual limit")
	} else {
		status := "OK"
		if limitReached {
			status = "LIMIT REACHED"
		}
		lines = append(lines, fmt.Sprintf("  Limit: used %d/%d – status: %s", used, limit, status))
	}

	if limitReached {
		lines = append(lines, fmt.Sprintf("  → Because the limit is reached: insurer pays $0; patient owes %s (allowed amount).", fmtUSD(allowed)))
	} else {
		lines = append(lines, fmt.Sprintf("  Patient responsibility (allowed portion): %s", fmtUSD(patientOnAllowed)))
	}

	lines = append(lines, fmt.Sprintf("  Potential balance bill (if out-of-network): %s", fmtUSD(balanceBill)))

	return lines
}

// prettyMessage composes the narrative addressed to the hospital. Only the
// last four SSN digits ever appear here.
func prettyMessage(claim *models.Claim, itemLines []string,
	totalPayable, totalPatientOnAllowed, totalBalanceBill float64) string {

	header := []string{
		fmt.Sprintf("Dear %s,", claim.HospitalName),
		fmt.Sprintf("We reviewed the claim for %s (SSN ending %s) dated %s.",
			claim.FullName, claim.SSNLast4(), claim.DateOfService.String()),
		"Adjudication summary:",
	}

	footer := []string{
		fmt.Sprintf("TOTAL PAYABLE (insurer): %s", fmtUSD(round2(totalPayable))),
		fmt.Sprintf("PATIENT RESPONSIBILITY (allowed portion): %s", fmtUSD(round2(totalPatientOnAllowed))),
		fmt.Sprintf("POTENTIAL BALANCE BILL (if out-of-network): %s", fmtUSD(round2(totalBalanceBill))),
		"Notes: Coverage tiers applied: ≤$500 @100%, next $500 @80%, next $1,000 @50%, remainder @30%.",
		"If out-of-network, provider may bill the balance (difference between billed and allowed).",
		"If the annual limit is reached for a category, insurer pays $0 for that item and the patient owes the allowed amount.",
	}

	all := append(append(header, itemLines...), footer...)
	return strings.Join(all, "\n")
}
