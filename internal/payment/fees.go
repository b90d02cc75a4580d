package payment

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Deposit is a named fee category with a fixed amount.
type Deposit struct {
	Kind        string
	Label       string
	AmountMinor int64
	Refundable  bool
}

// ClubDayMinor is the price of one club day in minor units, for every club.
const ClubDayMinor int64 = 800

var deposits = map[string]Deposit{
	"registration": {Kind: "registration", Label: "Registration fee", AmountMinor: 7500, Refundable: false},
	"security":     {Kind: "security", Label: "Security deposit", AmountMinor: 25000, Refundable: true},
}

// LookupDeposit returns the fee for kind. Amounts never come from client input.
func LookupDeposit(kind string) (Deposit, bool) {
	d, ok := deposits[kind]
	return d, ok
}

// DepositKinds lists the accepted deposit kinds in a stable order.
func DepositKinds() []string {
	out := make([]string, 0, len(deposits))
	for k := range deposits {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ClubTotalMinor prices a club booking of n days.
func ClubTotalMinor(days int) int64 {
	if days < 0 {
		days = 0
	}
	return ClubDayMinor * int64(days)
}

// MajorUnits converts minor units (pence) to major units (pounds).
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

var printer = message.NewPrinter(language.BritishEnglish)

// FormatMajor renders minor units as a pound amount, e.g. "£250.00".
func FormatMajor(minor int64) string {
	return printer.Sprintf("£%.2f", MajorUnits(minor))
}
