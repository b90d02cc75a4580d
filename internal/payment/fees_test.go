package payment

import "testing"

func TestLookupDeposit_FixedAmounts(t *testing.T) {
	cases := []struct {
		kind       string
		major      float64
		refundable bool
	}{
		{"registration", 75, false},
		{"security", 250, true},
	}
	for _, tc := range cases {
		d, ok := LookupDeposit(tc.kind)
		if !ok {
			t.Fatalf("%s: missing from fee table", tc.kind)
		}
		if MajorUnits(d.AmountMinor) != tc.major || d.Refundable != tc.refundable {
			t.Fatalf("%s: got %+v", tc.kind, d)
		}
	}
	if _, ok := LookupDeposit("holiday"); ok {
		t.Fatalf("unknown kind must not resolve")
	}
}

func TestDepositKinds_Sorted(t *testing.T) {
	got := DepositKinds()
	if len(got) != 2 || got[0] != "registration" || got[1] != "security" {
		t.Fatalf("unexpected kinds: %v", got)
	}
}

func TestClubTotalMinor(t *testing.T) {
	if ClubTotalMinor(3) != 2400 {
		t.Fatalf("3 days should cost 2400 minor, got %d", ClubTotalMinor(3))
	}
	if ClubTotalMinor(-1) != 0 {
		t.Fatalf("negative days should cost nothing")
	}
}

func TestFormatMajor(t *testing.T) {
	if got := FormatMajor(25000); got != "£250.00" {
		t.Fatalf("FormatMajor(25000) = %q", got)
	}
	if got := FormatMajor(123456); got != "£1,234.56" {
		t.Fatalf("FormatMajor(123456) = %q", got)
	}
}
