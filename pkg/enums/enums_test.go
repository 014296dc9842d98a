package enums

import "testing"

func TestParseRoundTrips(t *testing.T) {
	if got, err := ParseClubStatus("approved"); err != nil || got != ClubStatusApproved {
		t.Fatalf("ParseClubStatus: got %q err %v", got, err)
	}
	if _, err := ParseMembershipStatus("removed"); err == nil {
		t.Fatalf("expected unknown membership status to fail")
	}
	if got, err := ParseRegistrationStatus("cancelled"); err != nil || got != RegistrationStatusCancelled {
		t.Fatalf("ParseRegistrationStatus: got %q err %v", got, err)
	}
	if got, err := ParsePaymentKind("event"); err != nil || got != PaymentKindEvent {
		t.Fatalf("ParsePaymentKind: got %q err %v", got, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
	if !ClubCategorySports.IsValid() || ClubCategory("sports").IsValid() {
		t.Fatalf("club categories are case sensitive")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	cases := map[PaymentStatus]bool{
		PaymentStatusPending: false,
		PaymentStatusSuccess: true,
		PaymentStatusFailed:  true,
	}
	for status, want := range cases {
		if status.IsTerminal() != want {
			t.Fatalf("%s terminal: want %v", status, want)
		}
	}
}

func TestRoleCanModerate(t *testing.T) {
	if !RoleAdmin.CanModerate() || RoleManager.CanModerate() || RoleMember.CanModerate() {
		t.Fatalf("only admins moderate")
	}
}

func TestOutboxEnums(t *testing.T) {
	if !EventPaymentUnattached.IsValid() {
		t.Fatalf("payment_unattached should be valid")
	}
	if _, err := ParseOutboxAggregateType("store"); err == nil {
		t.Fatalf("expected unknown aggregate to fail")
	}
}
