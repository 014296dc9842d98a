package enums

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

var registrationStatuses = []RegistrationStatus{RegistrationStatusRegistered, RegistrationStatusCancelled}

func (s RegistrationStatus) IsValid() bool { return oneOf(s, registrationStatuses) }

func ParseRegistrationStatus(value string) (RegistrationStatus, error) {
	return parse("registration status", value, registrationStatuses)
}
