package enums

import "fmt"

// AuditKind labels entries in the payment audit trail.
type AuditKind string

const (
	AuditKindCreated              AuditKind = "created"
	AuditKindPaid                 AuditKind = "paid"
	AuditKindExpired              AuditKind = "expired"
	AuditKindCancelled            AuditKind = "cancelled"
	AuditKindFailed               AuditKind = "failed"
	AuditKindConfirmationsUpdated AuditKind = "confirmations_updated"
	AuditKindNotificationSent     AuditKind = "notification_sent"
	AuditKindNotificationFailed   AuditKind = "notification_failed"
)

var validAuditKinds = []AuditKind{
	AuditKindCreated,
	AuditKindPaid,
	AuditKindExpired,
	AuditKindCancelled,
	AuditKindFailed,
	AuditKindConfirmationsUpdated,
	AuditKindNotificationSent,
	AuditKindNotificationFailed,
}

// String implements fmt.Stringer.
func (a AuditKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditKind.
func (a AuditKind) IsValid() bool {
	for _, candidate := range validAuditKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditKind converts raw input into an AuditKind.
func ParseAuditKind(value string) (AuditKind, error) {
	for _, candidate := range validAuditKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit kind %q", value)
}
