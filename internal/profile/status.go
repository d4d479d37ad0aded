package profile

import (
	"time"

	personentity "github.com/ovaphlow/pitchfork/service-identity/internal/person/entity"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

const adultAge = 18

// SystemStatus derives the account state from profile completeness and
// confirmation flags. A banned account stays banned.
func SystemStatus(current userentity.SystemStatus, role userentity.Role, p *personentity.Person, d *userentity.Details, now time.Time) userentity.SystemStatus {
	if current == userentity.StatusBanned {
		return current
	}
	if role == userentity.RoleLegal {
		if p.LegalName == "" || p.ShortName == "" || !d.EmailConfirmed {
			return userentity.StatusSuspended
		}
		if d.PhoneConfirmed && p.BirthdayAt != nil && !p.BirthdayAt.After(now.AddDate(0, 0, -1)) {
			return userentity.StatusActive
		}
		return userentity.StatusLimited
	}
	if p.FirstName == "" || p.LastName == "" || !d.EmailConfirmed {
		return userentity.StatusSuspended
	}
	if d.PhoneConfirmed && p.Gender != "" && p.Gender != personentity.GenderUnset && adult(p.BirthdayAt, now) {
		return userentity.StatusActive
	}
	return userentity.StatusLimited
}

func adult(birthday *time.Time, now time.Time) bool {
	if birthday == nil {
		return false
	}
	return !birthday.AddDate(adultAge, 0, 0).After(now)
}
