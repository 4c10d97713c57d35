// Package privacy holds presentation helpers that hide personal data.
package privacy

import "strings"

// MaskEmail keeps the first character of the local part and the full domain,
// e.g. "jane@school.lr" becomes "j***@school.lr".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}

	local, domain := email[:at], email[at+1:]
	if len([]rune(local)) <= 1 {
		return "*@" + domain
	}
	return string([]rune(local)[:1]) + "***@" + domain
}
