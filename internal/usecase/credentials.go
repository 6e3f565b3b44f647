package usecase

import (
	"fmt"

	"AdSweeper/internal/domain"
)

// CredentialResolver routes each account to its session cookie: a per-record
// override wins, then the subject mapping, then the configured default.
type CredentialResolver struct {
	Cookies  map[string]string // credential name -> cookie value
	Subjects map[string]string // subject -> credential name
	Default  string            // credential name used when the subject is empty
}

// Resolve returns the session for one account plus the name of the source
// that supplied it, for logging.
func (r CredentialResolver) Resolve(account domain.Account) (domain.Session, string, error) {
	if account.CookieOverride != "" {
		return domain.Session{AccountID: account.ID, Cookie: account.CookieOverride}, "override", nil
	}

	if account.Subject != "" {
		name, ok := r.Subjects[account.Subject]
		if !ok {
			return domain.Session{}, "", &domain.ConfigError{
				Reason: fmt.Sprintf("subject %q of account %s has no credential mapping", account.Subject, account.ID),
			}
		}
		return domain.Session{AccountID: account.ID, Cookie: r.Cookies[name]}, name, nil
	}

	if r.Default == "" {
		return domain.Session{}, "", &domain.ConfigError{
			Reason: fmt.Sprintf("account %s carries no subject and no default credential is configured", account.ID),
		}
	}
	return domain.Session{AccountID: account.ID, Cookie: r.Cookies[r.Default]}, r.Default, nil
}
