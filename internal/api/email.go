package api

import (
	"strings"
)

// Personal mailbox providers. Business forms require a company address.
var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.de":       {},
	"hotmail.com":    {},
	"hotmail.de":     {},
	"outlook.com":    {},
	"outlook.de":     {},
	"live.com":       {},
	"msn.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"gmx.de":         {},
	"gmx.net":        {},
	"gmx.com":        {},
	"web.de":         {},
	"t-online.de":    {},
	"freenet.de":     {},
	"proton.me":      {},
	"protonmail.com": {},
	"mail.com":       {},
	"yandex.com":     {},
	"zoho.com":       {},
}

// ValidateBusinessEmail checks syntax and rejects personal mail providers.
func ValidateBusinessEmail(email string) ValidateEmailResponse {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return ValidateEmailResponse{Valid: false, Reason: "invalid email address"}
	}

	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	if _, free := freeMailDomains[domain]; free {
		return ValidateEmailResponse{Valid: false, Reason: "please use your business email address"}
	}
	return ValidateEmailResponse{Valid: true}
}
