// Package emailclass classifies email addresses by provider behavior as a
// fraud signal: free webmail, open/anonymous relays, forwarding services,
// time-bound burner inboxes, one-time "shredder" addresses and subaddressed
// (plus-tagged) forms. Categories are independent; one address can match
// several at once.
package emailclass

import (
	"strings"
)

// Classification is the result of classifying one email address.
type Classification struct {
	Free         bool
	Open         bool
	Forwarding   bool
	TimeBound    bool
	Shredder     bool
	Subaddressed bool
}

// Any reports whether at least one category matched.
func (c Classification) Any() bool {
	return c.Free || c.Open || c.Forwarding || c.TimeBound || c.Shredder || c.Subaddressed
}

// Classifier classifies an email address. Implementations must be safe for
// concurrent use; the pipeline calls Classify from multiple workers.
type Classifier interface {
	Classify(email string) Classification
}

// domain sets are curated from published disposable-provider lists. They do
// not aim for completeness; the threshold evaluator works on ratios, so a
// stable subset of well-known providers is enough signal.
var (
	freeDomains = makeSet(
		"gmail.com", "googlemail.com", "yahoo.com", "yahoo.co.uk", "ymail.com",
		"hotmail.com", "hotmail.co.uk", "outlook.com", "live.com", "msn.com",
		"aol.com", "gmx.com", "gmx.net", "mail.com", "zoho.com", "icloud.com",
		"me.com", "protonmail.com", "proton.me", "yandex.com", "yandex.ru",
	)
	openDomains = makeSet(
		"mailinator.com", "maildrop.cc", "mailnesia.com", "dispostable.com",
		"spamgourmet.com", "mytrashmail.com", "tempinbox.com",
	)
	forwardingDomains = makeSet(
		"33mail.com", "anonaddy.me", "simplelogin.com", "duck.com",
		"forward.cat", "mailforward.nl", "spamex.com",
	)
	timeBoundDomains = makeSet(
		"guerrillamail.com", "guerrillamail.org", "guerrillamailblock.com",
		"10minutemail.com", "10minutemail.net", "temp-mail.org", "tempmail.com",
		"throwawaymail.com", "getnada.com", "mohmal.com", "yopmail.com",
	)
	shredderDomains = makeSet(
		"incognitomail.com", "mailcatch.com", "mailexpire.com",
		"deadaddress.com", "spamhole.com", "oneoffemail.com",
	)
)

func makeSet(domains ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// StaticClassifier classifies against the built-in provider sets, optionally
// extended with extra domains per category.
type StaticClassifier struct {
	free       map[string]struct{}
	open       map[string]struct{}
	forwarding map[string]struct{}
	timeBound  map[string]struct{}
	shredder   map[string]struct{}
}

// NewStaticClassifier returns a classifier backed by the built-in sets.
func NewStaticClassifier() *StaticClassifier {
	return &StaticClassifier{
		free:       freeDomains,
		open:       openDomains,
		forwarding: forwardingDomains,
		timeBound:  timeBoundDomains,
		shredder:   shredderDomains,
	}
}

// AddDomain registers an extra domain under the given category. Not safe to
// call concurrently with Classify; do it during setup.
func (c *StaticClassifier) AddDomain(category, domain string) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return
	}
	switch category {
	case "free":
		c.free[domain] = struct{}{}
	case "open":
		c.open[domain] = struct{}{}
	case "forwarding":
		c.forwarding[domain] = struct{}{}
	case "timebound":
		c.timeBound[domain] = struct{}{}
	case "shredder":
		c.shredder[domain] = struct{}{}
	}
}

// Classify evaluates every category for the address. Invalid addresses
// (no "@", empty domain) match nothing.
func (c *StaticClassifier) Classify(email string) Classification {
	var out Classification

	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return out
	}
	local := email[:at]
	domain := email[at+1:]

	_, out.Free = c.free[domain]
	_, out.Open = c.open[domain]
	_, out.Forwarding = c.forwarding[domain]
	_, out.TimeBound = c.timeBound[domain]
	_, out.Shredder = c.shredder[domain]

	// Plus-tagging: local part carries a +tag suffix. A bare trailing "+"
	// is not a tag.
	if i := strings.Index(local, "+"); i > 0 && i < len(local)-1 {
		out.Subaddressed = true
	}

	return out
}

// Normalize lowercases and trims an address. Identity resolution keys on
// the normalized form.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
