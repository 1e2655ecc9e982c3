package archive

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const redacted = "xxxxx"

var (
	// scheme://... ; the scheme grammar is RFC 3986 section 3.1
	schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

	// keyword DSNs, e.g. "host=db user=app password=secret"
	dsnPassword = regexp.MustCompile(`(?i)\b(password\s*=\s*)('[^']*'|\S+)`)

	secretParam = regexp.MustCompile(`(?i)([?&](?:password|secret|secret_key|secretkey|token|authsource_password)=)[^&#]*`)

	// MONGODB-AWS temporary credentials inside authMechanismProperties
	sessionToken = regexp.MustCompile(`(?i)(AWS_SESSION_TOKEN(?::|%3A))[^,&#]*`)
)

// RedactURI masks credentials in a connection string: the userinfo password,
// secret-looking query parameters and password= pairs in keyword DSNs.
//
// URIs are not run through url.Parse, which rejects forms drivers accept (mixed-port
// seed lists, unescaped '/' in secrets). Userinfo ends at the last '@' before the
// query, so reserved characters other than '/' must be percent-encoded in passwords.
func RedactURI(raw string) string {
	if raw == "" {
		return raw
	}

	loc := schemePrefix.FindStringIndex(raw)
	if loc == nil {
		return dsnPassword.ReplaceAllString(raw, "${1}"+redacted)
	}

	prefix, rest := raw[:loc[1]], raw[loc[1]:]
	authority, suffix := rest, ""
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		authority, suffix = rest[:i], rest[i:]
	}

	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		userinfo := authority[:at]
		if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
			authority = userinfo[:colon+1] + redacted + authority[at:]
		}
	}

	suffix = secretParam.ReplaceAllString(suffix, "${1}"+redacted)
	suffix = sessionToken.ReplaceAllString(suffix, "${1}"+redacted)
	return prefix + authority + suffix
}

var errMalformedURI = errors.New("malformed URI")

// InvalidURI returns an ErrURIInvalid naming the redacted URI. A *url.Error cause is
// replaced: its message repeats the raw URI or the fragment it choked on, which may be
// part of a password.
func InvalidURI(raw string, cause error) *Error {
	var uerr *url.Error
	if errors.As(cause, &uerr) {
		cause = errMalformedURI
	}
	return Errorf(ErrURIInvalid, "'%s': %w", RedactURI(raw), cause)
}
