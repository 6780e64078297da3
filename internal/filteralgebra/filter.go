// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package filteralgebra builds and manipulates the upstream CDN filter
// expressions. Every operation here is a pure string transform: the
// expression itself is the canonical record of which clauses a filter
// carries, so there is no separate clause list to keep in sync.
package filteralgebra

import (
	"net"
	"regexp"
	"strings"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
)

// Kind classifies a Filter by which target fields it was built from.
type Kind string

const (
	KindIP          Kind = "IP"
	KindUserAgent   Kind = "UserAgent"
	KindIPUserAgent Kind = "IPUserAgent"
	KindUnset       Kind = "Unset"
)

// Filter is one upstream expression plus the identifiers the CDN assigned it.
type Filter struct {
	ID         string
	RuleID     string
	Kind       Kind
	Expression string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// New builds a Filter from a ban/unban target. ua is a pointer so that a
// present-but-empty "user_agent":"" (distinct from an absent field) is
// rejected rather than silently treated as no user-agent at all. At least
// one of ip, ua must be present. ip, if present, must parse as an IPv4 or
// IPv6 literal. ua, if present, must be non-empty.
func New(ip string, ua *string) (Filter, error) {
	hasIP := ip != ""
	hasUA := ua != nil
	uaVal := ""
	if hasUA {
		uaVal = *ua
	}

	if !hasIP && !hasUA {
		return Filter{}, flerrors.New(flerrors.KindMissingTarget, "at least one of 'ip','user_agent' required")
	}

	if hasIP && net.ParseIP(ip) == nil {
		return Filter{}, flerrors.Errorf(flerrors.KindBadIP, "ip %q does not parse", ip)
	}

	if hasUA && uaVal == "" {
		return Filter{}, flerrors.New(flerrors.KindBadRequest, "empty 'user_agent'")
	}

	var kind Kind
	var expr string
	switch {
	case hasIP && hasUA:
		kind = KindIPUserAgent
		expr = ipUAClause(ip, uaVal)
	case hasIP:
		kind = KindIP
		expr = ipClause(ip)
	default:
		kind = KindUserAgent
		expr = uaClause(uaVal)
	}

	return Filter{Kind: kind, Expression: expr}, nil
}

func ipClause(ip string) string {
	return "(ip.src eq " + ip + ")"
}

func uaClause(ua string) string {
	return `(http.user_agent eq "` + ua + `")`
}

func ipUAClause(ip, ua string) string {
	return `(ip.src eq ` + ip + ` and http.user_agent eq "` + ua + `")`
}

func sameKind(a, b Kind) error {
	if a != b {
		return flerrors.Errorf(flerrors.KindWrongFilter, "filter kind mismatch: %s vs %s", a, b)
	}
	return nil
}

// Append extends f's expression with other's clause, joined by " or ".
// Both filters must share the same kind.
func (f *Filter) Append(other Filter) error {
	if err := sameKind(f.Kind, other.Kind); err != nil {
		return err
	}
	self := strings.TrimSpace(f.Expression)
	add := strings.TrimSpace(other.Expression)
	if self == "" {
		f.Expression = add
		return nil
	}
	f.Expression = self + " or " + add
	return nil
}

// Trim removes other's clause from f's expression. If f's expression
// contains " or ", the substring "or <other clause>" is removed once, or,
// when the clause is the leading one, "<other clause> or " is removed once.
// Then one residual occurrence of the bare clause, if any, is removed.
// Consecutive whitespace collapses to a single space, so trimming the only
// clause leaves an empty expression.
func (f *Filter) Trim(other Filter) error {
	if err := sameKind(f.Kind, other.Kind); err != nil {
		return err
	}
	clause := strings.TrimSpace(other.Expression)
	expr := f.Expression

	if strings.Contains(expr, " or ") {
		if strings.Contains(expr, "or "+clause) {
			expr = strings.Replace(expr, "or "+clause, "", 1)
		} else {
			expr = strings.Replace(expr, clause+" or ", "", 1)
		}
	}
	expr = strings.Replace(expr, clause, "", 1)
	expr = whitespaceRun.ReplaceAllString(expr, " ")
	f.Expression = strings.TrimSpace(expr)
	return nil
}

// Includes reports whether other's clause is present in f's expression.
func (f Filter) Includes(other Filter) (bool, error) {
	if err := sameKind(f.Kind, other.Kind); err != nil {
		return false, err
	}
	clause := strings.TrimSpace(other.Expression)
	return strings.Contains(f.Expression, clause), nil
}

// IsEmpty reports whether the expression carries no remaining clause.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Expression) == ""
}

// KindFromString maps the closed-set string stored in the database back
// to a Kind, used when reconstructing filters loaded from the store.
func KindFromString(s string) Kind {
	switch s {
	case "IP":
		return KindIP
	case "USER_AGENT":
		return KindUserAgent
	case "IP_USER_AGENT":
		return KindIPUserAgent
	default:
		return KindUnset
	}
}

// StorageString renders Kind in the closed-set form persisted in filters.kind.
func (k Kind) StorageString() string {
	switch k {
	case KindIP:
		return "IP"
	case KindUserAgent:
		return "USER_AGENT"
	case KindIPUserAgent:
		return "IP_USER_AGENT"
	default:
		return ""
	}
}
