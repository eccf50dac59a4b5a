package security

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Endpoints are matched as "host/path" with keyMatch2, so a rule may end in
// "/*" or use ":param" segments.
const egressModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

const egressAction = "call"

type EgressPolicy struct {
	enforcer *casbin.Enforcer
}

// NewEgressPolicy builds a deny-by-default policy. A rule is "host/path" for
// every extension or "extension=host/path" for one.
func NewEgressPolicy(rules []string) (*EgressPolicy, error) {
	m, err := model.NewModelFromString(egressModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, raw := range rules {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		sub, obj := "*", raw
		if name, rest, ok := strings.Cut(raw, "="); ok {
			sub, obj = strings.TrimSpace(name), rest
		}
		obj = NormalizeEndpoint(obj)
		if strings.Contains(strings.ReplaceAll(obj, "/*", ""), "*") {
			return nil, fmt.Errorf("egress rule %q: wildcard is only allowed as a trailing /* segment", raw)
		}
		if _, err := e.AddPolicy(sub, obj, egressAction); err != nil {
			return nil, err
		}
	}
	return &EgressPolicy{enforcer: e}, nil
}

// Allowed reports whether extension may call endpoint. Host-relative
// endpoints ("/api/...") stay inside the host and are always allowed;
// internal addresses are denied whatever the rules say.
func (p *EgressPolicy) Allowed(extension, endpoint string) (bool, error) {
	if strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
		return true, nil
	}
	if InternalTarget(endpoint) {
		return false, nil
	}
	return p.enforcer.Enforce(extension, NormalizeEndpoint(endpoint), egressAction)
}

// NormalizeEndpoint reduces a URL or bare "host/path" to lower-case
// "host/path" without scheme, port, query or trailing slash.
func NormalizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	p := strings.TrimSuffix(u.Path, "/")
	return strings.ToLower(u.Hostname()) + p
}
