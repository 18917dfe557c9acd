package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
)

const (
	RoleQueryReader = "query_reader"
	RoleAdmin       = "admin"
)

type Identity struct {
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role || candidate == RoleAdmin {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type staticKey struct {
	key      []byte
	identity Identity
}

type StaticAPIKeyValidator struct {
	keys []staticKey
}

// NewStaticAPIKeyValidator parses comma separated "key:subject:role|role"
// entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	seen := map[string]struct{}{}
	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:subject:role|role", entry)
		}
		key := strings.TrimSpace(parts[0])
		subject := strings.TrimSpace(parts[1])
		if key == "" || subject == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/subject", entry)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate static key for subject %q", subject)
		}
		seen[key] = struct{}{}
		roleParts := strings.Split(strings.TrimSpace(parts[2]), "|")
		roles := make([]string, 0, len(roleParts))
		for _, role := range roleParts {
			role = strings.TrimSpace(role)
			if role == "" {
				continue
			}
			roles = append(roles, role)
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		sort.Strings(roles)
		validator.keys = append(validator.keys, staticKey{key: []byte(key), identity: Identity{Subject: subject, Roles: roles}})
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}

// Validate compares against every configured key in constant time.
func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	candidate := []byte(apiKey)
	var (
		match Identity
		found bool
	)
	for _, entry := range v.keys {
		if subtle.ConstantTimeCompare(entry.key, candidate) == 1 {
			match = entry.identity
			found = true
		}
	}
	return match, found
}
