// Package accesspolicy maps a resource restriction level and its allow-lists to the
// access metadata published in the remote catalog. Everything here is pure: no I/O,
// no shared state, and identical inputs always give identical outputs.
package accesspolicy

import (
	"sort"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/tidwall/sjson"
)

// Remote level names understood by the catalog's access-control extension.
const (
	remoteLevelPublic     = "public"
	remoteLevelRegistered = "registered"
	remoteLevelAllowed    = "only_allowed_users"
)

// Organisation is the membership view of an organisation the resolver needs.
type Organisation struct {
	ID      string
	Members []string // usernames
}

// Policy is the resolved access metadata of a resource.
type Policy struct {
	Level      catcommon.RestrictionLevel
	Anonymous  bool
	Principals []string // sorted, without duplicates
}

// Resolve computes the access policy for level.
//
//   - public: anonymous access, no principals; the allow-lists are ignored.
//   - registered: any authenticated principal, so no principals.
//   - allowed_users: the allowed usernames; an empty list means nobody.
//   - same_organisation: every member of homeOrg.
//   - any_organisation: the union of the members of allowedOrgs.
//
// An unknown level resolves like allowed_users with no principals, which grants nothing.
func Resolve(level catcommon.RestrictionLevel, allowedUsers []string, allowedOrgs []Organisation, homeOrg *Organisation) Policy {
	p := Policy{Level: level}
	switch level {
	case catcommon.LevelPublic:
		p.Anonymous = true
	case catcommon.LevelRegistered:
	case catcommon.LevelAllowedUsers:
		p.Principals = normalize(allowedUsers)
	case catcommon.LevelSameOrganisation:
		if homeOrg != nil {
			p.Principals = normalize(homeOrg.Members)
		}
	case catcommon.LevelAnyOrganisation:
		var all []string
		for _, o := range allowedOrgs {
			all = append(all, o.Members...)
		}
		p.Principals = normalize(all)
	default:
		p.Level = catcommon.LevelAllowedUsers
	}
	if p.Principals == nil {
		p.Principals = []string{}
	}
	return p
}

func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RemoteLevel returns the level name used in the catalog restriction blob.
func (p Policy) RemoteLevel() string {
	switch p.Level {
	case catcommon.LevelPublic:
		return remoteLevelPublic
	case catcommon.LevelRegistered:
		return remoteLevelRegistered
	default:
		return remoteLevelAllowed
	}
}

// Restricted renders the restriction blob of the catalog:
// {"level": "...", "allowed_users": "a,b"}. allowed_users is present only for
// levels that list principals.
func (p Policy) Restricted() string {
	blob, _ := sjson.Set("{}", "level", p.RemoteLevel())
	if p.RemoteLevel() == remoteLevelAllowed {
		blob, _ = sjson.Set(blob, "allowed_users", strings.Join(p.Principals, ","))
	}
	return blob
}

// Allows reports whether username may access a resource under p.
// An empty username stands for an anonymous visitor.
func (p Policy) Allows(username string) bool {
	if p.Anonymous {
		return true
	}
	if username == "" {
		return false
	}
	if p.Level == catcommon.LevelRegistered {
		return true
	}
	i := sort.SearchStrings(p.Principals, username)
	return i < len(p.Principals) && p.Principals[i] == username
}
