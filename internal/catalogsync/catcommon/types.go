package catcommon

import (
	"fmt"
	"strings"
)

const ServerVersion = "0.2.0"
const ApiVersion = "v1"

// RestrictionLevel is the access-control tier attached to a resource.
type RestrictionLevel string

const (
	LevelPublic           RestrictionLevel = "public"
	LevelRegistered       RestrictionLevel = "registered"
	LevelAllowedUsers     RestrictionLevel = "allowed_users"
	LevelSameOrganisation RestrictionLevel = "same_organisation"
	LevelAnyOrganisation  RestrictionLevel = "any_organisation"
)

// legacy numeric codes used by the administration screens
var levelCodes = map[string]RestrictionLevel{
	"0": LevelPublic,
	"1": LevelRegistered,
	"2": LevelAllowedUsers,
	"3": LevelSameOrganisation,
	"4": LevelAnyOrganisation,
}

// ParseRestrictionLevel accepts either a level name or its legacy numeric code.
// An empty string is read as public.
func ParseRestrictionLevel(s string) (RestrictionLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LevelPublic, nil
	}
	if l, ok := levelCodes[s]; ok {
		return l, nil
	}
	l := RestrictionLevel(strings.ReplaceAll(strings.ToLower(s), "-", "_"))
	if !l.IsValid() {
		return "", fmt.Errorf("unknown restriction level: %s", s)
	}
	return l, nil
}

func (l RestrictionLevel) IsValid() bool {
	switch l {
	case LevelPublic, LevelRegistered, LevelAllowedUsers, LevelSameOrganisation, LevelAnyOrganisation:
		return true
	}
	return false
}

// UpdateFrequency values accepted for datasets.
var UpdateFrequencies = []string{
	"asneeded", "never", "intermittently", "continuously", "realtime",
	"daily", "weekly", "monthly", "quarterly", "semiannual", "annual", "unknown",
}

// SyncFrequency values accepted for resources synchronised from a remote URL.
var SyncFrequencies = []string{
	"never", "daily", "weekly", "bimonthly", "monthly", "quarterly", "biannual", "annual",
}

// Source kinds of a resource. Exactly one is set at a time.
type SourceKind string

const (
	SourceNone       SourceKind = ""
	SourceUpload     SourceKind = "upload"
	SourceDownload   SourceKind = "download"
	SourceReferenced SourceKind = "referenced"
	SourceFTP        SourceKind = "ftp"
)

// Extensions the GIS import probes for spatial content.
var GeoExtensions = map[string]bool{
	"zip":      true,
	"tar":      true,
	"geojson":  true,
	"shapezip": true,
}

// ExplicitlySpatial reports whether a declared extension promises spatial content,
// in which case a file without any layer is an error.
func ExplicitlySpatial(ext string) bool {
	return ext == "geojson" || ext == "shapezip"
}

// Datastore and workspace used for layers when nothing else is configured.
const DefaultDatastore = "public"
