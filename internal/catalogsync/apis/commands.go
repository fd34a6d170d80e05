package apis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/schemavalidator"
)

// alias renames an accepted request key to its canonical name. conv, when
// set, also transforms the value.
type alias struct {
	to   string
	conv func(v any) (any, error)
}

var datasetAliases = map[string]alias{
	"name":      {to: "slug"},
	"type":      {to: "data_types"},
	"types":     {to: "data_types"},
	"data_type": {to: "data_types"},
	"category":  {to: "categories"},
	"keyword":   {to: "keywords"},
	"private":   {to: "published", conv: negate},
}

var resourceAliases = map[string]alias{
	"title":            {to: "name"},
	"language":         {to: "lang"},
	"type":             {to: "data_type"},
	"restricted_level": {to: "restriction_level"},
}

// legacy restriction level labels of the public API
var levelLabels = map[string]catcommon.RestrictionLevel{
	"registered_users":       catcommon.LevelRegistered,
	"only_allowed_users":     catcommon.LevelAllowedUsers,
	"within_my_organisation": catcommon.LevelSameOrganisation,
	"same_organization":      catcommon.LevelSameOrganisation,
	"allowed_organisations":  catcommon.LevelAnyOrganisation,
	"any_organization":       catcommon.LevelAnyOrganisation,
}

func negate(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return !b, nil
	case string:
		switch strings.ToLower(b) {
		case "on", "yes":
			return false, nil
		case "off", "no", "":
			return true, nil
		}
		p, err := strconv.ParseBool(b)
		if err != nil {
			return nil, err
		}
		return !p, nil
	case []string:
		if len(b) == 0 {
			return true, nil
		}
		return negate(b[len(b)-1])
	}
	return nil, fmt.Errorf("not a boolean")
}

// normalize renames aliased keys. A canonical key wins over its aliases.
func normalize(in map[string]any, aliases map[string]alias) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		a, ok := aliases[k]
		if !ok {
			out[k] = v
			continue
		}
		if _, set := in[a.to]; set {
			continue
		}
		if a.conv != nil {
			c, err := a.conv(v)
			if err != nil {
				return nil, fieldError(k, "invalid value")
			}
			v = c
		}
		out[a.to] = v
	}
	return out, nil
}

// formValues flattens form values: single values become strings.
func formValues(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			out[k] = vals[0]
		} else {
			out[k] = vals
		}
	}
	return out
}

// decodeCommand maps normalized input onto cmd and validates it. Lists can be
// given as repeated keys or a comma separated string.
func decodeCommand(in map[string]any, aliases map[string]alias, cmd any) error {
	in, err := normalize(in, aliases)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           cmd,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return ErrInvalidInput.MsgErr("unable to read the request", err)
	}
	return validateCommand(cmd)
}

func validateCommand(cmd any) error {
	if err := schemavalidator.V().Struct(cmd); err != nil {
		if field, msg, ok := schemavalidator.FirstError(err); ok {
			return fieldError(field, msg)
		}
		return ErrInvalidInput.Err(err)
	}
	return nil
}

func trimAll(s []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fieldError(field, "expected a date formatted as YYYY-MM-DD")
	}
	return &t, nil
}

type datasetCommand struct {
	Title            string   `json:"title" validate:"required,max=256"`
	Slug             string   `json:"slug" validate:"omitempty,max=100,catalogName"`
	Description      string   `json:"description"`
	Organisation     string   `json:"organisation" validate:"required"`
	License          string   `json:"license" validate:"required"`
	Keywords         []string `json:"keywords"`
	Categories       []string `json:"categories"`
	DataTypes        []string `json:"data_types"`
	Support          string   `json:"support"`
	Geocover         string   `json:"geocover" validate:"omitempty,oneof=regionale international european national departementale intercommunal communal"`
	UpdateFrequency  string   `json:"update_frequency" validate:"omitempty,updateFrequency"`
	Published        *bool    `json:"published"`
	OwnerName        string   `json:"owner_name"`
	OwnerEmail       string   `json:"owner_email" validate:"omitempty,email"`
	DateCreation     string   `json:"date_creation"`
	DateModification string   `json:"date_modification"`
	DatePublication  string   `json:"date_publication"`
}

type resourceCommand struct {
	Name             string   `json:"name" validate:"required,max=150"`
	Description      string   `json:"description"`
	Lang             string   `json:"lang"`
	Format           string   `json:"format"`
	DataType         string   `json:"data_type"`
	RestrictionLevel string   `json:"restriction_level"`
	RestrictedList   []string `json:"restricted_list"`
	DlURL            string   `json:"dl_url" validate:"omitempty,url"`
	ReferencedURL    string   `json:"referenced_url" validate:"omitempty,url"`
	FtpFile          string   `json:"ftp_file"`
	SyncFrequency    string   `json:"sync_frequency" validate:"omitempty,syncFrequency"`
	Crs              string   `json:"crs"`
	GeoRestriction   *bool    `json:"geo_restriction"`
	Extractable      *bool    `json:"extractable"`
	OgcServices      *bool    `json:"ogc_services"`
}

func (c *resourceCommand) level() (catcommon.RestrictionLevel, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c.RestrictionLevel)), "-", "_")
	if l, ok := levelLabels[key]; ok {
		return l, nil
	}
	l, err := catcommon.ParseRestrictionLevel(c.RestrictionLevel)
	if err != nil {
		return "", fieldError("restriction_level", "unknown restriction level")
	}
	return l, nil
}

// epsg reads "EPSG:2154" or "2154". Zero means the CRS is left to the import.
func (c *resourceCommand) epsg() (int, error) {
	s := strings.TrimSpace(c.Crs)
	if s == "" {
		return 0, nil
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fieldError("crs", "unknown coordinate system")
	}
	return n, nil
}
