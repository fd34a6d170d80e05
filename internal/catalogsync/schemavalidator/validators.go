package schemavalidator

import (
	"regexp"
	"slices"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/go-playground/validator/v10"
)

// names accepted by the remote catalog for packages, organisations and groups
var catalogNameRegex = regexp.MustCompile(`^[a-z0-9_-]{2,100}$`)

func catalogNameValidator(fl validator.FieldLevel) bool {
	return catalogNameRegex.MatchString(fl.Field().String())
}

func restrictionLevelValidator(fl validator.FieldLevel) bool {
	return catcommon.RestrictionLevel(fl.Field().String()).IsValid()
}

func updateFrequencyValidator(fl validator.FieldLevel) bool {
	return slices.Contains(catcommon.UpdateFrequencies, fl.Field().String())
}

func syncFrequencyValidator(fl validator.FieldLevel) bool {
	return slices.Contains(catcommon.SyncFrequencies, fl.Field().String())
}

var noSpacesRegex = regexp.MustCompile(`^[^\s]+$`)

func noSpacesValidator(fl validator.FieldLevel) bool {
	return noSpacesRegex.MatchString(fl.Field().String())
}

// ValidateCatalogName reports whether name can be used as a remote catalog name.
func ValidateCatalogName(name string) bool {
	return catalogNameRegex.MatchString(name)
}

func registerValidators(v *validator.Validate) {
	v.RegisterValidation("catalogName", catalogNameValidator)
	v.RegisterValidation("restrictionLevel", restrictionLevelValidator)
	v.RegisterValidation("updateFrequency", updateFrequencyValidator)
	v.RegisterValidation("syncFrequency", syncFrequencyValidator)
	v.RegisterValidation("noSpaces", noSpacesValidator)
}
