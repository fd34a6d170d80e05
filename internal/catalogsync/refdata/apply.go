package refdata

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
)

// Store is the part of the local store holding the reference tables.
type Store interface {
	UpsertLicense(ctx context.Context, l *models.License) apperrors.Error
	UpsertCategory(ctx context.Context, c *models.Category) apperrors.Error
	UpsertDataType(ctx context.Context, d *models.DataType) apperrors.Error
	UpsertSupport(ctx context.Context, s *models.Support) apperrors.Error
	UpsertSupportedCrs(ctx context.Context, c *models.SupportedCrs) apperrors.Error
	UpsertResourceFormat(ctx context.Context, f *models.ResourceFormat) apperrors.Error
}

// Apply writes every item of the set to the store. Existing rows are updated
// in place. It stops at the first failure.
func Apply(ctx context.Context, st Store, set *Set) apperrors.Error {
	for _, l := range set.Licenses {
		if err := st.UpsertLicense(ctx, l); err != nil {
			return err
		}
	}
	for _, c := range set.Categories {
		if err := st.UpsertCategory(ctx, c); err != nil {
			return err
		}
	}
	for _, d := range set.DataTypes {
		if err := st.UpsertDataType(ctx, d); err != nil {
			return err
		}
	}
	for _, s := range set.Supports {
		if err := st.UpsertSupport(ctx, s); err != nil {
			return err
		}
	}
	for _, c := range set.SupportedCrs {
		if err := st.UpsertSupportedCrs(ctx, c); err != nil {
			return err
		}
	}
	for _, f := range set.ResourceFormats {
		if err := st.UpsertResourceFormat(ctx, f); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Info().Int("items", set.Len()).Msg("reference data loaded")
	return nil
}
