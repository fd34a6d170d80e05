package apperrors

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("TestError", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrAnotherErrMsg := ErrAnotherErr.Msg("another error msg")
		ErrYetAnotherErr := New("yet another error")
		ErrYetAnotherErrMsg := ErrYetAnotherErr.Msg("yet another error msg")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErrMsg, ErrYetAnotherErrMsg)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErrMsg)
		assert.ErrorIs(t, ErrWrappedErr, ErrYetAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrYetAnotherErrMsg)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrAnotherGoErr := fmt.Errorf("another error")
		ErrYetAnotherGoErr := fmt.Errorf("yet another error")
		ErrWrappedGoErr := ErrFirstLevel.Err(ErrAnotherGoErr, ErrYetAnotherGoErr)
		assert.Equal(t, "first level", ErrWrappedGoErr.Error())
		assert.ErrorIs(t, ErrWrappedGoErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedGoErr, ErrAnotherGoErr)
		assert.ErrorIs(t, ErrWrappedGoErr, ErrYetAnotherGoErr)

		ErrGisImport := New("gis import failed").SetExpandError(true).SetStatusCode(http.StatusBadRequest)
		ErrCrsNotFound := ErrGisImport.New("crs not found").SetField("crs")
		ErrWrappedFieldErr := ErrCrsNotFound.Err(fieldErrors{{Field: "crs", Msg: "select a crs"}}).SetExpandError(true)
		assert.True(t, errors.Is(ErrWrappedFieldErr, ErrCrsNotFound))
		assert.True(t, errors.Is(ErrWrappedFieldErr, ErrGisImport))
		assert.Equal(t, http.StatusBadRequest, ErrWrappedFieldErr.StatusCode())
		assert.Equal(t, "crs", ErrWrappedFieldErr.Field())
		assert.Contains(t, ErrWrappedFieldErr.ErrorAll(), "crs: select a crs")
	})
}

func TestFieldAttribution(t *testing.T) {
	ErrValidation := New("validation failed").SetStatusCode(http.StatusBadRequest)
	ErrMissingLicense := ErrValidation.New("license is required").SetField("license")

	assert.Equal(t, FieldAll, FieldOf(ErrValidation))
	assert.Equal(t, "license", FieldOf(ErrMissingLicense))
	assert.Equal(t, "license", FieldOf(ErrMissingLicense.Msg("dataset has no license")))
	assert.Equal(t, "license", FieldOf(fmt.Errorf("saving: %w", ErrMissingLicense)))
	assert.Equal(t, "title", FieldOf(ErrMissingLicense.Msg("x").SetField("title")))
	assert.Equal(t, FieldAll, FieldOf(errors.New("plain")))
	assert.Equal(t, FieldAll, FieldOf(nil))

	assert.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("wrap: %w", ErrMissingLicense), 500))
	assert.Equal(t, 500, StatusOf(errors.New("plain"), 500))
}

type fieldError struct {
	Field string
	Msg   string
}

func (fe fieldError) Error() string {
	if len(fe.Field) > 0 {
		return fe.Field + ": " + fe.Msg
	}
	return fe.Msg
}

type fieldErrors []fieldError

func (fes fieldErrors) Error() string {
	buff := bytes.NewBufferString("")
	for i := 0; i < len(fes); i++ {
		buff.WriteString(fes[i].Error())
		buff.WriteString("; ")
	}
	return strings.TrimSuffix(strings.TrimSpace(buff.String()), ";")
}
