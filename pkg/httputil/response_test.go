package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/validation"
)

func TestDenialStatusMapping(t *testing.T) {
	cases := map[rbac.DenialKind]int{
		rbac.DenialNotFound:               http.StatusNotFound,
		rbac.DenialAmbiguousOrg:           http.StatusBadRequest,
		rbac.DenialAlreadyMember:          http.StatusConflict,
		rbac.DenialAlreadyInvited:         http.StatusConflict,
		rbac.DenialNotAMember:             http.StatusForbidden,
		rbac.DenialInsufficientPermission: http.StatusForbidden,
		rbac.DenialFieldNotPermitted:      http.StatusForbidden,
		rbac.DenialAssigneeNotMember:      http.StatusForbidden,
		rbac.DenialCrossOrg:               http.StatusForbidden,
		rbac.DenialNotPermitted:           http.StatusForbidden,
	}
	for kind, want := range cases {
		assert.Equal(t, want, DenialStatus(kind), "kind %s", kind)
	}
}

func TestWriteServiceErrorWithDenial(t *testing.T) {
	rec := httptest.NewRecorder()
	err := rbac.DenyFields(rbac.DenialFieldNotPermitted, "role may not modify these fields", []string{"assigneeId"})

	WriteServiceError(rec, err)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error  string   `json:"error"`
		Kind   string   `json:"kind"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "role may not modify these fields", body.Error)
	assert.Equal(t, string(rbac.DenialFieldNotPermitted), body.Kind)
	assert.Equal(t, []string{"assigneeId"}, body.Fields)
}

func TestWriteServiceErrorWithWrappedDenial(t *testing.T) {
	rec := httptest.NewRecorder()
	inner := rbac.Deny(rbac.DenialNotFound, "task not found")

	WriteServiceError(rec, errors.Join(inner))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceErrorWithValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, validation.New("title is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "title is required", body.Error)
}

func TestWriteServiceErrorWithPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
