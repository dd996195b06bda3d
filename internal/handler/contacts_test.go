package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.workshop(t, 5)
	rec := ts.do(t, http.MethodPost, enrollPath(w.ID), map[string]string{"display_name": "Ana", "email": "ana@test.com", "phone": "5551234"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enrolled := decode[EnrollResponse](t, rec)
	contactPath := "/api/contacts/" + strconv.FormatInt(enrolled.Enrollment.ContactID, 10)

	rec = ts.do(t, http.MethodGet, "/api/contacts?owing=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]model.Contact](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/contacts?kind=organization", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Contact](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/organizations", map[string]string{"legal_name": "Acme SpA", "tax_id": "76123456-7"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	org := decode[model.Organization](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/organizations", map[string]string{"legal_name": "Acme SpA"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, contactPath+"/organization", map[string]int64{"organization_id": org.ID}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ContactOrganization, decode[model.Contact](t, rec).Kind)

	rec = ts.do(t, http.MethodGet, contactPath, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[model.ContactDetail](t, rec)
	require.NotNil(t, detail.Organization)
	assert.Equal(t, "Acme SpA", detail.Organization.LegalName)
	require.Len(t, detail.Enrollments, 1)
	assert.Equal(t, "Resin basics", detail.Enrollments[0].WorkshopName)

	rec = ts.do(t, http.MethodGet, "/api/contacts?kind=organization", nil, nil)
	assert.Len(t, decode[[]model.Contact](t, rec), 1)
}

func TestContactRoutesRejectBadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad interest id", http.MethodGet, "/api/contacts?interest=abc", nil, http.StatusBadRequest},
		{"bad owing flag", http.MethodGet, "/api/contacts?owing=maybe", nil, http.StatusBadRequest},
		{"unknown kind", http.MethodGet, "/api/contacts?kind=B2B", nil, http.StatusUnprocessableEntity},
		{"unknown contact", http.MethodGet, "/api/contacts/999", nil, http.StatusNotFound},
		{"missing organization id", http.MethodPut, "/api/contacts/1/organization", map[string]any{}, http.StatusUnprocessableEntity},
		{"unknown organization", http.MethodPut, "/api/contacts/1/organization", map[string]int64{"organization_id": 999}, http.StatusNotFound},
		{"blank legal name", http.MethodPost, "/api/organizations", map[string]string{"legal_name": " "}, http.StatusUnprocessableEntity},
		{"bad enrollment status", http.MethodGet, "/api/enrollments?status=bogus", nil, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, tc.method, tc.path, tc.body, nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestListDebtors(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.workshop(t, 5)
	for _, email := range []string{"ana@test.com", "bea@test.com"} {
		rec := ts.do(t, http.MethodPost, enrollPath(w.ID), map[string]string{"email": email, "phone": "5551234"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if email == "bea@test.com" {
			id := decode[EnrollResponse](t, rec).EnrollmentID
			rec = ts.do(t, http.MethodPost, "/api/enrollments/"+strconv.FormatInt(id, 10)+"/payment", map[string]string{"action": "pay"}, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/enrollments", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	debtors := decode[[]model.EnrollmentDetail](t, rec)
	require.Len(t, debtors, 1)
	assert.Equal(t, "ana@test.com", debtors[0].ContactEmail)
	assert.Equal(t, "Resin basics", debtors[0].WorkshopName)

	rec = ts.do(t, http.MethodGet, "/api/enrollments?status=paid", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.EnrollmentDetail](t, rec), 1)
}
