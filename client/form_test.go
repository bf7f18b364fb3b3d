package client

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reservationFormHTML = `<form id="createReservation-Form" action="/Online/ReservationsApi/CreateReservation/12465" method="post">
	<input name="__RequestVerificationToken" type="hidden" value="tok-123">
	<input id="RequestData" name="RequestData" type="hidden" value="rd-abc==">
	<input id="OrgId" name="OrgId" type="hidden" value="12465">
	<input id="StartTime" name="StartTime" type="text" value="20:00:00">
</form>`

func TestExtractAuthorization(t *testing.T) {
	rec, err := ExtractAuthorization(reservationFormHTML)
	require.NoError(t, err)
	assert.Equal(t, "rd-abc==", rec.RequestData)
	assert.Equal(t, "tok-123", rec.VerificationToken)
}

func TestExtractAuthorization_NameOnly(t *testing.T) {
	html := `<form><input name="RequestData" type="hidden" value="rd"><input name="__RequestVerificationToken" type="hidden" value="tok"></form>`

	rec, err := ExtractAuthorization(html)
	require.NoError(t, err)
	assert.Equal(t, "rd", rec.RequestData)
}

func TestExtractAuthorization_Missing(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "no token",
			html: `<form><input id="RequestData" name="RequestData" value="rd"></form>`,
			want: verificationTokenField,
		},
		{
			name: "empty request data",
			html: `<form><input id="RequestData" name="RequestData" value=""><input name="__RequestVerificationToken" value="tok"></form>`,
			want: requestDataField,
		},
		{
			name: "not a form",
			html: `<p>Session expired</p>`,
			want: requestDataField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractAuthorization(tt.html)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTokenNotFound))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHiddenFields(t *testing.T) {
	fields, err := HiddenFields(reservationFormHTML)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"__RequestVerificationToken": "tok-123",
		"RequestData":                "rd-abc==",
		"OrgId":                      "12465",
	}, fields)
}
