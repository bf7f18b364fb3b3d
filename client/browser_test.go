package client

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "css=input[name=\"email\"]", usernameField.String())
	assert.Equal(t, "xpath=(//a[contains(text(), 'Reserve')])[last()]", lastReserveBtn.String())
	assert.Equal(t, "id=createReservation-Form", reservationFrm.String())
	assert.Equal(t, "name=RequestData", Name("RequestData").String())
}

func TestQuery(t *testing.T) {
	q, opts := query(reservationFrm)
	assert.Equal(t, `[id="createReservation-Form"]`, q)
	assert.Len(t, opts, 1)

	q, _ = query(Name("__RequestVerificationToken"))
	assert.Equal(t, `[name="__RequestVerificationToken"]`, q)

	q, opts = query(lastReserveBtn)
	assert.Equal(t, lastReserveBtn.Value, q)
	assert.Len(t, opts, 1)

	q, _ = query(usernameField)
	assert.Equal(t, `input[name="email"]`, q)
}

func TestElementNotFound(t *testing.T) {
	err := elementNotFound(loginButton, 0)
	assert.True(t, errors.Is(err, ErrElementNotFound))
	assert.Contains(t, err.Error(), "xpath=")
}

func TestPageTimeout(t *testing.T) {
	err := pageTimeout("load https://app.example.test/", 0)
	assert.True(t, errors.Is(err, ErrPageTimeout))
	assert.False(t, errors.Is(err, ErrElementNotFound))
	assert.Contains(t, err.Error(), "https://app.example.test/")
}
