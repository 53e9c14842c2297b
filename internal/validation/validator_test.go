package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingForm struct {
	Phone  string `validate:"required,phone"`
	Date   string `validate:"required,date"`
	Time   string `validate:"required,slot"`
	Status string `validate:"omitempty,bookingstatus"`
}

func TestBookingTags(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(bookingForm{Phone: "081 075 5476", Date: "2025-08-20", Time: "9:00 AM - 11:00 AM", Status: "Pending"}))

	err := v.Struct(bookingForm{Phone: "call me", Date: "20/08/2025", Time: "noon", Status: "Lost"})
	errs := v.ValidationErrors(err)
	require.Len(t, errs, 4)
	tags := map[string]string{}
	for _, e := range errs {
		tags[e.Field()] = e.Tag()
	}
	assert.Equal(t, map[string]string{"Phone": "phone", "Date": "date", "Time": "slot", "Status": "bookingstatus"}, tags)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+27810755476", NormalizePhone(" +27 (81) 075-5476 "))
	assert.Nil(t, New().ValidationErrors(nil))
}
