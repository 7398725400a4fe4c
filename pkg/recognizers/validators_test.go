package recognizers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilpii/veil/pkg/models"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		input     string
		expected  models.ValidationResult
	}{
		{"luhn valid", LuhnValidator, "4095-2609-9393-4932", models.Confirmed},
		{"luhn valid spaces", LuhnValidator, "4012 8888 8888 1881", models.Confirmed},
		{"luhn invalid", LuhnValidator, "4012888888881882", models.Rejected},
		{"luhn letters", LuhnValidator, "4012x88888881881", models.Rejected},
		{"iban valid", IBANValidator, "DE89370400440532013000", models.Confirmed},
		{"iban valid grouped", IBANValidator, "GB82 WEST 1234 5698 7654 32", models.Confirmed},
		{"iban bad checksum", IBANValidator, "DE89370400440532013001", models.Rejected},
		{"iban too short", IBANValidator, "DE8937", models.Rejected},
		{"ip v4", IPValidator, "192.168.0.1", models.NoOpinion},
		{"ip v6", IPValidator, "2001:db8::1", models.NoOpinion},
		{"ip garbage", IPValidator, "1.2.3", models.Rejected},
		{"aba valid", ABAValidator, "121000358", models.Confirmed},
		{"aba invalid", ABAValidator, "121000359", models.Rejected},
		{"nhs valid", NHSValidator, "401 023 2137", models.Confirmed},
		{"nhs invalid", NHSValidator, "401 023 2138", models.Rejected},
		{"email valid", EmailValidator, "john.smith@example.com", models.Confirmed},
		{"email numeric tld", EmailValidator, "john@example.123", models.Rejected},
		{"email no dot", EmailValidator, "john@localhost", models.Rejected},
		{"phone ok", PhoneValidator, "(425) 882-9090", models.NoOpinion},
		{"phone too short", PhoneValidator, "12-34", models.Rejected},
		{"bitcoin legacy", CryptoValidator, "16Yeky6GMjeNkAiNcBY7ZhrLoMSgg1BoyZ", models.Confirmed},
		{"bitcoin legacy bad", CryptoValidator, "16Yeky6GMjeNkAiNcBY7ZhrLoMSgg1BoyA", models.Rejected},
		{"bitcoin segwit", CryptoValidator, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", models.Confirmed},
		{"bitcoin segwit bad", CryptoValidator, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdp", models.Rejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.validator(tc.input))
		})
	}
}

func TestSSNInvalidator(t *testing.T) {
	tests := []struct {
		input   string
		invalid bool
	}{
		{"536-90-4399", false},
		{"536 90 4399", false},
		{"536904399", false},
		{"536-90.4399", true},
		{"111-11-1111", true},
		{"536-00-4399", true},
		{"536-90-0000", true},
		{"000-12-3456", true},
		{"666-12-3456", true},
		{"123-45-6789", true},
		{"078-05-1120", true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.invalid, SSNInvalidator(tc.input))
		})
	}
}
