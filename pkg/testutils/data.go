package testutils

// SampleText is one input used across package tests together with the
// spans a default English registry is expected to find in it.
type SampleText struct {
	Text     string
	Entities map[string]string // entity type -> matched text
}

var SampleTexts = []SampleText{
	{
		Text: "My credit card number is 4095-2609-9393-4932 and my phone is 212-555-5555",
		Entities: map[string]string{
			"CREDIT_CARD":  "4095-2609-9393-4932",
			"PHONE_NUMBER": "212-555-5555",
		},
	},
	{
		Text: "Please email ada@example.com about the refund",
		Entities: map[string]string{
			"EMAIL_ADDRESS": "ada@example.com",
		},
	},
	{
		Text: "The server at 192.168.0.1 went down",
		Entities: map[string]string{
			"IP_ADDRESS": "192.168.0.1",
		},
	},
	{
		Text:     "Nothing sensitive in this sentence",
		Entities: map[string]string{},
	},
}
