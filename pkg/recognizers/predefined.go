package recognizers

import (
	"fmt"
	"sort"

	"github.com/dlclark/regexp2"

	"github.com/veilpii/veil/pkg/models"
)

// Factory builds a recognizer for a language.
type Factory func(language string) (models.Recognizer, error)

type predefined struct {
	name        string
	entity      string
	patterns    []models.Pattern
	context     []string
	validator   Validator
	invalidator Invalidator
	// zero means DefaultRegexOptions
	options regexp2.RegexOptions
}

func (p predefined) factory() Factory {
	return func(language string) (models.Recognizer, error) {
		return NewPatternRecognizer(PatternRecognizerConfig{
			Descriptor: models.RecognizerDescriptor{
				Name:              p.name,
				SupportedEntities: []string{p.entity},
				SupportedLanguage: language,
				Context:           p.context,
			},
			Patterns:     p.patterns,
			Validator:    p.validator,
			Invalidator:  p.invalidator,
			RegexOptions: p.options,
		})
	}
}

const emailChars = "!#$%&'*+\\-/=?^_`{|}~\\w"

var ipv4Octet = `(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`

// predefinedRecognizers is in registration order, which is also the
// tie-break order for identical matches.
var predefinedRecognizers = []struct {
	key string
	def predefined
}{
	{"credit_card", predefined{
		name:   "CreditCardRecognizer",
		entity: "CREDIT_CARD",
		patterns: []models.Pattern{{
			Name:  "All Credit Cards (weak)",
			Regex: `\b(?!1\d{12}(?!\d))((4\d{3})|(5[0-5]\d{2})|(6\d{3})|(1\d{3})|(3\d{3}))[- ]?(\d{3,4})[- ]?(\d{3,4})[- ]?(\d{3,5})\b`,
			Score: 0.3,
		}},
		context: []string{
			"credit", "card", "visa", "mastercard", "cc", "amex", "discover", "jcb",
			"diners", "maestro", "instapayment",
		},
		validator: LuhnValidator,
	}},
	{"us_ssn", predefined{
		name:   "UsSsnRecognizer",
		entity: "US_SSN",
		patterns: []models.Pattern{
			{Name: "SSN1 (very weak)", Regex: `\b([0-9]{5})-([0-9]{4})\b`, Score: 0.05},
			{Name: "SSN2 (very weak)", Regex: `\b([0-9]{3})-([0-9]{6})\b`, Score: 0.05},
			{Name: "SSN3 (very weak)", Regex: `\b(([0-9]{3})-([0-9]{2})-([0-9]{4}))\b`, Score: 0.05},
			{Name: "SSN4 (very weak)", Regex: `\b[0-9]{9}\b`, Score: 0.05},
			{Name: "SSN5 (medium)", Regex: `\b([0-9]{3})[- .]([0-9]{2})[- .]([0-9]{4})\b`, Score: 0.5},
		},
		context:     []string{"social", "security", "ssn", "ssns", "ssn#", "ss#", "ssid"},
		invalidator: SSNInvalidator,
	}},
	{"email", predefined{
		name:   "EmailRecognizer",
		entity: "EMAIL_ADDRESS",
		patterns: []models.Pattern{{
			Name: "Email (Medium)",
			Regex: `\b(([` + emailChars + `])|([` + emailChars + `][` + emailChars + `.]*[` + emailChars + `]))` +
				`@\w+([-.]\w+)*\.\w+([-.]\w+)*\b`,
			Score: 0.5,
		}},
		context:   []string{"email"},
		validator: EmailValidator,
	}},
	{"phone", predefined{
		name:   "PhoneRecognizer",
		entity: "PHONE_NUMBER",
		patterns: []models.Pattern{
			{
				Name:  "North American",
				Regex: `(?<![\w+])(?:\+?1[-.\s]?)?(?:\(\d{3}\)\s?|\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`,
				Score: 0.4,
			},
			{
				Name:  "International",
				Regex: `(?<![\w+])\+\d{1,3}[-.\s]?\(?\d{1,4}\)?(?:[-.\s]?\d{2,4}){2,4}\b`,
				Score: 0.4,
			},
		},
		context:   []string{"phone", "number", "telephone", "cell", "cellphone", "mobile", "call"},
		validator: PhoneValidator,
	}},
	{"iban", predefined{
		name:   "IbanRecognizer",
		entity: "IBAN_CODE",
		patterns: []models.Pattern{{
			Name:  "IBAN Generic",
			Regex: `\b([A-Z]{2}[ \-]?[0-9]{2})(?=(?:[ \-]?[A-Z0-9]){9,30})((?:[ \-]?[A-Z0-9]{3,5}){2,7})([ \-]?[A-Z0-9]{1,3})?\b`,
			Score: 0.5,
		}},
		context:   []string{"iban", "bank", "transaction"},
		validator: IBANValidator,
		// case sensitive, or the tail group takes the next word
		options: regexp2.Multiline | regexp2.Singleline,
	}},
	{"ip", predefined{
		name:   "IpRecognizer",
		entity: "IP_ADDRESS",
		patterns: []models.Pattern{
			{
				Name:  "IPv4",
				Regex: `\b(?:` + ipv4Octet + `\.){3}` + ipv4Octet + `\b`,
				Score: 0.6,
			},
			{
				Name:  "IPv6",
				Regex: `(?<![\w:])(?:[0-9a-f]{1,4}:){7}[0-9a-f]{1,4}(?![\w:])`,
				Score: 0.6,
			},
			{
				Name:  "IPv6 compressed",
				Regex: `(?<![\w:])(?:[0-9a-f]{1,4}:){1,7}:(?:[0-9a-f]{1,4}(?::[0-9a-f]{1,4}){0,6})?(?![\w:])`,
				Score: 0.6,
			},
		},
		context:   []string{"ip", "ipv4", "ipv6"},
		validator: IPValidator,
	}},
	{"url", predefined{
		name:   "UrlRecognizer",
		entity: "URL",
		patterns: []models.Pattern{
			{Name: "Standard Url", Regex: `https?://[^\s()<>"']+`, Score: 0.6},
			{
				Name: "Non schema URL",
				Regex: `\b(?:www\d{0,3}\.)?[a-z0-9.\-]+\.(?:com|org|net|edu|gov|mil|int|io|co|uk|de|fr|nl|eu|info|biz|us|ca|au|dev|app)` +
					`\b(?:/[^\s()<>"']*)?`,
				Score: 0.5,
			},
		},
		context: []string{"url", "website", "link"},
	}},
	{"us_passport", predefined{
		name:   "UsPassportRecognizer",
		entity: "US_PASSPORT",
		patterns: []models.Pattern{
			{Name: "Passport (very weak)", Regex: `\b[0-9]{9}\b`, Score: 0.05},
			{Name: "Passport Next Generation (very weak)", Regex: `\b[A-Z][0-9]{8}\b`, Score: 0.1},
		},
		context: []string{"us", "united", "states", "passport", "passport#", "travel", "document"},
	}},
	{"us_bank_number", predefined{
		name:   "UsBankRecognizer",
		entity: "US_BANK_NUMBER",
		patterns: []models.Pattern{
			{Name: "Bank Account (weak)", Regex: `\b[0-9]{8,17}\b`, Score: 0.05},
		},
		context: []string{"bank", "check", "account", "account#", "acct", "save", "debit"},
	}},
	{"aba_routing", predefined{
		name:   "AbaRoutingRecognizer",
		entity: "ABA_ROUTING_NUMBER",
		patterns: []models.Pattern{{
			Name:  "ABA routing number (medium)",
			Regex: `\b(0[1-9]|1[0-2]|2[1-9]|3[0-2]|6[1-9]|7[0-2]|80)\d{2}[- ]?\d{4}[- ]?\d\b`,
			Score: 0.3,
		}},
		context: []string{
			"aba", "aba number", "aba#", "abarouting#", "routing number", "routing no",
			"routing#", "routing transit number", "bank routing", "rtn",
		},
		validator: ABAValidator,
	}},
	{"uk_nhs", predefined{
		name:   "NhsRecognizer",
		entity: "UK_NHS",
		patterns: []models.Pattern{
			{Name: "NHS (medium)", Regex: `\b([0-9]{3})[- ]?([0-9]{3})[- ]?([0-9]{4})\b`, Score: 0.5},
		},
		context: []string{
			"national health service", "nhs", "health services authority", "health authority",
		},
		validator: NHSValidator,
	}},
	{"us_itin", predefined{
		name:   "UsItinRecognizer",
		entity: "US_ITIN",
		patterns: []models.Pattern{
			{
				Name:  "Itin (very weak)",
				Regex: `\b9\d{2}[- ](5\d|6[0-5]|7\d|8[0-8]|9([0-2]|[4-9]))\d{4}\b|\b9\d{2}(5\d|6[0-5]|7\d|8[0-8]|9([0-2]|[4-9]))[- ]\d{4}\b`,
				Score: 0.05,
			},
			{
				Name:  "Itin (weak)",
				Regex: `\b9\d{2}(5\d|6[0-5]|7\d|8[0-8]|9([0-2]|[4-9]))\d{4}\b`,
				Score: 0.3,
			},
			{
				Name:  "Itin (medium)",
				Regex: `\b9\d{2}[- ](5\d|6[0-5]|7\d|8[0-8]|9([0-2]|[4-9]))[- ]\d{4}\b`,
				Score: 0.5,
			},
		},
		context: []string{"individual", "taxpayer", "itin", "tax", "payer", "taxid", "tin"},
	}},
	{"date_time", predefined{
		name:   "DateRecognizer",
		entity: "DATE_TIME",
		patterns: []models.Pattern{
			{
				Name:  "ISO 8601 datetime",
				Regex: `\b\d{4}-[01]\d-[0-3]\dT[0-2]\d:[0-5]\d(?::[0-5]\d(?:\.\d+)?)?(?:[+-][0-2]\d:[0-5]\d|Z)`,
				Score: 0.8,
			},
			{
				Name:  "mm/dd/yyyy or mm/dd/yy",
				Regex: `\b(([1-9]|0[1-9]|1[0-2])/([1-9]|0[1-9]|[1-2][0-9]|3[0-1])/(\d{4}|\d{2}))\b`,
				Score: 0.6,
			},
			{
				Name:  "dd/mm/yyyy or dd/mm/yy",
				Regex: `\b(([1-9]|0[1-9]|[1-2][0-9]|3[0-1])/([1-9]|0[1-9]|1[0-2])/(\d{4}|\d{2}))\b`,
				Score: 0.6,
			},
			{
				Name:  "yyyy/mm/dd",
				Regex: `\b(\d{4}/([1-9]|0[1-9]|1[0-2])/([1-9]|0[1-9]|[1-2][0-9]|3[0-1]))\b`,
				Score: 0.6,
			},
			{
				Name:  "yyyy-mm-dd",
				Regex: `\b(\d{4}-([1-9]|0[1-9]|1[0-2])-([1-9]|0[1-9]|[1-2][0-9]|3[0-1]))\b`,
				Score: 0.6,
			},
			{
				Name:  "dd.mm.yyyy or dd.mm.yy",
				Regex: `\b(([1-9]|0[1-9]|[1-2][0-9]|3[0-1])\.([1-9]|0[1-9]|1[0-2])\.(\d{4}|\d{2}))\b`,
				Score: 0.6,
			},
			{
				Name:  "dd-MMM-yyyy or dd-MMM-yy",
				Regex: `\b(([1-9]|0[1-9]|[1-2][0-9]|3[0-1])-(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)-(\d{4}|\d{2}))\b`,
				Score: 0.6,
			},
			{
				Name:  "mm/yyyy or m/yyyy",
				Regex: `\b(([1-9]|0[1-9]|1[0-2])/\d{4})\b`,
				Score: 0.2,
			},
		},
		context: []string{"date", "birthday"},
	}},
	{"crypto", predefined{
		name:   "CryptoRecognizer",
		entity: "CRYPTO",
		patterns: []models.Pattern{
			{Name: "Crypto (Medium)", Regex: `\b(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,59}\b`, Score: 0.5},
		},
		context:   []string{"wallet", "btc", "bitcoin", "crypto"},
		validator: CryptoValidator,
	}},
}

// Predefined maps a stable key to its recognizer factory.
var Predefined = func() map[string]Factory {
	m := make(map[string]Factory, len(predefinedRecognizers))
	for _, p := range predefinedRecognizers {
		m[p.key] = p.def.factory()
	}
	return m
}()

// PredefinedKeys returns every predefined key in registration order.
func PredefinedKeys() []string {
	keys := make([]string, len(predefinedRecognizers))
	for i, p := range predefinedRecognizers {
		keys[i] = p.key
	}
	return keys
}

// NewPredefined builds the recognizer registered under key.
func NewPredefined(key, language string) (models.Recognizer, error) {
	f, ok := Predefined[key]
	if !ok {
		known := PredefinedKeys()
		sort.Strings(known)
		return nil, models.NewRecognizerConfigError(key, fmt.Sprintf("unknown predefined recognizer, known: %v", known))
	}
	return f(language)
}
