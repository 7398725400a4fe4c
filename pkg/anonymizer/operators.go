package anonymizer

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"dario.cat/mergo"
	"github.com/brianvoe/gofakeit/v6"

	"github.com/veilpii/veil/pkg/models"
)

const (
	DefaultMaskingChar = "*"
	DefaultHashType    = "sha256"
)

// Operator turns the text of one entity into its anonymized form.
type Operator interface {
	Type() models.OperatorType
	// Validate checks cfg before any text is changed.
	Validate(cfg models.OperatorConfig) error
	Operate(text, entityType string, cfg models.OperatorConfig) (string, error)
}

// withDefaults fills unset operator parameters. An unset type becomes
// fallback.
func withDefaults(cfg models.OperatorConfig, fallback models.OperatorType) (models.OperatorConfig, error) {
	defaults := models.OperatorConfig{
		Type:        fallback,
		MaskingChar: DefaultMaskingChar,
		HashType:    DefaultHashType,
	}
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return cfg, fmt.Errorf("failed to apply operator defaults: %w", err)
	}
	return cfg, nil
}

type replaceOperator struct{}

func (replaceOperator) Type() models.OperatorType { return models.OperatorReplace }

func (replaceOperator) Validate(models.OperatorConfig) error { return nil }

func (replaceOperator) Operate(_, entityType string, cfg models.OperatorConfig) (string, error) {
	if cfg.NewValue != "" {
		return cfg.NewValue, nil
	}
	return "<" + entityType + ">", nil
}

type redactOperator struct{}

func (redactOperator) Type() models.OperatorType { return models.OperatorRedact }

func (redactOperator) Validate(models.OperatorConfig) error { return nil }

func (redactOperator) Operate(string, string, models.OperatorConfig) (string, error) { return "", nil }

type keepOperator struct{}

func (keepOperator) Type() models.OperatorType { return models.OperatorKeep }

func (keepOperator) Validate(models.OperatorConfig) error { return nil }

func (keepOperator) Operate(text, _ string, _ models.OperatorConfig) (string, error) { return text, nil }

// maskOperator replaces CharsToMask characters with MaskingChar, from the
// start or the end. Zero masks every character.
type maskOperator struct{}

func (maskOperator) Type() models.OperatorType { return models.OperatorMask }

func (maskOperator) Validate(cfg models.OperatorConfig) error {
	if utf8.RuneCountInString(cfg.MaskingChar) != 1 {
		return models.NewOperatorConfigError(string(models.OperatorMask), "masking_char must be a single character")
	}
	if cfg.CharsToMask < 0 {
		return models.NewOperatorConfigError(string(models.OperatorMask), "chars_to_mask must not be negative")
	}
	return nil
}

func (maskOperator) Operate(text, _ string, cfg models.OperatorConfig) (string, error) {
	runes := []rune(text)
	n := len(runes)
	if cfg.CharsToMask > 0 && cfg.CharsToMask < n {
		n = cfg.CharsToMask
	}
	mask := []rune(cfg.MaskingChar)[0]
	from := 0
	if cfg.FromEnd {
		from = len(runes) - n
	}
	for i := from; i < from+n; i++ {
		runes[i] = mask
	}
	return string(runes), nil
}

type hashOperator struct{}

func (hashOperator) Type() models.OperatorType { return models.OperatorHash }

func (hashOperator) Validate(cfg models.OperatorConfig) error {
	if newHash(cfg.HashType) == nil {
		return models.NewOperatorConfigError(
			string(models.OperatorHash),
			fmt.Sprintf("hash_type must be sha256 or sha512, got %q", cfg.HashType),
		)
	}
	return nil
}

func (hashOperator) Operate(text, _ string, cfg models.OperatorConfig) (string, error) {
	h := newHash(cfg.HashType)
	h.Write([]byte(cfg.Salt))
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(name string) hash.Hash {
	switch strings.ToLower(name) {
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	}
	return nil
}

// fakeOperator substitutes a realistic value of the same kind. The value is
// derived from the seed, entity type and original text, so one input always
// maps to the same fake.
type fakeOperator struct{}

func (fakeOperator) Type() models.OperatorType { return models.OperatorFake }

func (fakeOperator) Validate(models.OperatorConfig) error { return nil }

func (fakeOperator) Operate(text, entityType string, cfg models.OperatorConfig) (string, error) {
	return fakeValue(text, entityType, cfg.Seed), nil
}

func fakeValue(text, entityType string, seed int64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d\x00%s\x00%s", seed, entityType, text)
	f := gofakeit.New(int64(h.Sum64() >> 1))

	switch entityType {
	case "PERSON":
		return f.Name()
	case "EMAIL_ADDRESS":
		return f.Email()
	case "PHONE_NUMBER":
		return f.Phone()
	case "CREDIT_CARD":
		return f.CreditCardNumber(nil)
	case "US_SSN":
		return f.SSN()
	case "LOCATION":
		return f.City()
	case "ORGANIZATION":
		return f.Company()
	case "IP_ADDRESS":
		return f.IPv4Address()
	case "URL":
		return f.URL()
	case "DATE_TIME":
		return f.Date().Format("2006-01-02")
	case "US_BANK_NUMBER":
		return f.AchAccount()
	case "ABA_ROUTING_NUMBER":
		return f.AchRouting()
	case "CRYPTO":
		return f.BitcoinAddress()
	case "IBAN_CODE", "US_PASSPORT", "US_ITIN", "UK_NHS":
		return f.Numerify(strings.Repeat("#", max(utf8.RuneCountInString(text), 6)))
	}
	return "<" + entityType + ">"
}

func builtinOperators() []Operator {
	return []Operator{
		replaceOperator{},
		redactOperator{},
		maskOperator{},
		hashOperator{},
		keepOperator{},
		fakeOperator{},
		encryptOperator{},
	}
}

func builtinDeanonymizers() []Operator {
	return []Operator{
		decryptOperator{},
		keepOperator{},
	}
}
