package recognizers

import (
	"crypto/sha256"
	"math/big"
	"net"
	"net/mail"
	"strings"
	"unicode"

	"github.com/veilpii/veil/pkg/models"
)

// sanitize strips the separators commonly used when writing numbers.
func sanitize(s string, cutset ...string) string {
	for _, c := range cutset {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func confirmIf(ok bool) models.ValidationResult {
	if ok {
		return models.Confirmed
	}
	return models.Rejected
}

// LuhnValidator confirms card numbers passing the Luhn checksum.
func LuhnValidator(matched string) models.ValidationResult {
	digits := sanitize(matched, "-", " ")
	if !allDigits(digits) {
		return models.Rejected
	}
	return confirmIf(luhn(digits))
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var ssnBadPrefixes = []string{"000", "666", "123456789", "98765432", "078051120"}

// SSNInvalidator rejects numbers the SSA never issues plus well known
// advertising samples.
func SSNInvalidator(matched string) bool {
	delimiters := map[rune]struct{}{}
	for _, r := range matched {
		if r == '-' || r == ' ' || r == '.' {
			delimiters[r] = struct{}{}
		}
	}
	if len(delimiters) > 1 {
		return true
	}

	digits := sanitize(matched, "-", " ", ".")
	if len(digits) != 9 || !allDigits(digits) {
		return true
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return true
	}
	if digits[3:5] == "00" || digits[5:] == "0000" {
		return true
	}
	for _, p := range ssnBadPrefixes {
		if strings.HasPrefix(digits, p) {
			return true
		}
	}
	return false
}

// IBANValidator runs the ISO 13616 mod-97 check.
func IBANValidator(matched string) models.ValidationResult {
	iban := strings.ToUpper(sanitize(matched, " ", "-"))
	if len(iban) < 15 || len(iban) > 34 {
		return models.Rejected
	}
	rearranged := iban[4:] + iban[:4]
	var sb strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteString(big.NewInt(int64(r-'A') + 10).String())
		default:
			return models.Rejected
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return models.Rejected
	}
	return confirmIf(new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1)
}

// IPValidator rejects strings the net package cannot parse.
func IPValidator(matched string) models.ValidationResult {
	if net.ParseIP(matched) == nil {
		return models.Rejected
	}
	return models.NoOpinion
}

// ABAValidator checks the 3-7-1 weighted routing number checksum.
func ABAValidator(matched string) models.ValidationResult {
	digits := sanitize(matched, "-", " ")
	if len(digits) != 9 || !allDigits(digits) {
		return models.Rejected
	}
	weights := [3]int{3, 7, 1}
	total := 0
	for i := 0; i < 9; i++ {
		total += int(digits[i]-'0') * weights[i%3]
	}
	return confirmIf(total%10 == 0)
}

// NHSValidator checks the modulus 11 NHS number check digit.
func NHSValidator(matched string) models.ValidationResult {
	digits := sanitize(matched, "-", " ")
	if len(digits) != 10 || !allDigits(digits) {
		return models.Rejected
	}
	total := 0
	for i, c := range digits {
		total += int(c-'0') * (10 - i)
	}
	return confirmIf(total%11 == 0)
}

// EmailValidator confirms addresses with a parseable local part and a domain
// ending in an alphabetic top level label.
func EmailValidator(matched string) models.ValidationResult {
	addr, err := mail.ParseAddress(matched)
	if err != nil {
		return models.Rejected
	}
	at := strings.LastIndexByte(addr.Address, '@')
	domain := addr.Address[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 {
		return models.Rejected
	}
	tld := domain[dot+1:]
	if len(tld) < 2 {
		return models.Rejected
	}
	for _, r := range tld {
		if !unicode.IsLetter(r) {
			return models.Rejected
		}
	}
	return models.Confirmed
}

// PhoneValidator rejects candidates whose digit count is outside E.164 bounds.
func PhoneValidator(matched string) models.ValidationResult {
	n := 0
	for _, r := range matched {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	if n < 7 || n > 15 {
		return models.Rejected
	}
	return models.NoOpinion
}

// CryptoValidator verifies bitcoin addresses: base58check for legacy and
// script hash addresses, bech32 for segwit ones.
func CryptoValidator(matched string) models.ValidationResult {
	if strings.HasPrefix(strings.ToLower(matched), "bc1") {
		return confirmIf(bech32Valid(matched))
	}
	return confirmIf(base58CheckValid(matched))
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func base58CheckValid(s string) bool {
	n := new(big.Int)
	radix := big.NewInt(58)
	for _, r := range s {
		idx := strings.IndexRune(base58Alphabet, r)
		if idx < 0 {
			return false
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}
	decoded := n.Bytes()
	for _, r := range s {
		if r != '1' {
			break
		}
		decoded = append([]byte{0}, decoded...)
	}
	if len(decoded) != 25 {
		return false
	}
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if second[i] != decoded[21+i] {
			return false
		}
	}
	return true
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func bech32Polymod(values []int) int {
	gen := [5]int{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := 1
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ v
		for i := 0; i < 5; i++ {
			if (top>>i)&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32Valid(s string) bool {
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return false
	}
	s = strings.ToLower(s)
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) {
		return false
	}
	hrp, data := s[:pos], s[pos+1:]
	values := make([]int, 0, len(hrp)*2+1+len(data))
	for _, c := range hrp {
		values = append(values, int(c)>>5)
	}
	values = append(values, 0)
	for _, c := range hrp {
		values = append(values, int(c)&31)
	}
	for _, c := range data {
		idx := strings.IndexRune(bech32Charset, c)
		if idx < 0 {
			return false
		}
		values = append(values, idx)
	}
	// bech32 uses constant 1, bech32m 0x2bc830a3
	pm := bech32Polymod(values)
	return pm == 1 || pm == 0x2bc830a3
}
