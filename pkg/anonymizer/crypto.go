package anonymizer

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/veilpii/veil/pkg/models"
)

var errBadCiphertext = errors.New("text is not a value produced by the encrypt operator")

func validateKey(op models.OperatorType, key string) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	case 0:
		return models.NewOperatorConfigError(string(op), "key is required")
	}
	return models.NewOperatorConfigError(string(op), "key must be of length 128, 192 or 256 bits")
}

// encryptOperator replaces the text with base64(iv || AES-CBC(PKCS#7(text))).
// A fresh IV is drawn for every value.
type encryptOperator struct{}

func (encryptOperator) Type() models.OperatorType { return models.OperatorEncrypt }

func (encryptOperator) Validate(cfg models.OperatorConfig) error {
	return validateKey(models.OperatorEncrypt, cfg.Key)
}

func (encryptOperator) Operate(text, _ string, cfg models.OperatorConfig) (string, error) {
	return encrypt([]byte(cfg.Key), text)
}

type decryptOperator struct{}

func (decryptOperator) Type() models.OperatorType { return models.OperatorDecrypt }

func (decryptOperator) Validate(cfg models.OperatorConfig) error {
	return validateKey(models.OperatorDecrypt, cfg.Key)
}

func (decryptOperator) Operate(text, _ string, cfg models.OperatorConfig) (string, error) {
	plain, err := decrypt([]byte(cfg.Key), text)
	if err != nil {
		return "", models.NewBadRequestError(fmt.Sprintf("failed to decrypt %q: %v", text, err))
	}
	return plain, nil
}

func encrypt(key []byte, text string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(text), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to read iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decrypt(key []byte, text string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", errBadCiphertext
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", errBadCiphertext
	}
	iv, data := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return "", errBadCiphertext
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
