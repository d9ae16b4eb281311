package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// SecretPrefix помечает зашифрованные значения в окружении: enc:<base64>
const SecretPrefix = "enc:"

// Encryptor шифрует и расшифровывает секреты конфигурации (AES-256-GCM)
type Encryptor struct {
	key []byte
}

// NewEncryptor создает Encryptor. Ключ любой длины приводится к 32 байтам через SHA-256.
func NewEncryptor(key string) *Encryptor {
	hash := sha256.Sum256([]byte(key))
	return &Encryptor{key: hash[:]}
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal шифрует значение и возвращает его с префиксом enc:
func (e *Encryptor) Seal(plaintext string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SecretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open возвращает значение как есть, если оно не зашифровано, иначе расшифровывает
func (e *Encryptor) Open(value string) (string, error) {
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SecretPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// OpenAll расшифровывает набор полей на месте. Пустые значения пропускаются.
func (e *Encryptor) OpenAll(fields map[string]*string) error {
	for name, field := range fields {
		if field == nil || *field == "" {
			continue
		}
		plain, err := e.Open(*field)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}
