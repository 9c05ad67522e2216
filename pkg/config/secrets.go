package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// The secrets file is [salt][nonce][AES-256-GCM ciphertext+tag] of a JSON
// object mapping credential names to values, keyed with scrypt.
const (
	secretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	gcmTagSize      = 16
	scryptN         = 1 << 15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32
)

// Credentials unlocked for this process.
//
//nolint:gochecknoglobals // GetAPIKey consults them without threading a handle through every caller.
var (
	decryptedSecrets    map[string]string
	decryptedSecretsMux sync.RWMutex
)

// LoadSecrets decrypts the project's secrets file into memory. A missing file is not an error.
func LoadSecrets(projectDir, password string) error {
	if !SecretsFileExists(projectDir) {
		return nil
	}
	secrets, err := DecryptSecretsFile(projectDir, password)
	if err != nil {
		return err
	}
	SetDecryptedSecrets(secrets)
	return nil
}

// SetDecryptedSecrets replaces the unlocked credentials. nil clears them.
func SetDecryptedSecrets(secrets map[string]string) {
	decryptedSecretsMux.Lock()
	defer decryptedSecretsMux.Unlock()
	decryptedSecrets = secrets
}

// GetSecret returns the unlocked credential name, falling back to the
// environment variable of the same name.
func GetSecret(name string) (string, error) {
	decryptedSecretsMux.RLock()
	value := decryptedSecrets[name]
	decryptedSecretsMux.RUnlock()
	if value != "" {
		return value, nil
	}
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in secrets file or environment", name)
}

// SecretsFilePath returns the location of the encrypted secrets file.
func SecretsFilePath(projectDir string) string {
	return filepath.Join(projectDir, ProjectConfigDir, secretsFileName)
}

// SecretsFileExists reports whether projectDir has a secrets file.
func SecretsFileExists(projectDir string) bool {
	return fileExists(SecretsFilePath(projectDir))
}

// EncryptSecretsFile writes secrets to the project's secrets file with mode 0600,
// replacing any previous file.
func EncryptSecretsFile(projectDir, password string, secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	aead, err := secretsCipher(password, salt)
	if err != nil {
		return err
	}

	data := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcmTagSize)
	data = append(data, salt...)
	data = append(data, nonce...)
	data = aead.Seal(data, nonce, plaintext, nil)

	path := SecretsFilePath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", ProjectConfigDir, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile reads the project's secrets file. A file readable by
// others is reset to 0600 first.
func DecryptSecretsFile(projectDir, password string) (map[string]string, error) {
	path := SecretsFilePath(projectDir)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		LogInfo("secrets file has permissions %04o, resetting to 0600", perm)
		if err := os.Chmod(path, 0600); err != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(data) < saltSize+nonceSize+gcmTagSize {
		return nil, errors.New("secrets file is corrupted or invalid format (too small)")
	}

	salt, nonce, ciphertext := data[:saltSize], data[saltSize:saltSize+nonceSize], data[saltSize+nonceSize:]
	aead, err := secretsCipher(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed (wrong password or corrupted file)")
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	return secrets, nil
}

// secretsCipher derives the file key from password and salt. The derived key
// is wiped once the cipher holds its own expanded copy.
func secretsCipher(password string, salt []byte) (cipher.AEAD, error) {
	pw := []byte(password)
	defer wipe(pw)

	key, err := scrypt.Key(pw, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
