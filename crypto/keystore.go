package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// keystoreVersion identifies the envelope layout, independent of the embedded
// web3 secret-storage version.
const keystoreVersion = 1

// keystoreFile wraps the encrypted key material with the bech32 account
// address, so operators can tell key files apart without decrypting them.
type keystoreFile struct {
	Address   string          `json:"address"`
	Version   int             `json:"version"`
	CreatedAt string          `json:"createdAt"`
	Key       json.RawMessage `json:"key"`
}

// SaveToKeystore encrypts the private key under the passphrase and writes the
// enveloped keystore file to path. Parent directories are created with 0700
// and the file is written atomically with 0600 permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("crypto: generate key id: %w", err)
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PrivateKey.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt key: %w", err)
	}
	envelope, err := json.MarshalIndent(keystoreFile{
		Address:   key.PubKey().Address().String(),
		Version:   keystoreVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Key:       encrypted,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(envelope); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts a keystore file written by SaveToKeystore. Plain
// web3 secret-storage files without the envelope load too, so keys imported
// from other tooling keep working.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	blob := raw
	enveloped := false
	envelope := keystoreFile{}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Key) > 0 {
		blob = envelope.Key
		enveloped = true
	}

	decrypted, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore: %w", err)
	}
	key := &PrivateKey{decrypted.PrivateKey}
	if enveloped && envelope.Address != "" {
		if derived := key.PubKey().Address().String(); envelope.Address != derived {
			return nil, fmt.Errorf("crypto: keystore address %s does not match key address %s", envelope.Address, derived)
		}
	}
	return key, nil
}
