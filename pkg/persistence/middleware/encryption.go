package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

const (
	envelopeRoot      = "encrypted"
	envelopeComponent = "Encrypted"
	envelopeKey       = "__encrypted__"
)

// ErrNotEncrypted is returned when a stored document carries no envelope.
var ErrNotEncrypted = errors.New("document is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.DocumentStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts document trees
// with AES-GCM. The id, version and timestamp stay readable so listing and
// version checks work on the envelope; the document id is bound to the
// ciphertext as additional data, so an envelope copied under another id does
// not decrypt.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, doc *domain.Document) error {
	plainText, err := json.Marshal(doc.Tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(doc.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt tree: %w", err)
	}

	envelope := &domain.Document{
		ID:        doc.ID,
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
		Tree: domain.SerializedTree{
			Root: envelopeRoot,
			Instances: map[string]domain.SerializedInstance{
				envelopeRoot: {
					ID:        envelopeRoot,
					Component: envelopeComponent,
					Children:  []domain.SerializedChild{},
					Props:     map[string]any{envelopeKey: base64.StdEncoding.EncodeToString(ciphertext)},
				},
			},
		},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Document, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fail closed: a plain document under an encrypting store is an error.
	inst, ok := envelope.Tree.Instances[envelopeRoot]
	if !ok || envelope.Tree.Root != envelopeRoot {
		return nil, fmt.Errorf("%w: %q", ErrNotEncrypted, id)
	}
	encoded, ok := inst.Props[envelopeKey].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotEncrypted, id)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, []byte(envelope.ID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt document %q: %w", id, err)
	}

	var tree domain.SerializedTree
	if err := json.Unmarshal(plainText, &tree); err != nil {
		return nil, fmt.Errorf("%w: decrypted tree: %w", domain.ErrMalformedTree, err)
	}

	return &domain.Document{
		ID:        envelope.ID,
		Version:   envelope.Version,
		UpdatedAt: envelope.UpdatedAt,
		Tree:      tree,
	}, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, aad); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, aad); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
