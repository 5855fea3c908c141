package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps generator identities on the local filesystem:
//
//	<dir>/<name>/root.key          hex Ed25519 seed, 0600
//	<dir>/<name>/roles/<role>.key  seed derived with DeriveRoleSeed
//
// EXPERIMENTAL: see the package documentation.
type KeyStore struct {
	Directory string
}

// Identity lists a stored identity and the roles derived from it.
type Identity struct {
	Name      string
	PublicKey string
	Roles     []string
}

// DefaultDirectory is ~/.provchain/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".provchain", "keys"), nil
}

// OpenKeyStore uses directory, or DefaultDirectory when it is empty.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkToken(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

// CheckKeyName accepts [A-Za-z0-9_-]+.
func CheckKeyName(name string) error { return checkToken("key name", name) }

// CheckRole accepts [A-Za-z0-9_-]+.
func CheckRole(role string) error { return checkToken("role", role) }

// ParseSeedHex decodes a 32-byte seed, tolerating a 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// Create stores seed as the root key of name and returns its public key.
func (ks *KeyStore) Create(name string, seed []byte, overwrite bool) (publicKey string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	if err := writeSeed(ks.rootPath(name), seed, overwrite); err != nil {
		return "", err
	}
	return PublicKeyFromSeed(seed), nil
}

// DeriveRole stores the role key derived from name's root key.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (publicKey string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", err
	}
	if err := writeSeed(ks.rolePath(name, role), seed, overwrite); err != nil {
		return "", err
	}
	return PublicKeyFromSeed(seed), nil
}

// Seed loads the root seed of name, or the role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// Signer loads an Ed25519 signer for name (and optional role).
func (ks *KeyStore) Signer(name, role string) (*Ed25519Signer, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keys: no key %q (role %q) in %s", name, role, ks.Directory)
		}
		return nil, err
	}
	return NewEd25519Signer(seed)
}

// List returns stored identities sorted by name, roles sorted.
func (ks *KeyStore) List() ([]Identity, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []Identity
	for _, name := range names {
		id := Identity{Name: name}
		if seed, err := readSeed(ks.rootPath(name)); err == nil {
			id.PublicKey = PublicKeyFromSeed(seed)
		}
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if rerr == nil {
			for _, re := range roleEntries {
				if !re.IsDir() && strings.HasSuffix(re.Name(), ".key") {
					id.Roles = append(id.Roles, strings.TrimSuffix(re.Name(), ".key"))
				}
			}
			sort.Strings(id.Roles)
		}
		result = append(result, id)
	}
	return result, nil
}
