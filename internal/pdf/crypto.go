package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPasswordRequired is returned for encrypted input without a password.
var ErrPasswordRequired = errors.New("PDF is encrypted and no password was given")

// Credentials holds the passwords for an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"  yaml:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty" yaml:"owner_password,omitempty"`
}

// Empty reports whether no password is set.
func (c Credentials) Empty() bool {
	return c.UserPassword == "" && c.OwnerPassword == ""
}

func (c Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = c.UserPassword
	conf.OwnerPW = c.OwnerPassword
	return conf
}

// IsEncrypted reports whether filename cannot be read without a password.
func IsEncrypted(filename string) (bool, error) {
	_, err := api.PageCountFile(filename)
	if err == nil {
		return false, nil
	}
	if isEncryptionError(err) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
}

func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") ||
		strings.Contains(msg, "password") ||
		strings.Contains(msg, "decrypt")
}

// Decrypt returns a readable copy of filename. For unencrypted input that is
// filename itself; otherwise a temporary file removed by cleanup.
func Decrypt(filename string, creds Credentials) (path string, cleanup func(), err error) {
	noop := func() {}

	encrypted, err := IsEncrypted(filename)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return filename, noop, nil
	}
	if creds.Empty() {
		return "", noop, ErrPasswordRequired
	}

	tmp, err := os.CreateTemp("", "sticker-decrypted-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tmp.Close()
	cleanup = func() { _ = os.Remove(tmp.Name()) }

	if err := api.DecryptFile(filename, tmp.Name(), creds.configuration()); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
