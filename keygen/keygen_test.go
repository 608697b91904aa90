package keygen

import (
	"bytes"
	"testing"

	. "github.com/fulldump/biff"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	a, err := DeriveKey("secret", nil)
	AssertNil(err)
	b, err := DeriveKey("secret", nil)
	AssertNil(err)

	AssertEqual(len(a), KeyLength)
	AssertTrue(bytes.Equal(a, b))
}

func TestDeriveKey_DefaultSalt(t *testing.T) {
	salt := DefaultSalt
	implicit, _ := DeriveKey("secret", nil)
	explicit, _ := DeriveKey("secret", &salt)

	AssertTrue(bytes.Equal(implicit, explicit))
}

func TestDeriveKey_DifferentSalt(t *testing.T) {
	salt := "another-salt"
	a, _ := DeriveKey("secret", nil)
	b, err := DeriveKey("secret", &salt)

	AssertNil(err)
	AssertFalse(bytes.Equal(a, b))
}

func TestDeriveKey_Invalid(t *testing.T) {
	_, err := DeriveKey("", nil)
	AssertEqual(err, ErrKeyDerivationFailed)

	_, err = DeriveKey(string([]byte{0xff, 0xfe}), nil)
	AssertEqual(err, ErrKeyDerivationFailed)

	empty := ""
	_, err = DeriveKey("secret", &empty)
	AssertEqual(err, ErrKeyDerivationFailed)
}
