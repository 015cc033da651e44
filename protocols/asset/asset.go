package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// ErrInvalidAsset is wrapped by every asset construction failure.
var ErrInvalidAsset = errors.New("invalid asset")

// Type is the XDR AssetType discriminant. The numeric values are part of the
// canonical ordering and the pool ID derivation; do not renumber.
type Type int32

const (
	TypeNative           Type = 0
	TypeCreditAlphanum4  Type = 1
	TypeCreditAlphanum12 Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeNative:
		return "native"
	case TypeCreditAlphanum4:
		return "credit_alphanum4"
	case TypeCreditAlphanum12:
		return "credit_alphanum12"
	default:
		return fmt.Sprintf("Type(%d)", int32(t))
	}
}

const nativeString = "native"

// Asset is either the native asset or an issued asset identified by code and
// issuer. The zero value is the native asset. Issued assets can only be built
// through NewIssued or Parse, so every Asset in circulation is valid.
type Asset struct {
	typ       Type
	code      string
	issuer    string
	issuerKey [32]byte
}

// Native returns the native asset (lumens).
func Native() Asset {
	return Asset{typ: TypeNative}
}

// NewIssued validates code and issuer and returns the issued asset.
// Codes of 1-4 characters are alphanum4, 5-12 are alphanum12.
func NewIssued(code, issuer string) (Asset, error) {
	typ, err := codeType(code)
	if err != nil {
		return Asset{}, err
	}
	raw, err := strkey.Decode(strkey.VersionByteAccountID, issuer)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: issuer %q: %v", ErrInvalidAsset, issuer, err)
	}
	a := Asset{typ: typ, code: code, issuer: issuer}
	copy(a.issuerKey[:], raw)
	return a, nil
}

// MustIssued is NewIssued for literals known to be valid.
func MustIssued(code, issuer string) Asset {
	a, err := NewIssued(code, issuer)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse accepts "native" (or "XLM") and "CODE:ISSUER".
func Parse(s string) (Asset, error) {
	if strings.EqualFold(s, nativeString) || s == "XLM" {
		return Native(), nil
	}
	code, issuer, ok := strings.Cut(s, ":")
	if !ok {
		return Asset{}, fmt.Errorf("%w: %q is not of the form CODE:ISSUER", ErrInvalidAsset, s)
	}
	return NewIssued(code, issuer)
}

func codeType(code string) (Type, error) {
	if len(code) == 0 || len(code) > 12 {
		return 0, fmt.Errorf("%w: code %q must be 1-12 characters", ErrInvalidAsset, code)
	}
	for _, r := range code {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return 0, fmt.Errorf("%w: code %q must be alphanumeric", ErrInvalidAsset, code)
		}
	}
	if len(code) <= 4 {
		return TypeCreditAlphanum4, nil
	}
	return TypeCreditAlphanum12, nil
}

func (a Asset) Type() Type { return a.typ }

func (a Asset) IsNative() bool { return a.typ == TypeNative }

// Issuer returns the issuing account, empty for the native asset.
func (a Asset) Issuer() string { return a.issuer }

// Code returns the asset code, "XLM" for the native asset.
func (a Asset) Code() string {
	if a.IsNative() {
		return "XLM"
	}
	return a.code
}

// String returns the Parse form.
func (a Asset) String() string {
	if a.IsNative() {
		return nativeString
	}
	return a.code + ":" + a.issuer
}

// Equal is structural equality over variant, code and issuer.
func (a Asset) Equal(b Asset) bool {
	return a.typ == b.typ && a.code == b.code && a.issuerKey == b.issuerKey
}

// Compare orders assets the way the network orders pool parameters: by type,
// then by code bytes, then by the issuer's raw public key. It returns -1, 0
// or +1.
func (a Asset) Compare(b Asset) int {
	switch {
	case a.typ < b.typ:
		return -1
	case a.typ > b.typ:
		return 1
	}
	if a.typ == TypeNative {
		return 0
	}
	// Codes are NUL padded on the wire and never contain NUL, so plain string
	// comparison matches the padded byte comparison.
	if c := strings.Compare(a.code, b.code); c != 0 {
		return c
	}
	return bytes.Compare(a.issuerKey[:], b.issuerKey[:])
}

// ToXDR returns the XDR Asset union.
func (a Asset) ToXDR() xdr.Asset {
	switch a.typ {
	case TypeNative:
		return xdr.MustNewNativeAsset()
	case TypeCreditAlphanum4, TypeCreditAlphanum12:
		var x xdr.Asset
		if err := x.SetCredit(a.code, accountID(a.issuerKey)); err != nil {
			panic(fmt.Sprintf("asset: %s: %v", a, err))
		}
		return x
	default:
		panic(fmt.Sprintf("asset: unknown type %d", a.typ))
	}
}

// FromXDR converts an XDR Asset union. Pool shares are rejected.
func FromXDR(x xdr.Asset) (Asset, error) {
	switch x.Type {
	case xdr.AssetTypeAssetTypeNative:
		return Native(), nil
	case xdr.AssetTypeAssetTypeCreditAlphanum4, xdr.AssetTypeAssetTypeCreditAlphanum12:
	default:
		return Asset{}, fmt.Errorf("%w: unsupported asset type %d", ErrInvalidAsset, x.Type)
	}
	issuer, err := x.GetIssuerAccountId()
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	address, err := issuer.GetAddress()
	if err != nil {
		return Asset{}, fmt.Errorf("%w: issuer: %v", ErrInvalidAsset, err)
	}
	a, err := NewIssued(strings.TrimRight(x.GetCode(), "\x00"), address)
	if err != nil {
		return Asset{}, err
	}
	if int32(a.typ) != int32(x.Type) {
		return Asset{}, fmt.Errorf("%w: code %q does not fit %s", ErrInvalidAsset, a.code, Type(x.Type))
	}
	return a, nil
}

func accountID(key [32]byte) xdr.AccountId {
	ed := xdr.Uint256(key)
	return xdr.AccountId{Type: xdr.PublicKeyTypePublicKeyTypeEd25519, Ed25519: &ed}
}

// MarshalJSON serializes the asset in its Parse form.
func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses the Parse form.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
