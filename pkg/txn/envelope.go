package txn

import (
	"errors"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
)

// Envelope is a signed transaction. Treat it as immutable once built.
type Envelope struct {
	Tx         Transaction
	Signatures []xdr.DecoratedSignature
}

// Sign hashes tx for the network and signs it with kp.
func (tx *Transaction) Sign(passphrase string, kp *keypair.Full) (*Envelope, error) {
	hash, err := tx.Hash(passphrase)
	if err != nil {
		return nil, err
	}
	sig, err := kp.SignDecorated(hash[:])
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Tx:         *tx,
		Signatures: []xdr.DecoratedSignature{sig},
	}, nil
}

// VerifySignatures checks that at least one signature exists and that every
// signature verifies against the source account.
func (env *Envelope) VerifySignatures(passphrase string) error {
	if len(env.Signatures) == 0 {
		return errors.New("envelope has no signatures")
	}
	hash, err := env.Tx.Hash(passphrase)
	if err != nil {
		return err
	}
	signer, err := keypair.ParseAddress(env.Tx.Source)
	if err != nil {
		return err
	}
	hint := signer.Hint()
	for i, sig := range env.Signatures {
		if [4]byte(sig.Hint) != hint {
			return fmt.Errorf("signature %d: hint does not match source account", i)
		}
		if err := signer.Verify(hash[:], sig.Signature); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return nil
}

// ToXDR converts the envelope to a v1 XDR TransactionEnvelope.
func (env *Envelope) ToXDR() (xdr.TransactionEnvelope, error) {
	if len(env.Signatures) > maxSignatures {
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: %d signatures", ErrMalformed, len(env.Signatures))
	}
	tx, err := env.Tx.ToXDR()
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	return xdr.NewTransactionEnvelope(xdr.EnvelopeTypeEnvelopeTypeTx, xdr.TransactionV1Envelope{
		Tx:         tx,
		Signatures: env.Signatures,
	})
}

// MarshalBinary returns the XDR TransactionEnvelope bytes.
func (env *Envelope) MarshalBinary() ([]byte, error) {
	x, err := env.ToXDR()
	if err != nil {
		return nil, err
	}
	return x.MarshalBinary()
}

// EncodeBase64 returns the base64 XDR form the RPC endpoint accepts.
func (env *Envelope) EncodeBase64() (string, error) {
	x, err := env.ToXDR()
	if err != nil {
		return "", err
	}
	return xdr.MarshalBase64(x)
}

// DecodeEnvelope parses a base64 XDR TransactionEnvelope. Only v1 envelopes
// with the operation types this package builds are supported.
func DecodeEnvelope(b64 string) (*Envelope, error) {
	var x xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(b64, &x); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v1, ok := x.GetV1()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported envelope type %s", ErrMalformed, x.Type)
	}
	tx, err := transactionFromXDR(v1.Tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Envelope{Tx: tx, Signatures: v1.Signatures}, nil
}
