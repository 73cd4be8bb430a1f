// Package kcrypto recovers the signer of a statement, per spec.md §4.5 and
// §6: keccak256 over the canonical statement bytes, secp256k1 public-key
// recovery, and derivation of the signer's 120-bit subject value and 60-bit
// name. Grounded on AKJUS-bsc-erigon's dependency on secp256k1 recovery
// (the pack's only retrieved signature-recovery usage), implemented over
// github.com/decred/dcrd/dcrec/secp256k1/v4 combined with
// golang.org/x/crypto/sha3 for Ethereum-style keccak256. Key generation and
// storage are out of scope (spec.md §1); this package only verifies.
package kcrypto

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/HigherOrderCO/kindelia/internal/kname"
)

// Signature is a 65-byte compact secp256k1 signature: 64 bytes of (r, s)
// plus a 1-byte recovery id, the Ethereum wire convention spec.md §6
// describes as "hex_bytes" in the `run { ... sign { ... } }` grammar.
type Signature [65]byte

// Subject is a signer identity: the 120-bit value observed by the {SUBJ}
// effect, and its 60-bit truncation used as the name-space owner key.
type Subject struct {
	Bits *big.Int // 120-bit identity, what {SUBJ} reduces to
	Name kname.Name
}

// AnonSubject is the identity of unsigned statements, subject `0`.
func AnonSubject() Subject {
	return Subject{Bits: new(big.Int), Name: kname.Anon}
}

// SubjectOf widens a name back into a Subject, used when a {CALL} effect
// installs a callee function as the current subject.
func SubjectOf(n kname.Name) Subject {
	return Subject{Bits: new(big.Int).SetUint64(uint64(n)), Name: n}
}

// Keccak256 hashes data with Ethereum's Keccak-256 (not NIST SHA3-256),
// matching spec.md §6 "Ethereum-style keccak256".
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// RecoverSigner recovers the signer's Subject from a signature over
// msgHash, per spec.md §6 and the subject-recovery scenario in §8.
func RecoverSigner(sig Signature, msgHash []byte) (Subject, error) {
	if len(msgHash) != 32 {
		return Subject{}, errors.New("kcrypto: message hash must be 32 bytes")
	}

	// decred's ecdsa.RecoverCompact expects the recovery byte first,
	// followed by (r, s); the Ethereum wire convention used by spec.md §6
	// places it last, so reorder before calling into the library.
	compact := make([]byte, 65)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])

	pubKey, _, err := ecdsa.RecoverCompact(compact, msgHash)
	if err != nil {
		return Subject{}, errors.Wrap(err, "kcrypto: signature recovery failed")
	}

	return SubjectFromPubKey(pubKey), nil
}

// SubjectFromPubKey derives a signer identity from an uncompressed
// secp256k1 public key. The 120-bit subject value is the leading 15 bytes
// of the Ethereum-style account hash (keccak256 of the 64 coordinate
// bytes, skipping the 12-byte padding prefix); for the well-known test
// key 1 this yields 0x7e5f4552091a69125d5dfcb7b8c265. The 60-bit name is
// its further truncation into the name space.
func SubjectFromPubKey(pub *secp256k1.PublicKey) Subject {
	// Ethereum-style address derivation hashes the 64-byte uncompressed
	// coordinates (no leading 0x04 prefix byte).
	uncompressed := pub.SerializeUncompressed()[1:]
	digest := Keccak256(uncompressed)
	bits := new(big.Int).SetBytes(digest[12:27])
	var low uint64
	for _, b := range digest[19:27] {
		low = low<<8 | uint64(b)
	}
	return Subject{Bits: bits, Name: kname.FromUint64(low)}
}

// SignCompact produces a Signature over msgHash with the given private
// key. It exists for tests and local tooling; the production signing path
// lives with the (out of scope) key-management collaborator.
func SignCompact(priv *secp256k1.PrivateKey, msgHash []byte) Signature {
	compact := ecdsa.SignCompact(priv, msgHash, false)
	var sig Signature
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return sig
}
