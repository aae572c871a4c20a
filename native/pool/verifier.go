package pool

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Action tags distinguish the signed approvals so an approval minted for one
// action can never be replayed for another. The tag is bound into the signed
// payload together with the caller, pool and the caller's current nonce.
const (
	ActionRegister   = "register"
	ActionUnregister = "unregister"
	ActionStart      = "start"
)

const signatureLength = 65

// ApprovalDigest returns the canonical Keccak256 digest the authority signs to
// pre-approve an action. The payload is a deterministic concatenation of the
// action tag, caller identity, pool id and the caller's current nonce.
func ApprovalDigest(action string, caller [20]byte, poolID, nonce uint64) []byte {
	payload := fmt.Sprintf("%s|caller=%s|pool=%d|nonce=%d",
		action,
		hex.EncodeToString(caller[:]),
		poolID,
		nonce,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// SignApproval produces a recoverable signature over the approval digest. Used
// by the authority service and by tests.
func SignApproval(key *ecdsa.PrivateKey, action string, caller [20]byte, poolID, nonce uint64) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("pool: nil signing key")
	}
	return ethcrypto.Sign(ApprovalDigest(action, caller, poolID, nonce), key)
}

// verifyApproval checks that the supplied signature recovers to the configured
// authority over the exact payload for the caller's current nonce. Callers are
// responsible for incrementing the nonce in the same operation once the action
// is committed.
func (e *Engine) verifyApproval(action string, caller [20]byte, poolID, nonce uint64, signature []byte) error {
	if e == nil || e.authority == ([20]byte{}) {
		return errNilAuthority
	}
	if len(signature) != signatureLength {
		return ErrSignatureInvalid
	}
	digest := ApprovalDigest(action, caller, poolID, nonce)
	pubKey, err := ethcrypto.SigToPub(digest, signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	signer := ethcrypto.PubkeyToAddress(*pubKey)
	if !bytes.Equal(signer.Bytes(), e.authority[:]) {
		return ErrUnauthorized
	}
	return nil
}
