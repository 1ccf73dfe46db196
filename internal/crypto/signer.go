package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Request authentication headers.
const (
	HeaderAddress   = "X-BetM3-Address"
	HeaderTimestamp = "X-BetM3-Timestamp"
	HeaderSignature = "X-BetM3-Signature"
)

// ErrBadSignature is returned when a signature is malformed or does not
// recover to the claimed address.
var ErrBadSignature = errors.New("crypto: bad signature")

// RequestMessage is the text a client signs for one HTTP request:
//
//	BetM3 request
//	<METHOD> <PATH>
//	<unix timestamp>
//	<keccak256(body) hex>
func RequestMessage(method, path string, timestamp int64, body []byte) string {
	return fmt.Sprintf("BetM3 request\n%s %s\n%d\n%s",
		strings.ToUpper(method), path, timestamp, hex.EncodeToString(ethcrypto.Keccak256(body)))
}

// textHash is the EIP-191 personal message digest:
//
//	keccak256("\x19Ethereum Signed Message:\n" || len(msg) || msg)
func textHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return ethcrypto.Keccak256([]byte(prefix), msg)
}

// Signer signs request messages with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{privateKey: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}, nil
}

// Address returns the Ethereum address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage returns the hex-encoded 65-byte personal signature of msg with
// v in {27, 28}.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(textHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RequestHeaders signs a request at now and returns the authentication
// headers to attach to it.
func (s *Signer) RequestHeaders(method, path string, body []byte, now time.Time) (map[string]string, error) {
	ts := now.Unix()
	sig, err := s.SignMessage([]byte(RequestMessage(method, path, ts, body)))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:   s.address.Hex(),
		HeaderTimestamp: strconv.FormatInt(ts, 10),
		HeaderSignature: sig,
	}, nil
}

// RecoverSigner returns the address that produced sigHex over msg.
func RecoverSigner(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, ErrBadSignature
	}

	pub, err := ethcrypto.SigToPub(textHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyRequest checks that sigHex over the request was produced by claimed.
func VerifyRequest(claimed common.Address, method, path string, timestamp int64, body []byte, sigHex string) error {
	got, err := RecoverSigner([]byte(RequestMessage(method, path, timestamp, body)), sigHex)
	if err != nil {
		return err
	}
	if got != claimed {
		return fmt.Errorf("%w: recovered %s, claimed %s", ErrBadSignature, got.Hex(), claimed.Hex())
	}
	return nil
}
