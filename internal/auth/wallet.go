package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyWalletSignature checks an EIP-191 personal_sign signature over
// message and confirms it recovers the claimed wallet address. Used by the
// direct API login to prove wallet ownership before issuing a JWT.
func VerifyWalletSignature(walletAddress, message, signatureHex string) error {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid signature length %d, want 65", len(sig))
	}

	// Wallets produce V as 27/28; crypto.SigToPub expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("signature recovery failed: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), walletAddress) {
		return fmt.Errorf("signature does not match wallet address")
	}
	return nil
}
