package types

import "math/big"

// Account is the engine-side record for a single identity. Balance is the
// spendable value ledger and SignerNonce is the replay-protection counter
// consumed by signed pool actions.
type Account struct {
	SignerNonce uint64   `json:"signerNonce"`
	Balance     *big.Int `json:"balance"`
}

// EnsureAccount normalises a possibly-nil account into a usable zero record.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}
