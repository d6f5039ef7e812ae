package types

import "math/big"

// Account holds the fungible balance tracked for a single address. Each engine
// instance is bound to exactly one fungible asset, so a single balance field is
// sufficient.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
