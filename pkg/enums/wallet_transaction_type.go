package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type_enum enum in Postgres.
// Every posting against a wallet carries one of these kinds so the audit trail
// explains why a balance moved.
type WalletTransactionType string

const (
	WalletTransactionOrderRelease    WalletTransactionType = "order_release"
	WalletTransactionPayoutRequested WalletTransactionType = "payout_requested"
	WalletTransactionPayoutRejected  WalletTransactionType = "payout_rejected"
	WalletTransactionDisputeRefund   WalletTransactionType = "dispute_refund"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionOrderRelease,
	WalletTransactionPayoutRequested,
	WalletTransactionPayoutRejected,
	WalletTransactionDisputeRefund,
}

// IsValid reports whether the value matches the canonical enum.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
