package domain

// AssetKind discriminates native-coin balances from token-denominated ones.
type AssetKind string

// Asset kind constants
const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// NativeMint is the mint value stored for native-coin balances.
// Holding accounts are keyed by (address, mint); the native coin has no mint.
const NativeMint = ""
