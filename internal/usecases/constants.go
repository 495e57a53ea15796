package usecases

import "time"

// Lifecycle timing
const (
	PaymentTimeout = 15 * time.Minute
	GracePeriod    = 5 * time.Minute
)

// Monitor scheduling
const (
	MonitorInterval = 30 * time.Second
	MonitorBackoff  = 5 * time.Second
)

// Simulated confirmation source defaults
const (
	SimulatedConfirmMinAge = 60 * time.Second
	SimulatedConfirmRate   = 0.8
)

// Wallet URI constants
const (
	// URIScheme is the wallet-openable scheme understood by MetaMask,
	// Trust Wallet and friends (EIP-681 shaped).
	URIScheme = "ethereum"

	// FixedGasHint is the gas hint carried on native-transfer URIs,
	// the cost of a plain value transfer.
	FixedGasHint = 21000
)

// QRImageSize is the rendered QR code edge length in pixels
const QRImageSize = 256
