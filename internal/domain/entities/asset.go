package entities

// AssetDescriptor describes a supported (symbol, network) pair. Read-only;
// the catalog owns its lifecycle.
type AssetDescriptor struct {
	Symbol          string `json:"symbol"`
	Network         string `json:"network"`
	Decimals        int    `json:"decimals"`
	ContractAddress string `json:"contractAddress,omitempty"`
	Native          bool   `json:"native"`
	DisplayName     string `json:"displayName"`
}

// IsNative reports whether transfers use the chain's native value field
// rather than a token contract call
func (a *AssetDescriptor) IsNative() bool {
	return a.Native
}

// HasCatalogGap reports a token asset whose contract address is missing
// from the catalog; payment URIs for it degrade to a generic form.
func (a *AssetDescriptor) HasCatalogGap() bool {
	return !a.Native && a.ContractAddress == ""
}
