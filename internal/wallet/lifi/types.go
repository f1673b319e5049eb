package lifi

// TokenInfo describes a token as reported by the LiFi /token endpoint.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId"`
	Name     string `json:"name"`
	CoinKey  string `json:"coinKey"`
	PriceUSD string `json:"priceUSD,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// GasCost is a single entry of the quote's gas cost estimate.
type GasCost struct {
	Type     string `json:"type"`
	Price    string `json:"price"`
	Estimate string `json:"estimate"`
	Limit    string `json:"limit"`
}

// Estimate carries the exchange estimate of a quote.
type Estimate struct {
	FromAmount string    `json:"fromAmount"`
	ToAmount   string    `json:"toAmount"`
	GasCosts   []GasCost `json:"gasCosts"`
}

// TransactionRequest is the prepared call the quote asks the wallet to send.
type TransactionRequest struct {
	Data    string `json:"data"`
	To      string `json:"to"`
	Value   string `json:"value"`
	ChainID int64  `json:"chainId"`
}

// Quote is the response of the LiFi /quote endpoint, reduced to the
// fields the wallet consumes.
type Quote struct {
	ID                 string             `json:"id"`
	Type               string             `json:"type"`
	Tool               string             `json:"tool"`
	Estimate           Estimate           `json:"estimate"`
	TransactionRequest TransactionRequest `json:"transactionRequest"`
}

// QuoteParams describes a swap or bridge request.
type QuoteParams struct {
	FromChainID int64
	ToChainID   int64
	FromToken   TokenInfo
	ToToken     TokenInfo
	// Amount is a decimal amount of the input token in token units.
	Amount string
}

// Update reports swap execution progress.
type Update struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TxHash  string `json:"transaction_hash,omitempty"`
}
