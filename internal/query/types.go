package query

// Every response carries AsOfSequence: the projection watermark at
// query time, so callers can reason about freshness.

// ParamsResponse is the system parameter singleton for API queries.
type ParamsResponse struct {
	Admin          string `json:"admin"`
	CreditPrice    uint64 `json:"credit_price"`
	TokenPrice     uint64 `json:"token_price"`
	CollateralRate uint64 `json:"collateral_rate"`
	DedupRatio     uint64 `json:"dedup_ratio"`
	DedupDistRatio uint64 `json:"dedup_dist_ratio"`
	CreditCounter  int64  `json:"credit_counter"`
	UserCount      uint64 `json:"user_count"`
	MinerCount     uint64 `json:"miner_count"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

// AccountResponse represents a user account for API queries.
type AccountResponse struct {
	Name            string `json:"name"`
	RentBalance     int64  `json:"rent_balance"`
	FeeRate         int64  `json:"fee_rate"`
	UsedSpace       uint64 `json:"used_space"`
	RentSettledAt   uint64 `json:"rent_settled_at"`
	ProfitBalance   int64  `json:"profit_balance"`
	ProfitRate      int64  `json:"profit_rate"`
	ProducedSpace   uint64 `json:"produced_space"`
	ProfitSettledAt uint64 `json:"profit_settled_at"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// DepositResponse represents a depositor's collateral record.
type DepositResponse struct {
	Owner        string `json:"owner"`
	Total        int64  `json:"total"`
	Used         int64  `json:"used"`
	Free         int64  `json:"free"`
	Historical   int64  `json:"historical"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// MinerResponse represents a miner for API queries. Owner and Pool are
// null until the miner is assigned.
type MinerResponse struct {
	ID               uint64  `json:"id"`
	Admin            string  `json:"admin"`
	Depositor        string  `json:"depositor"`
	Owner            *string `json:"owner,omitempty"`
	Pool             *string `json:"pool,omitempty"`
	Deposit          int64   `json:"deposit"`
	DepositTotal     int64   `json:"deposit_total"`
	MaxSpace         uint64  `json:"max_space"`
	ProdSpace        uint64  `json:"prod_space"`
	CycleProfit      int64   `json:"cycle_profit"`
	CumulativeProfit int64   `json:"cumulative_profit"`
	ProfitSettledAt  uint64  `json:"profit_settled_at"`
	AsOfSequence     int64   `json:"as_of_sequence"`
}

// PoolResponse represents a storage pool for API queries.
type PoolResponse struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	MaxSpace     uint64 `json:"max_space"`
	ProdSpace    uint64 `json:"prod_space"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// BalanceResponse represents one account's holding of one symbol.
type BalanceResponse struct {
	Account      string `json:"account"`
	Symbol       string `json:"symbol"`
	Amount       int64  `json:"amount"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// TokenStatsResponse represents a token's issuance state.
type TokenStatsResponse struct {
	Symbol       string `json:"symbol"`
	Issuer       string `json:"issuer"`
	Supply       int64  `json:"supply"`
	MaxSupply    int64  `json:"max_supply"`
	ExchangeTime uint64 `json:"exchange_time"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// ActionHistoryEntry represents one applied action from the log.
type ActionHistoryEntry struct {
	Sequence       int64  `json:"sequence"`
	Kind           string `json:"kind"`
	Caller         string `json:"caller"`
	SourceSequence int64  `json:"source_sequence"`
	Timestamp      int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	NegativeBalances []NegativeBalance `json:"negative_balances,omitempty"`
	SupplyMismatches []SupplyMismatch  `json:"supply_mismatches,omitempty"`
}

// NegativeBalance is a projected balance below zero.
type NegativeBalance struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Amount  int64  `json:"amount"`
}

// SupplyMismatch is a symbol whose projected balances do not sum to its
// recorded supply.
type SupplyMismatch struct {
	Symbol     string `json:"symbol"`
	Supply     int64  `json:"supply"`
	BalanceSum int64  `json:"balance_sum"`
}
