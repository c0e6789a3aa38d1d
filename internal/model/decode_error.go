package model

// DecodeError records a block that failed to process during replay.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
	Address     string `json:"address,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error"`
}
