package txwatch

// RecordStats 汇总符合过滤条件的交易记录统计信息。
type RecordStats struct {
	Total           int64 `json:"total"`
	Pending         int64 `json:"pending"`
	Checking        int64 `json:"checking"`
	Confirmed       int64 `json:"confirmed"`
	Failed          int64 `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at"`
	NewestUpdatedAt int64 `json:"newest_updated_at"`
}
