package ledger

// SeedBalance is a test helper that overwrites the committed balance of an
// account held by the in-memory store, without recording a transaction.
func SeedBalance(s Store, accountID int64, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acc, exists := mem.accounts[accountID]; exists {
			acc.Balance = amount
			mem.accounts[accountID] = acc
		}
	}
}
