package domain

// Snapshot is the full set of accounts and transactions at one point in time.
// Transactions are ordered most recent first.
type Snapshot struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Accounts:     make([]Account, len(s.Accounts)),
		Transactions: make([]Transaction, len(s.Transactions)),
	}
	copy(out.Accounts, s.Accounts)
	copy(out.Transactions, s.Transactions)
	return out
}

// FindAccount returns the account with the given id.
func (s Snapshot) FindAccount(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}
