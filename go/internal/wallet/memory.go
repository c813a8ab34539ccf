package wallet

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryRepository keeps wallets in process. Mutations on one account are
// serialized; different accounts proceed in parallel.
type MemoryRepository struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	wallets map[string]models.Wallet
	txs     map[string][]models.Transaction
	winners map[string][]models.Winner
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		locks:   make(map[string]*sync.Mutex),
		wallets: make(map[string]models.Wallet),
		txs:     make(map[string][]models.Transaction),
		winners: make(map[string][]models.Winner),
	}
}

var _ WalletRepository = (*MemoryRepository)(nil)

func (m *MemoryRepository) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	return l
}

func (m *MemoryRepository) Apply(ctx context.Context, accountID string, fn MutateFunc) (*models.Wallet, error) {
	l := m.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	w, ok := m.wallets[accountID]
	m.mu.Unlock()
	if !ok {
		w = models.Wallet{AccountID: accountID}
	}

	tx, err := fn(&w)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.wallets[accountID] = w
	m.txs[accountID] = append(m.txs[accountID], *tx)
	m.mu.Unlock()

	out := w
	return &out, nil
}

func (m *MemoryRepository) GetWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[accountID]
	if !ok {
		w = models.Wallet{AccountID: accountID}
	}
	return &w, nil
}

func (m *MemoryRepository) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.txs[accountID]
	out := make([]models.Transaction, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) InsertWinner(ctx context.Context, w models.Winner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.winners[w.AccountID] = append(m.winners[w.AccountID], w)
	return nil
}

func (m *MemoryRepository) CountWins(ctx context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.winners[accountID]), nil
}

func (m *MemoryRepository) CountDepositsAtLeast(ctx context.Context, accountID string, amount decimal.Decimal) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.txs[accountID] {
		if t.Type == models.TransactionTypeDeposit && t.Amount.GreaterThanOrEqual(amount) {
			n++
		}
	}
	return n, nil
}
