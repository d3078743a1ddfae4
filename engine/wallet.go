package engine

import (
	"sync"
	"time"
)

// wallet is the client-local view of the backend wallet. It keeps the most
// recent parsed snapshot plus the raw serialized form, an advisory credit
// reservation sized from the client's concurrent requests target, and a
// running total of credits spent since the last refresh.
//
// The wallet never blocks a dispatch: balances are advisory on this side of
// the boundary and the backend settles the authoritative ledger.
type wallet struct {
	mu          sync.Mutex
	info        WalletInfo
	raw         string
	reserved    int64
	spent       int64
	refreshedAt time.Time
}

func newWallet(info WalletInfo, raw string) *wallet {
	return &wallet{info: info, raw: raw, refreshedAt: time.Now()}
}

// refresh replaces the snapshot with a freshly fetched wallet document and
// resets the locally accounted spend.
func (w *wallet) refresh(info WalletInfo, raw string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.info = info
	w.raw = raw
	w.spent = 0
	w.refreshedAt = time.Now()
}

// reserve records the advisory reservation for the client.
func (w *wallet) reserve(amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if amount < 0 {
		amount = 0
	}
	w.reserved = amount
}

// reservedAmount returns the advisory reservation.
func (w *wallet) reservedAmount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.reserved
}

// defaultCredits returns the per-request credit amount from the snapshot.
func (w *wallet) defaultCredits() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.info.DefaultCreditAmountPerRequest
}

// debit records credits spent by a completed dispatch against the local
// snapshot.
func (w *wallet) debit(amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if amount < 0 {
		return
	}
	w.spent += amount
}

// remaining estimates the spendable balance: the last fetched balance minus
// locally accounted spend.
func (w *wallet) remaining() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.info.Balance - w.spent
}

// snapshot returns the parsed snapshot and its raw serialized form.
func (w *wallet) snapshot() (WalletInfo, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.info, w.raw
}
