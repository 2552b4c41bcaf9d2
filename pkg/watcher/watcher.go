package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"tokendash/pkg/history"
	"tokendash/pkg/logger"
	"tokendash/pkg/models"
	"tokendash/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MaxBalancePoints bounds the session-local balance history.
const MaxBalancePoints = 500

// DefaultConfirmTimeout is how long a submitted write may wait for its
// receipt before the write slot is released.
const DefaultConfirmTimeout = 5 * time.Minute

// DataSource defines the interface for reading and writing the token.
// *rpc.Client satisfies it.
type DataSource interface {
	TokenMetadata(ctx context.Context) (models.TokenMetadata, error)
	BalanceOf(ctx context.Context, account string) (*big.Int, error)
	TransferLogs(ctx context.Context, fromBlock uint64, toBlock *big.Int) ([]models.TransferEvent, error)
	WatchTransfers(ctx context.Context, interval time.Duration, handler func([]models.TransferEvent)) error
	Transfer(ctx context.Context, signer *wallet.Signer, recipient string, raw *big.Int) (common.Hash, error)
	Mint(ctx context.Context, signer *wallet.Signer) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Session is the wallet state the watcher follows.
type Session interface {
	Account() (string, bool)
	Signer() *wallet.Signer
	OnChange(fn func(account string)) (unsubscribe func())
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the live subscription poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithConfirmTimeout bounds the wait for a write's receipt.
func WithConfirmTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.confirmTimeout = d
		}
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// Watcher owns the dashboard state: token metadata, the active account's
// balance and its transaction history. It keeps the history consistent with
// one backfill per account/decimals change plus a live stream of transfers.
type Watcher struct {
	dataSource     DataSource
	session        Session
	store          *history.Store
	pollInterval   time.Duration
	confirmTimeout time.Duration
	now            func() time.Time

	mu             sync.RWMutex
	account        string
	meta           models.TokenMetadata
	metaResolved   bool
	balance        *big.Int
	balanceHistory []models.BalancePoint
	write          models.WriteStatus
	draft          models.Draft
	lastUpdate     time.Time

	// backfillSeq is the last issued backfill, appliedSeq the last one whose
	// result reached the store.
	backfillSeq uint64
	appliedSeq  uint64
	liveGen     uint64

	ctx         context.Context
	cancel      context.CancelFunc
	stopped     bool
	unsubscribe func()
	wg          sync.WaitGroup

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(ds DataSource, session Session, opts ...Option) *Watcher {
	w := &Watcher{
		dataSource:     ds,
		session:        session,
		store:          history.NewStore(),
		pollInterval:   time.Second,
		confirmTimeout: DefaultConfirmTimeout,
		now:            time.Now,
		meta:           models.TokenMetadata{Decimals: models.DefaultDecimals},
		ctx:            context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscribers miss intermediate events; Snapshot is authoritative.
		}
	}
}

// Start follows the session, resolves token metadata and begins the live
// transfer subscription. It returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.ctx = ctx
	w.cancel = cancel
	w.mu.Unlock()

	w.unsubscribe = w.session.OnChange(w.onAccountChanged)
	if account, ok := w.session.Account(); ok {
		w.mu.Lock()
		w.account = account
		w.mu.Unlock()
	}

	w.spawn(func(ctx context.Context) {
		_ = w.resolveMetadata(ctx)
		w.refreshBalance(ctx)
	})
	w.spawn(w.runLive)
}

// Stop cancels the live subscription and any in-flight work and waits for
// them to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) spawn(fn func(ctx context.Context)) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		fn(ctx)
	}()
}

func (w *Watcher) runLive(ctx context.Context) {
	w.mu.Lock()
	w.liveGen++
	gen := w.liveGen
	w.mu.Unlock()

	err := w.dataSource.WatchTransfers(ctx, w.pollInterval, func(events []models.TransferEvent) {
		w.applyLive(ctx, gen, events)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "live transfer subscription stopped", "error", err)
	}
}

// applyLive folds one delivered batch into the store and re-reads the
// balance once.
func (w *Watcher) applyLive(ctx context.Context, gen uint64, events []models.TransferEvent) {
	w.mu.Lock()
	if gen != w.liveGen || w.account == "" {
		w.mu.Unlock()
		return
	}
	now := w.now()
	added := 0
	for _, ev := range events {
		relevant, dir := history.Match(ev, w.account)
		if !relevant {
			continue
		}
		if w.store.Prepend(history.Format(ev, dir, w.meta.Decimals, now)) {
			added++
		}
	}
	if added > 0 {
		w.lastUpdate = now
	}
	w.mu.Unlock()

	if added > 0 {
		logger.Debug(ctx, "live transfers recorded", "count", added)
		w.notify(Event{Type: EventHistoryUpdated, Data: w.store.All()})
	}
	w.refreshBalance(ctx)
}

func (w *Watcher) onAccountChanged(account string) {
	w.mu.Lock()
	if strings.EqualFold(account, w.account) {
		w.mu.Unlock()
		return
	}
	w.account = account
	w.balance = nil
	w.balanceHistory = nil
	w.store.Clear()
	ctx := w.ctx
	w.mu.Unlock()

	logger.Info(ctx, "active account changed", "account", account)
	w.notify(Event{Type: EventAccountUpdated, Data: account})
	w.notify(Event{Type: EventHistoryUpdated, Data: []models.TransactionRecord{}})

	if account == "" {
		return
	}
	w.spawn(func(ctx context.Context) {
		w.refreshBalance(ctx)
		_ = w.backfill(ctx)
	})
}

func (w *Watcher) resolveMetadata(ctx context.Context) error {
	meta, err := w.dataSource.TokenMetadata(ctx)
	if err != nil {
		logger.Error(ctx, "failed to read token metadata", "error", err)
		return err
	}

	w.mu.Lock()
	changed := !w.metaResolved || meta.Decimals != w.meta.Decimals
	w.meta = meta
	w.metaResolved = true
	w.mu.Unlock()

	w.notify(Event{Type: EventMetadataUpdated, Data: meta})
	if changed {
		return w.backfill(ctx)
	}
	return nil
}

// backfill replaces the store with every matching transfer since genesis.
// A result is dropped when a newer backfill already landed or the account
// changed while the query was in flight.
func (w *Watcher) backfill(ctx context.Context) error {
	w.mu.Lock()
	account := w.account
	decimals := w.meta.Decimals
	if account == "" || !w.metaResolved {
		w.mu.Unlock()
		return nil
	}
	w.backfillSeq++
	seq := w.backfillSeq
	w.mu.Unlock()

	events, err := w.dataSource.TransferLogs(ctx, 0, nil)
	if err != nil {
		logger.Error(ctx, "failed to fetch transfer history", "account", account, "error", err)
		return err
	}
	now := w.now()
	records := history.Reduce(events, account, decimals, now)

	w.mu.Lock()
	if seq <= w.appliedSeq || !strings.EqualFold(account, w.account) || decimals != w.meta.Decimals {
		w.mu.Unlock()
		logger.Debug(ctx, "dropping stale backfill", "seq", seq)
		return nil
	}
	w.appliedSeq = seq
	w.store.ReplaceAll(records)
	w.lastUpdate = now
	w.mu.Unlock()

	w.notify(Event{Type: EventHistoryUpdated, Data: records})
	return nil
}

func (w *Watcher) refreshBalance(ctx context.Context) {
	w.mu.RLock()
	account := w.account
	w.mu.RUnlock()
	if account == "" {
		return
	}

	bal, err := w.dataSource.BalanceOf(ctx, account)
	if err != nil {
		logger.Warn(ctx, "failed to read balance", "account", account, "error", err)
		return
	}

	w.mu.Lock()
	if !strings.EqualFold(account, w.account) {
		w.mu.Unlock()
		return
	}
	now := w.now()
	w.balance = bal
	w.balanceHistory = append(w.balanceHistory, models.BalancePoint{
		Timestamp: now,
		Value:     history.UnitsToFloat(bal, w.meta.Decimals),
	})
	if len(w.balanceHistory) > MaxBalancePoints {
		w.balanceHistory = w.balanceHistory[len(w.balanceHistory)-MaxBalancePoints:]
	}
	w.lastUpdate = now
	display := history.FormatUnits(bal, w.meta.Decimals)
	w.mu.Unlock()

	w.notify(Event{Type: EventBalanceUpdated, Data: display})
}

// Refresh re-reads metadata if it is still unknown, then the balance and the
// full history.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.mu.RLock()
	resolved := w.metaResolved
	w.mu.RUnlock()

	if !resolved {
		if err := w.resolveMetadata(ctx); err != nil {
			return err
		}
		w.refreshBalance(ctx)
		return nil
	}
	w.refreshBalance(ctx)
	return w.backfill(ctx)
}

// SetDraft stores the transfer input.
func (w *Watcher) SetDraft(recipient, amount string) {
	w.mu.Lock()
	w.draft = models.Draft{Recipient: recipient, Amount: amount}
	draft := w.draft
	w.mu.Unlock()
	w.notify(Event{Type: EventDraftUpdated, Data: draft})
}

// CanSubmit reports whether the transfer action should be enabled.
func (w *Watcher) CanSubmit() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account != "" &&
		strings.TrimSpace(w.draft.Recipient) != "" &&
		strings.TrimSpace(w.draft.Amount) != "" &&
		!w.write.Busy()
}

// Transfer submits the current draft. The draft is cleared once the
// transfer confirms.
func (w *Watcher) Transfer(ctx context.Context) (common.Hash, error) {
	w.mu.RLock()
	draft := w.draft
	w.mu.RUnlock()
	return w.transfer(ctx, draft.Recipient, draft.Amount, true)
}

// TransferTo sends amount, in display units, to recipient. The draft is left
// untouched.
func (w *Watcher) TransferTo(ctx context.Context, recipient, amount string) (common.Hash, error) {
	return w.transfer(ctx, recipient, amount, false)
}

func (w *Watcher) transfer(ctx context.Context, recipient, amount string, fromDraft bool) (common.Hash, error) {
	w.mu.RLock()
	resolved := w.metaResolved
	decimals := w.meta.Decimals
	w.mu.RUnlock()

	recipient = strings.TrimSpace(recipient)
	amount = strings.TrimSpace(amount)
	switch {
	case recipient == "":
		return common.Hash{}, validationErr(ErrEmptyRecipient)
	case amount == "":
		return common.Hash{}, validationErr(ErrEmptyAmount)
	case !common.IsHexAddress(recipient):
		return common.Hash{}, validationErr(ErrInvalidRecipient)
	}
	if !resolved {
		return common.Hash{}, ErrMetadataPending
	}
	raw, err := history.ParseUnits(amount, decimals)
	if err != nil {
		return common.Hash{}, validationErr(err)
	}

	return w.submit(ctx, "transfer", fromDraft, func(signer *wallet.Signer) (common.Hash, error) {
		return w.dataSource.Transfer(ctx, signer, recipient, raw)
	})
}

// Mint calls the token faucet for the active account.
func (w *Watcher) Mint(ctx context.Context) (common.Hash, error) {
	return w.submit(ctx, "mint", false, func(signer *wallet.Signer) (common.Hash, error) {
		return w.dataSource.Mint(ctx, signer)
	})
}

func (w *Watcher) submit(ctx context.Context, action string, clearDraft bool, send func(*wallet.Signer) (common.Hash, error)) (common.Hash, error) {
	signer := w.session.Signer()
	if signer == nil {
		return common.Hash{}, ErrNotConnected
	}

	w.mu.Lock()
	if w.write.Busy() {
		w.mu.Unlock()
		return common.Hash{}, ErrWriteInFlight
	}
	w.write = models.WriteStatus{Action: action, Pending: true}
	w.mu.Unlock()
	w.notifyWrite()

	hash, err := send(signer)
	if err != nil {
		rejection := newChainRejection(err)
		w.setWrite(models.WriteStatus{Action: action, Error: rejection.Message})
		logger.Warn(ctx, "write rejected", "action", action, "error", err)
		return common.Hash{}, rejection
	}

	logger.Info(ctx, "write submitted", "action", action, "tx", hash.Hex())
	w.setWrite(models.WriteStatus{Action: action, Confirming: true, TxHash: hash.Hex()})
	w.spawn(func(ctx context.Context) {
		w.awaitConfirmation(ctx, action, hash, clearDraft)
	})
	return hash, nil
}

func (w *Watcher) awaitConfirmation(ctx context.Context, action string, hash common.Hash, clearDraft bool) {
	waitCtx, cancel := context.WithTimeout(ctx, w.confirmTimeout)
	_, err := w.dataSource.WaitConfirmed(waitCtx, hash)
	timedOut := waitCtx.Err() != nil
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if timedOut {
			err = fmt.Errorf("%w (tx %s)", ErrConfirmTimeout, hash.Hex())
		}
		rejection := newChainRejection(err)
		w.setWrite(models.WriteStatus{Action: action, TxHash: hash.Hex(), Error: rejection.Message})
		logger.Warn(ctx, "write failed", "action", action, "tx", hash.Hex(), "error", err)
		return
	}

	logger.Info(ctx, "write confirmed", "action", action, "tx", hash.Hex())
	w.setWrite(models.WriteStatus{Action: action, Confirmed: true, TxHash: hash.Hex()})
	w.refreshBalance(ctx)
	_ = w.backfill(ctx)
	if clearDraft {
		w.SetDraft("", "")
	}
}

func (w *Watcher) setWrite(status models.WriteStatus) {
	w.mu.Lock()
	w.write = status
	w.mu.Unlock()
	w.notifyWrite()
}

func (w *Watcher) notifyWrite() {
	w.mu.RLock()
	status := w.write
	w.mu.RUnlock()
	w.notify(Event{Type: EventWriteUpdated, Data: status})
}

// Snapshot returns a copy of the current dashboard state.
func (w *Watcher) Snapshot() models.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var balance *big.Int
	if w.balance != nil {
		balance = new(big.Int).Set(w.balance)
	}
	return models.Snapshot{
		Account:          w.account,
		Connected:        w.account != "",
		Token:            w.meta,
		MetadataResolved: w.metaResolved,
		Balance:          balance,
		BalanceDisplay:   history.FormatUnits(w.balance, w.meta.Decimals),
		History:          w.store.All(),
		Write:            w.write,
		Draft:            w.draft,
		LastUpdate:       w.lastUpdate,
	}
}

// History returns the current records, most recent first.
func (w *Watcher) History() []models.TransactionRecord {
	return w.store.All()
}

// BalanceHistory returns the balance samples collected this session.
func (w *Watcher) BalanceHistory() []models.BalancePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.BalancePoint, len(w.balanceHistory))
	copy(out, w.balanceHistory)
	return out
}
