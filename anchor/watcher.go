package anchor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Update is one watcher observation of a tracked anchor transaction.
type Update struct {
	AnchorID      string
	Txid          string
	Status        string
	Confirmations int64
	At            time.Time
}

const defaultPollInterval = 15 * time.Second

// Watcher polls the wallet for confirmation counts of tracked anchors and
// pushes the resulting status into the database and to any subscribers.
// It retains no per-tick chain state; every tick re-asks the wallet.
type Watcher struct {
	db       *gorm.DB
	wallet   Wallet
	logger   *logrus.Logger
	required int64
	interval time.Duration

	mu      sync.RWMutex
	tracked map[string]string // anchor id -> txid
	subs    map[string]map[chan Update]struct{}

	quit chan struct{}
}

// NewWatcher builds a watcher that considers a transaction final after
// required confirmations. interval <= 0 falls back to the default.
func NewWatcher(db *gorm.DB, wallet Wallet, required int64, interval time.Duration, logger *logrus.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if required <= 0 {
		required = 1
	}
	return &Watcher{
		db:       db,
		wallet:   wallet,
		logger:   logger,
		required: required,
		interval: interval,
		tracked:  make(map[string]string),
		subs:     make(map[string]map[chan Update]struct{}),
		quit:     make(chan struct{}),
	}
}

func (w *Watcher) Stop() { close(w.quit) }

// Run polls until the context is cancelled or Stop is called. Unconfirmed
// rows surviving a restart are re-adopted before the first tick.
func (w *Watcher) Run(ctx context.Context) {
	w.adoptPending()
	w.logger.Info("anchor watcher started")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	defer w.logger.Info("anchor watcher stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-t.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) adoptPending() {
	pending, err := PendingAnchors(w.db)
	if err != nil {
		w.logger.WithField("error", err.Error()).Error("loading pending anchors")
		return
	}
	for _, anchor := range pending {
		w.Track(anchor.ID, anchor.Txid)
	}
}

// Track registers an anchor transaction for polling.
func (w *Watcher) Track(anchorID, txid string) {
	w.mu.Lock()
	w.tracked[anchorID] = txid
	w.mu.Unlock()
}

// Subscribe returns a channel receiving updates for anchorID plus an
// unsubscribe func. No snapshot is sent; first data arrives on the next tick.
func (w *Watcher) Subscribe(anchorID string) (<-chan Update, func()) {
	ch := make(chan Update, 8)
	w.mu.Lock()
	if _, ok := w.subs[anchorID]; !ok {
		w.subs[anchorID] = make(map[chan Update]struct{})
	}
	w.subs[anchorID][ch] = struct{}{}
	w.mu.Unlock()

	unsub := func() {
		w.mu.Lock()
		if set, ok := w.subs[anchorID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(w.subs, anchorID)
			}
		}
		w.mu.Unlock()
		// Never close ch; the poller may still try a send. Receivers stop by
		// context instead.
	}
	return ch, unsub
}

func statusFor(confirmations, required int64) string {
	switch {
	case confirmations >= required:
		return StatusConfirmed
	case confirmations > 0:
		return StatusConfirming
	default:
		return StatusSubmitted
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	if w.wallet == nil {
		return
	}
	w.mu.RLock()
	snapshot := make(map[string]string, len(w.tracked))
	for id, txid := range w.tracked {
		snapshot[id] = txid
	}
	w.mu.RUnlock()

	for anchorID, txid := range snapshot {
		confirmations, err := w.wallet.Confirmations(ctx, txid)
		if err != nil {
			w.logger.WithFields(logrus.Fields{
				"txid":  txid,
				"error": err.Error(),
			}).Debug("confirmation poll failed")
			continue
		}
		status := statusFor(confirmations, w.required)
		if err := UpdateStatus(anchorID, status, confirmations, w.db); err != nil {
			w.logger.WithFields(logrus.Fields{
				"anchor_id": anchorID,
				"error":     err.Error(),
			}).Error("persisting anchor status")
		}
		w.broadcast(anchorID, Update{
			AnchorID:      anchorID,
			Txid:          txid,
			Status:        status,
			Confirmations: confirmations,
			At:            time.Now(),
		})
		if status == StatusConfirmed {
			w.mu.Lock()
			delete(w.tracked, anchorID)
			w.mu.Unlock()
			w.logger.WithFields(logrus.Fields{
				"anchor_id":     anchorID,
				"confirmations": confirmations,
			}).Info("anchor confirmed")
		}
	}
}

// broadcast snapshots subscribers, then best-effort sends without blocking.
func (w *Watcher) broadcast(anchorID string, update Update) {
	w.mu.RLock()
	set := w.subs[anchorID]
	channels := make([]chan Update, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	w.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- update:
		default:
			// Drop if the receiver is slow.
		}
	}
}
