package link

import (
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/srg/textwatch/internal/dispatch"
)

// pendingSend is an outbound push waiting for ACK or NACK.
type pendingSend struct {
	onAck  func(uint8)
	onNack func(dispatch.Failure)
	timer  *time.Timer
	done   atomic.Bool
}

// resolve runs exactly one callback for the send; later calls are ignored.
func (p *pendingSend) resolve(txID uint8, err error) bool {
	if !p.done.CompareAndSwap(false, true) {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	if err == nil {
		if p.onAck != nil {
			p.onAck(txID)
		}
		return true
	}
	if p.onNack != nil {
		p.onNack(dispatch.Failure{TransactionID: txID, Err: err})
	}
	return true
}

// pendingTable tracks in-flight transactions by id.
type pendingTable struct {
	items   *hashmap.Map[uint8, *pendingSend]
	timeout time.Duration
	nextTx  atomic.Uint32
}

func newPendingTable(timeout time.Duration) *pendingTable {
	return &pendingTable{
		items:   hashmap.New[uint8, *pendingSend](),
		timeout: timeout,
	}
}

// add registers callbacks under a fresh transaction id. When the timeout
// elapses first, the send fails with ResultSendTimeout.
func (t *pendingTable) add(onAck func(uint8), onNack func(dispatch.Failure)) uint8 {
	txID := uint8(t.nextTx.Add(1))
	p := &pendingSend{onAck: onAck, onNack: onNack}

	// an id still in flight after 256 sends is given up on
	if old, ok := t.items.Get(txID); ok {
		old.resolve(txID, ResultSendTimeout)
	}
	t.items.Set(txID, p)

	if t.timeout > 0 {
		p.timer = time.AfterFunc(t.timeout, func() {
			t.complete(txID, p, ResultSendTimeout)
		})
	}
	return txID
}

// resolve completes the transaction with err (nil for ACK). It reports false
// for unknown or already completed ids.
func (t *pendingTable) resolve(txID uint8, err error) bool {
	p, ok := t.items.Get(txID)
	if !ok {
		return false
	}
	return t.complete(txID, p, err)
}

func (t *pendingTable) complete(txID uint8, p *pendingSend, err error) bool {
	if cur, ok := t.items.Get(txID); ok && cur == p {
		t.items.Del(txID)
	}
	return p.resolve(txID, err)
}

// failAll fails every in-flight transaction, e.g. on disconnect.
func (t *pendingTable) failAll(err error) {
	var ids []uint8
	t.items.Range(func(id uint8, _ *pendingSend) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		t.resolve(id, err)
	}
}

// len returns the number of in-flight transactions.
func (t *pendingTable) len() int {
	return t.items.Len()
}
