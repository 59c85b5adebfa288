package services

import (
	"context"
	"time"

	"schoolfee/interfaces"
)

// sendMarkTTL keeps a mark for a full day past its window.
const sendMarkTTL = 48 * time.Hour

// SendGuard remembers which recipients a rule already targeted in a firing
// window. Marks record attempted sends.
type SendGuard struct {
	store interfaces.SendGuardStore
}

func NewSendGuard(store interfaces.SendGuardStore) *SendGuard {
	return &SendGuard{store: store}
}

func (sg *SendGuard) AlreadySent(ctx context.Context, ruleID, recipientID, windowKey string) (bool, error) {
	return sg.store.Exists(ctx, guardKey(ruleID, recipientID, windowKey))
}

// TryMark atomically marks the triple and reports whether this caller made
// the mark. A false result means another evaluation already claimed it.
func (sg *SendGuard) TryMark(ctx context.Context, ruleID, recipientID, windowKey string, now time.Time) (bool, error) {
	return sg.store.SetIfAbsent(ctx, guardKey(ruleID, recipientID, windowKey), now, sendMarkTTL)
}

// Release drops a mark for a send that was never attempted.
func (sg *SendGuard) Release(ctx context.Context, ruleID, recipientID, windowKey string) error {
	return sg.store.Delete(ctx, guardKey(ruleID, recipientID, windowKey))
}

func guardKey(ruleID, recipientID, windowKey string) string {
	return "sent:" + ruleID + ":" + recipientID + ":" + windowKey
}
