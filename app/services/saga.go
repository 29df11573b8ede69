package services

import (
	"go.uber.org/zap"
)

type sagaState int

const (
	stateNotStarted sagaState = iota
	stateStored
	stateCommitted
)

func (s sagaState) String() string {
	switch s {
	case stateStored:
		return "stored"
	case stateCommitted:
		return "committed"
	default:
		return "not_started"
	}
}

// saga tracks a store-then-commit write. A blob is only written before the
// commit is submitted, never after.
type saga struct {
	op          string
	state       sagaState
	postID      int64
	contentHash string
	txHash      string
	logger      *zap.Logger
}

func newSaga(op string, postID int64, logger *zap.Logger) *saga {
	return &saga{op: op, postID: postID, logger: logger}
}

func (s *saga) stored(contentHash string) {
	s.contentHash = contentHash
	s.advance(stateStored)
}

func (s *saga) committed(postID int64) {
	s.postID = postID
	s.advance(stateCommitted)
}

func (s *saga) advance(to sagaState) {
	s.logger.Debug("sync state",
		zap.String("op", s.op),
		zap.Int64("post_id", s.postID),
		zap.String("content_hash", s.contentHash),
		zap.Stringer("from", s.state),
		zap.Stringer("to", to),
	)
	s.state = to
}

func (s *saga) fail(err error) *SyncError {
	s.logger.Warn("sync failed",
		zap.String("op", s.op),
		zap.Int64("post_id", s.postID),
		zap.String("content_hash", s.contentHash),
		zap.String("tx_hash", s.txHash),
		zap.Stringer("state", s.state),
		zap.Error(err),
	)
	return &SyncError{Op: s.op, PostID: s.postID, ContentHash: s.contentHash, Err: err}
}
