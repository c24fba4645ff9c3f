package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueCapExceeded = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for a caller.
type QuotaNow struct {
	ReqCount  uint32
	ValueUsed uint64
	EpochID   uint64
}

// Quota defines the limits enforced for a module interaction per caller.
type Quota struct {
	MaxRequestsPerMin uint32
	MaxValuePerEpoch  uint64
	EpochSeconds      uint32
}

// CheckQuota verifies whether the additional request and value usage fit within
// the configured quota. The returned QuotaNow reflects the updated counters
// when the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addValue uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerMin > 0 && next.ReqCount > q.MaxRequestsPerMin {
		return prev, ErrQuotaRequestsExceeded
	}

	if addValue > 0 {
		if next.ValueUsed > math.MaxUint64-addValue {
			return prev, ErrQuotaCounterOverflow
		}
		next.ValueUsed += addValue
	}
	if q.MaxValuePerEpoch > 0 && next.ValueUsed > q.MaxValuePerEpoch {
		return prev, ErrQuotaValueCapExceeded
	}

	return next, nil
}
