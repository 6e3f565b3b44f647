package domain

import "time"

// Account pairs an advertiser account with the drama it promotes. Records
// arrive from the account directory or from inline configuration and are
// immutable for the duration of a run.
type Account struct {
	ID             string
	DramaName      string
	Subject        string
	CookieOverride string
}

// Session carries the resolved credential for one account's platform calls.
type Session struct {
	AccountID string
	Cookie    string
}

// Ad is a single promotion unit on the ad platform. The title carries the
// drama name and, usually, a channel alias.
type Ad struct {
	ID        string
	Title     string
	CreatedAt time.Time // zero when the platform timestamp is missing or malformed
}

// Secondary material statuses the remediation rules key off.
const (
	StatusBalanceInsufficient = "账户余额不足"
	StatusRejected            = "审核不通过"
	StatusPendingReview       = "新建审核中"
)

// Reject reason classes reported by the platform.
const (
	RejectReasonNone       = 0
	RejectReasonActionable = 1
)

// Material is a creative asset attached to an ad, with its own review and
// delivery status.
type Material struct {
	ID              string
	DeletionHandle  string // id required by the batch delete endpoint; may be empty
	AdID            string
	StatusPrimary   string
	StatusSecondary []string
	RejectReason    int
}

// Buckets partitions an account's materials into remediation actions.
// The sets are disjoint: materials under a fully deletable ad are subsumed
// by the ad deletion and appear in neither material bucket.
type Buckets struct {
	NeedsPreview      []Material
	NeedsDeletion     []Material
	FullyDeletableAds []string
}

// Empty reports whether the run has nothing to do for the account.
func (b Buckets) Empty() bool {
	return len(b.NeedsPreview) == 0 && len(b.NeedsDeletion) == 0 && len(b.FullyDeletableAds) == 0
}
