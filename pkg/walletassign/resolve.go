// Package walletassign deterministically selects a sponsor funding policy
// for an agent. Resolution is stateless: identical inputs always yield the
// identical choice regardless of candidate order, and no assignment history
// is consulted. Ties are broken by a canonical-seed digest, never by
// randomness or map iteration.
package walletassign

import (
	"math"
	"sort"

	"github.com/nooterra/settld/pkg/canonical"
)

const StatusActive = "active"

// Candidate is one funding policy offered for assignment.
type Candidate struct {
	SponsorRef         string `json:"sponsorRef,omitempty"`
	SponsorWalletRef   string `json:"sponsorWalletRef"`
	PolicyRef          string `json:"policyRef"`
	PolicyVersion      string `json:"policyVersion"`
	Status             string `json:"status"`
	MaxDelegationDepth *int64 `json:"maxDelegationDepth,omitempty"`
}

// Input is one resolution request.
type Input struct {
	TenantID        string      `json:"tenantId"`
	ProfileRef      string      `json:"profileRef,omitempty"`
	RiskClass       string      `json:"riskClass,omitempty"`
	DelegationRef   string      `json:"delegationRef,omitempty"`
	DelegationDepth *int64      `json:"delegationDepth,omitempty"`
	Policies        []Candidate `json:"policies"`
}

// Assignment is the chosen wallet/policy pair.
type Assignment struct {
	SponsorWalletRef string `json:"sponsorWalletRef"`
	PolicyRef        string `json:"policyRef"`
	PolicyVersion    string `json:"policyVersion"`
}

// Sponsor match ranks, descending priority.
const (
	rankSponsorExact    = 0
	rankSponsorAgnostic = 1
	rankSponsorOther    = 2
)

// unconstrainedDistance sorts depth-unconstrained policies last among equal
// sponsor ranks.
const unconstrainedDistance = int64(math.MaxInt64)

// maxDelegationDepth bounds requested depths to the canonical safe-integer
// range so the tie-break seed always hashes.
const maxDelegationDepth = int64(1)<<53 - 1

type ranked struct {
	candidate Candidate
	rank      int
	distance  int64
	tieBreak  string
}

// Resolve filters, ranks, and picks the single best candidate, or nil when
// none survives filtering.
func Resolve(in Input) *Assignment {
	requestedDepth := int64(0)
	if in.DelegationDepth != nil {
		requestedDepth = *in.DelegationDepth
		if requestedDepth < 0 || requestedDepth > maxDelegationDepth {
			return nil
		}
	}

	survivors := make([]ranked, 0, len(in.Policies))
	for _, c := range in.Policies {
		if c.Status != StatusActive {
			continue
		}
		if in.DelegationDepth != nil && c.MaxDelegationDepth != nil && *c.MaxDelegationDepth < requestedDepth {
			continue
		}
		survivors = append(survivors, ranked{
			candidate: c,
			rank:      sponsorRank(c, in.ProfileRef),
			distance:  delegationDistance(c, requestedDepth),
			tieBreak:  tieBreakDigest(in, c),
		})
	}
	if len(survivors) == 0 {
		return nil
	}

	sort.Slice(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.tieBreak < b.tieBreak
	})

	best := survivors[0].candidate
	return &Assignment{
		SponsorWalletRef: best.SponsorWalletRef,
		PolicyRef:        best.PolicyRef,
		PolicyVersion:    best.PolicyVersion,
	}
}

func sponsorRank(c Candidate, profileRef string) int {
	switch {
	case c.SponsorRef != "" && profileRef != "" && c.SponsorRef == profileRef:
		return rankSponsorExact
	case c.SponsorRef == "":
		return rankSponsorAgnostic
	default:
		return rankSponsorOther
	}
}

func delegationDistance(c Candidate, requestedDepth int64) int64 {
	if c.MaxDelegationDepth == nil {
		return unconstrainedDistance
	}
	return *c.MaxDelegationDepth - requestedDepth
}

// tieBreakDigest hashes a canonical seed built from every resolution input
// plus the candidate's identifying fields. String comparison of the digests
// yields a total order with no randomness and full reproducibility.
func tieBreakDigest(in Input, c Candidate) string {
	seed := map[string]any{
		"tenantId":      in.TenantID,
		"profileRef":    in.ProfileRef,
		"riskClass":     in.RiskClass,
		"delegationRef": in.DelegationRef,
		"candidate": map[string]any{
			"sponsorRef":       c.SponsorRef,
			"sponsorWalletRef": c.SponsorWalletRef,
			"policyRef":        c.PolicyRef,
			"policyVersion":    c.PolicyVersion,
		},
	}
	if in.DelegationDepth != nil {
		seed["delegationDepth"] = *in.DelegationDepth
	}
	return canonical.MustSum(seed)
}
