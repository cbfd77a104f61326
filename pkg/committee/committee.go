// Copyright 2025 Certen Protocol
//
// Package committee holds the immutable, genesis-agreed set of authorities
// and their voting weights (spec.md §3, §4.C), plus the batched-signature
// quorum check every certificate is validated against.

package committee

import (
	"sort"

	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/types"
)

// Committee is immutable after construction (spec.md §5: "The Committee...
// immutable after process start").
type Committee struct {
	weights map[types.AuthorityName]uint64
	total   uint64
	names   []types.AuthorityName // sorted, for deterministic iteration
}

// New builds a Committee from a name->weight mapping. Weights must be
// strictly positive (spec.md §3: "positive weight").
func New(weights map[types.AuthorityName]uint64) (*Committee, error) {
	if len(weights) == 0 {
		return nil, errs.New(errs.CertificateRequiresQuorum, "committee has no authorities")
	}
	c := &Committee{weights: make(map[types.AuthorityName]uint64, len(weights))}
	for name, w := range weights {
		if w == 0 {
			return nil, errs.New(errs.CertificateRequiresQuorum, "authority weight must be positive")
		}
		c.weights[name] = w
		c.total += w
		c.names = append(c.names, name)
	}
	sort.Slice(c.names, func(i, j int) bool { return c.names[i].Less(c.names[j]) })
	return c, nil
}

// Weight returns an authority's voting weight, or 0 if it is not a member.
func (c *Committee) Weight(name types.AuthorityName) uint64 {
	return c.weights[name]
}

func (c *Committee) IsMember(name types.AuthorityName) bool {
	_, ok := c.weights[name]
	return ok
}

// TotalWeight is N = sum of all weights.
func (c *Committee) TotalWeight() uint64 { return c.total }

// QuorumThreshold is floor(2N/3) + 1 (spec.md §3).
func (c *Committee) QuorumThreshold() uint64 {
	return (2*c.total)/3 + 1
}

// ValidityThreshold is floor((N-1)/3) + 1 — the minimum weight that is
// guaranteed to include at least one honest authority.
func (c *Committee) ValidityThreshold() uint64 {
	if c.total == 0 {
		return 1
	}
	return (c.total-1)/3 + 1
}

// Names returns the committee membership in a fixed, sorted order.
func (c *Committee) Names() []types.AuthorityName {
	out := make([]types.AuthorityName, len(c.names))
	copy(out, c.names)
	return out
}

// HasQuorum reports whether the combined weight of names meets the quorum
// threshold (P4). Duplicate names are only counted once.
func (c *Committee) HasQuorum(names []types.AuthorityName) bool {
	return c.weightOf(names) >= c.QuorumThreshold()
}

func (c *Committee) weightOf(names []types.AuthorityName) uint64 {
	seen := make(map[types.AuthorityName]bool, len(names))
	var total uint64
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if w, ok := c.weights[n]; ok {
			total += w
		}
	}
	return total
}

// Signed pairs an authority with the signature it contributed over a
// digest; used by BatchVerify.
type Signed struct {
	Name      types.AuthorityName
	Signature types.Signature
}

// BatchVerify checks that every signer is a committee member, that every
// signature verifies against digest, and that the combined weight of the
// distinct signers reaches quorum (a repeated signer is counted once). It
// is the Committee's equivalent of a dalek-style batched check: one pass,
// one verdict, stopping at the first failure with UnknownSigner (non-member),
// InvalidSignature{detail} (bad signature) or CertificateRequiresQuorum
// (insufficient weight).
func (c *Committee) BatchVerify(digest [32]byte, votes []Signed) error {
	seen := make(map[types.AuthorityName]bool, len(votes))
	var weight uint64
	for _, v := range votes {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		w, ok := c.weights[v.Name]
		if !ok {
			return errs.New(errs.UnknownSigner, v.Name.String())
		}
		if err := v.Signature.Verify(v.Name, digest); err != nil {
			return errs.Wrap(errs.InvalidSignature, "signature from "+v.Name.String()+" did not verify", err)
		}
		weight += w
	}
	if weight < c.QuorumThreshold() {
		return errs.New(errs.CertificateRequiresQuorum, "combined weight below quorum threshold")
	}
	return nil
}
