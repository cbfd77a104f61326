// Copyright 2025 Certen Protocol

package committee

import (
	"testing"

	"github.com/fastpay/authority/pkg/types"
)

func fourEqualAuthorities(t *testing.T) (*Committee, []*types.KeyPair) {
	t.Helper()
	weights := map[types.AuthorityName]uint64{}
	var kps []*types.KeyPair
	for i := 0; i < 4; i++ {
		kp, err := types.GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair: %v", err)
		}
		kps = append(kps, kp)
		weights[kp.Address()] = 1
	}
	c, err := New(weights)
	if err != nil {
		t.Fatalf("new committee: %v", err)
	}
	return c, kps
}

func TestQuorumThresholdFourEqual(t *testing.T) {
	c, _ := fourEqualAuthorities(t)
	// P4: floor(2*4/3)+1 = floor(2.67)+1 = 2+1 = 3
	if got := c.QuorumThreshold(); got != 3 {
		t.Fatalf("quorum threshold = %d, want 3", got)
	}
}

func TestHasQuorum(t *testing.T) {
	c, kps := fourEqualAuthorities(t)
	two := []types.AuthorityName{kps[0].Address(), kps[1].Address()}
	if c.HasQuorum(two) {
		t.Fatalf("2 of 4 equal-weight authorities must not reach quorum")
	}
	three := append(two, kps[2].Address())
	if !c.HasQuorum(three) {
		t.Fatalf("3 of 4 equal-weight authorities must reach quorum")
	}
}

func TestHasQuorumIgnoresDuplicates(t *testing.T) {
	c, kps := fourEqualAuthorities(t)
	names := []types.AuthorityName{kps[0].Address(), kps[0].Address(), kps[1].Address()}
	if c.HasQuorum(names) {
		t.Fatalf("duplicate authority names must not be double-counted toward quorum")
	}
}

func TestBatchVerifyRejectsUnknownSigner(t *testing.T) {
	c, kps := fourEqualAuthorities(t)
	outsider, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	d := types.MustDigest("order")
	votes := []Signed{
		{Name: kps[0].Address(), Signature: kps[0].SignDigest(d)},
		{Name: outsider.Address(), Signature: outsider.SignDigest(d)},
	}
	if err := c.BatchVerify(d, votes); err == nil {
		t.Fatalf("expected error for non-member signer")
	}
}

func TestBatchVerifyRejectsQuorumDeficit(t *testing.T) {
	c, kps := fourEqualAuthorities(t)
	d := types.MustDigest("order")
	votes := []Signed{
		{Name: kps[0].Address(), Signature: kps[0].SignDigest(d)},
		{Name: kps[1].Address(), Signature: kps[1].SignDigest(d)},
	}
	if err := c.BatchVerify(d, votes); err == nil {
		t.Fatalf("expected CertificateRequiresQuorum for 2 of 4 signatures")
	}
}

func TestBatchVerifyAcceptsQuorum(t *testing.T) {
	c, kps := fourEqualAuthorities(t)
	d := types.MustDigest("order")
	votes := []Signed{
		{Name: kps[0].Address(), Signature: kps[0].SignDigest(d)},
		{Name: kps[1].Address(), Signature: kps[1].SignDigest(d)},
		{Name: kps[2].Address(), Signature: kps[2].SignDigest(d)},
	}
	if err := c.BatchVerify(d, votes); err != nil {
		t.Fatalf("expected quorum of 3/4 to verify: %v", err)
	}
}
