// Copyright 2025 Certen Protocol
//
// Package messages defines FastPay's wire vocabulary (spec.md §6): the
// transfer-order -> signed-vote -> certificate -> confirmation pipeline,
// the cross-shard recipient-credit message, and account info queries.
// Every message type here is RLP-encodable, and signatures are always
// computed over types.Digest of the signed sub-value, never over the
// outer envelope (spec.md §4.A).
package messages

import (
	"sort"

	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/types"
)

// Tag identifies a wire message's payload type (spec.md §6 table).
type Tag byte

const (
	TagTransferOrder             Tag = 0
	TagSignedVote                Tag = 1
	TagConfirmationOrder         Tag = 2
	TagCrossShardRecipientCommit Tag = 3
	TagInfoRequest               Tag = 4
	TagInfoResponse              Tag = 5
	TagCoinCreationRequest       Tag = 6
	TagCoinSpend                 Tag = 7
)

// TransferOrderData is the part of a TransferOrder the sender signs; it
// never includes the signature itself (spec.md §4.A: digests, not raw
// structures, are signed).
type TransferOrderData struct {
	Sender    types.Address
	Recipient types.Address
	Amount    types.Amount
	Sequence  types.SequenceNumber
	// UserData is present iff HasUserData; RLP has no native optional
	// field, so the option is flattened into an explicit bool + fixed array.
	HasUserData bool
	UserData    [32]byte
}

func (d TransferOrderData) Digest() ([32]byte, error) {
	return types.Digest(d)
}

// TransferOrder is the client-signed intent to move funds at a given
// sequence number (spec.md §3, wire tag 0).
type TransferOrder struct {
	Data            TransferOrderData
	SenderSignature types.Signature
}

// Verify checks the sender's signature over Data's digest.
func (o TransferOrder) Verify() error {
	d, err := o.Data.Digest()
	if err != nil {
		return err
	}
	return o.SenderSignature.Verify(o.Data.Sender, d)
}

func (o TransferOrder) Digest() ([32]byte, error) {
	return o.Data.Digest()
}

// Equal reports whether two orders are identical in every signed field —
// the identity check behind idempotent-retry (P2) and equivocation
// resistance (P5).
func (o TransferOrder) Equal(other TransferOrder) bool {
	return o.Data == other.Data && o.SenderSignature == other.SenderSignature
}

// SignedVote is the authority's response to a TransferOrder (wire tag 1).
type SignedVote struct {
	Order     TransferOrder
	Authority types.AuthorityName
	Signature types.Signature
}

// Certificate is a TransferOrder plus a quorum of authority signatures
// over its digest (spec.md §3). Signatures are stored sorted by authority
// name so that two certificates carrying the same signer set always encode
// identically (needed for P5: equivocation resistance is a value-equality
// check on the certified order, and a canonical signer ordering keeps
// Certificate equality meaningful too).
type Certificate struct {
	Value      TransferOrder
	Signatures []AuthoritySignature
}

type AuthoritySignature struct {
	Authority types.AuthorityName
	Signature types.Signature
}

// NewCertificate sorts sigs by authority name before storing them.
func NewCertificate(value TransferOrder, sigs []AuthoritySignature) Certificate {
	out := append([]AuthoritySignature(nil), sigs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Authority.Less(out[j].Authority) })
	return Certificate{Value: value, Signatures: out}
}

func (c Certificate) Digest() ([32]byte, error) {
	return c.Value.Digest()
}

// CrossShardRecipientCommit is the internal message that credits a
// recipient's shard after the sender's shard has finalized a transfer
// (wire tag 3).
type CrossShardRecipientCommit struct {
	Certificate Certificate
}

// InfoRequest queries an account's current state, optionally asking for a
// specific historical confirmed-log entry (wire tag 4).
type InfoRequest struct {
	AccountId types.AccountId
	// HasRequestSequence/RequestSequence flatten Option<u64> for RLP.
	HasRequestSequence bool
	RequestSequence    uint64
}

// InfoResponse answers an InfoRequest (wire tag 5).
type InfoResponse struct {
	AccountId            types.AccountId
	HasOwner             bool
	Owner                types.Address
	Balance              types.Balance
	NextSequence         types.SequenceNumber
	HasPendingVote       bool
	PendingVote          SignedVote
	HasRequestedCertificate bool
	RequestedCertificate Certificate
}

// ValidateTag returns an error if the byte is not one of the eight wire
// tags this package knows how to frame.
func ValidateTag(b byte) (Tag, error) {
	switch Tag(b) {
	case TagTransferOrder, TagSignedVote, TagConfirmationOrder, TagCrossShardRecipientCommit,
		TagInfoRequest, TagInfoResponse, TagCoinCreationRequest, TagCoinSpend:
		return Tag(b), nil
	default:
		return 0, errs.New(errs.ErrorWhileProcessingTransferOrder, "unknown wire tag")
	}
}
