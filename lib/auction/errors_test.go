package auction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ClassUnknown},
		{errors.New("something else"), ClassUnknown},
		{ErrAuctionNotFound, ClassNotFound},
		{ErrCommitmentNotFound, ClassNotFound},
		{ErrAuctionNotActive, ClassState},
		{ErrAuctionNotInReveal, ClassState},
		{ErrAuctionFinalized, ClassState},
		{ErrSettlementNotDue, ClassState},
		{ErrCommitmentMismatch, ClassIntegrity},
		{ErrInvalidProof, ClassIntegrity},
		{ErrEntropyUnavailable, ClassResource},
		{ErrPersistenceUnavailable, ClassResource},
		{ErrNotAMember, ClassValidation},
		{ErrNotEligible, ClassValidation},
		{ErrBidTooLow, ClassValidation},
		{ErrDepositTooLow, ClassValidation},
		{ErrInvalidAmount, ClassValidation},
		{ErrInvalidInput, ClassValidation},
		{ErrWrongKind, ClassValidation},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, ErrorClassOf(test.err), "error: %v", test.err)
	}
}

func TestErrorClassOfWrapped(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("%w: offered 5, current price 10", ErrBidTooLow)
	assert.Equal(t, ClassValidation, ErrorClassOf(err))

	err = fmt.Errorf("outer: %w", fmt.Errorf("%w: getting key", ErrPersistenceUnavailable))
	assert.Equal(t, ClassResource, ErrorClassOf(err))
}

func TestErrorClassString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "validation", ClassValidation.String())
	assert.Equal(t, "state", ClassState.String())
	assert.Equal(t, "integrity", ClassIntegrity.String())
	assert.Equal(t, "resource", ClassResource.String())
	assert.Equal(t, "not_found", ClassNotFound.String())
	assert.Equal(t, "unknown", ClassUnknown.String())
	assert.Equal(t, "invalid", ErrorClass(99).String())
}
