package domain

import "errors"

// Transition rejections. Every one aborts the whole instruction; callers
// re-read state before deciding to retry.
var (
	ErrInsufficientCollateral = errors.New("Insufficient collateral balance")
	ErrOptionNotListed        = errors.New("Option is not listed for sale")
	ErrOptionExpired          = errors.New("Option expired")
	ErrOptionAlreadyExercised = errors.New("Option already exercised or reclaimed")
	ErrOptionNotExpired       = errors.New("Option not expired yet")
	ErrUnauthorized           = errors.New("Caller is not authorized")
	ErrInvalidParameters      = errors.New("Invalid parameters")
	ErrInsufficientFunds      = errors.New("Insufficient quote balance")
	ErrNotFound               = errors.New("Not found")
	ErrAlreadyExists          = errors.New("Already exists")
	ErrBalanceOverflow        = errors.New("Balance would exceed the maximum amount")
)

// RFQ rejections.
var (
	ErrRFQNotOpen        = errors.New("RFQ is not open")
	ErrRFQExpired        = errors.New("RFQ quote window has passed")
	ErrRFQNotExpired     = errors.New("RFQ quote window is still open")
	ErrMakerNotActive    = errors.New("Maker is not active")
	ErrPremiumBelowFloor = errors.New("Premium below RFQ floor")
)

// Share vault rejections.
var (
	ErrZeroShares          = errors.New("Deposit too small to mint shares")
	ErrInsufficientShares  = errors.New("Insufficient shares")
	ErrWithdrawalProcessed = errors.New("Withdrawal already processed")
	ErrEpochNotSettled     = errors.New("Withdrawal epoch not settled yet")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInsufficientCollateral, "InsufficientCollateral"},
	{ErrOptionNotListed, "OptionNotListed"},
	{ErrOptionExpired, "OptionExpired"},
	{ErrOptionAlreadyExercised, "OptionAlreadyExercised"},
	{ErrOptionNotExpired, "OptionNotExpired"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidParameters, "InvalidParameters"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrBalanceOverflow, "BalanceOverflow"},
	{ErrRFQNotOpen, "RfqNotOpen"},
	{ErrRFQExpired, "RfqExpired"},
	{ErrRFQNotExpired, "RfqNotExpired"},
	{ErrMakerNotActive, "MakerNotActive"},
	{ErrPremiumBelowFloor, "PremiumBelowFloor"},
	{ErrZeroShares, "ZeroShares"},
	{ErrInsufficientShares, "InsufficientShares"},
	{ErrWithdrawalProcessed, "AlreadyProcessed"},
	{ErrEpochNotSettled, "EpochNotSettled"},
}

// Code returns the stable rejection name for err, or "" for errors that are
// not venue rejections.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return "DecodeError"
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
