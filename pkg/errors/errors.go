package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrBorrowerNotFound      = errors.New("borrower not found")
	ErrInstallmentNotFound   = errors.New("installment not found")
	ErrInvalidLoanTerms      = errors.New("invalid loan terms")
	ErrInvalidPaymentAmount  = errors.New("invalid payment amount")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrLoanNotActive         = errors.New("loan is not active")
	ErrInstallmentWrittenOff = errors.New("installment was written off")
	ErrLedgerInconsistent    = errors.New("ledger is inconsistent")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound          = "LOAN_NOT_FOUND"
	ErrCodeBorrowerNotFound      = "BORROWER_NOT_FOUND"
	ErrCodeInstallmentNotFound   = "INSTALLMENT_NOT_FOUND"
	ErrCodeInvalidLoanTerms      = "INVALID_LOAN_TERMS"
	ErrCodeInvalidPaymentAmount  = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeLoanNotActive         = "LOAN_NOT_ACTIVE"
	ErrCodeInstallmentWrittenOff = "INSTALLMENT_WRITTEN_OFF"
	ErrCodeLedgerInconsistent    = "LEDGER_INCONSISTENT"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeCacheError            = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapBorrowerNotFound(borrowerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeBorrowerNotFound,
		fmt.Sprintf("Borrower with ID %s not found", borrowerID),
		ErrBorrowerNotFound,
	)
}

func WrapInstallmentNotFound(installmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment with ID %s not found", installmentID),
		ErrInstallmentNotFound,
	)
}

func WrapInvalidLoanTerms(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		reason,
		ErrInvalidLoanTerms,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapInvalidRequest(reason string, err error) *BusinessError {
	if err == nil {
		err = ErrInvalidRequest
	}
	return NewBusinessError(
		ErrCodeInvalidRequest,
		reason,
		err,
	)
}

func WrapLoanNotActive(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan with ID %s is %s, expected active", loanID, status),
		ErrLoanNotActive,
	)
}

func WrapInstallmentWrittenOff(installmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentWrittenOff,
		fmt.Sprintf("Installment with ID %s was written off by settlement", installmentID),
		ErrInstallmentWrittenOff,
	)
}

func WrapLedgerInconsistent(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeLedgerInconsistent,
		reason,
		ErrLedgerInconsistent,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code extracts the business error code, or "" when err carries none.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeLoanNotFound, ErrCodeBorrowerNotFound, ErrCodeInstallmentNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidLoanTerms, ErrCodeInvalidPaymentAmount, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeLoanNotActive, ErrCodeInstallmentWrittenOff:
		return http.StatusConflict
	case ErrCodeLedgerInconsistent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
