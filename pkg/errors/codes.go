package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by module prefix: COMMON, REC, SNAP, LST.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeDatabaseError  = ErrCodeDatabaseError
	CodeCacheError     = ErrCodeCacheError
	CodeStorageError   = ErrCodeExternalService
	CodeMessageQueue   = ErrCodeExternalService
)

// Recommender Module Error Codes
const (
	ErrCodeShapeMismatch   ErrorCode = "REC_001"
	ErrCodeDuplicateIndex  ErrorCode = "REC_002"
	ErrCodeUnknownProperty ErrorCode = "REC_003"
	ErrCodeMissingListing  ErrorCode = "REC_004"
	ErrCodeInvalidWeights  ErrorCode = "REC_005"
	ErrCodeInvalidTopN     ErrorCode = "REC_006"
	ErrCodeStoreNotReady   ErrorCode = "REC_007"
	ErrCodeUnknownLandmark ErrorCode = "REC_008"
	ErrCodeInvalidRadius   ErrorCode = "REC_009"
)

// Snapshot Module Error Codes
const (
	ErrCodeSnapshotNotFound    ErrorCode = "SNAP_001"
	ErrCodeSnapshotDecode      ErrorCode = "SNAP_002"
	ErrCodeSnapshotSourceError ErrorCode = "SNAP_003"
)

// Listing Module Error Codes
const (
	ErrCodeListingSourceUnavailable ErrorCode = "LST_001"
	ErrCodeListingParse             ErrorCode = "LST_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeShapeMismatch:   http.StatusUnprocessableEntity,
	ErrCodeDuplicateIndex:  http.StatusUnprocessableEntity,
	ErrCodeUnknownProperty: http.StatusNotFound,
	ErrCodeMissingListing:  http.StatusBadGateway,
	ErrCodeInvalidWeights:  http.StatusBadRequest,
	ErrCodeInvalidTopN:     http.StatusBadRequest,
	ErrCodeStoreNotReady:   http.StatusServiceUnavailable,
	ErrCodeUnknownLandmark: http.StatusNotFound,
	ErrCodeInvalidRadius:   http.StatusBadRequest,

	ErrCodeSnapshotNotFound:    http.StatusNotFound,
	ErrCodeSnapshotDecode:      http.StatusUnprocessableEntity,
	ErrCodeSnapshotSourceError: http.StatusBadGateway,

	ErrCodeListingSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeListingParse:             http.StatusUnprocessableEntity,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeShapeMismatch:   "similarity matrices do not match the property index",
	ErrCodeDuplicateIndex:  "property index contains duplicate names",
	ErrCodeUnknownProperty: "unknown property",
	ErrCodeMissingListing:  "listing links missing for recommended properties",
	ErrCodeInvalidWeights:  "weights must be finite numbers",
	ErrCodeInvalidTopN:     "top_n must be a positive integer",
	ErrCodeStoreNotReady:   "similarity store not loaded",
	ErrCodeUnknownLandmark: "unknown landmark",
	ErrCodeInvalidRadius:   "radius must be a positive number of kilometres",

	ErrCodeSnapshotNotFound:    "snapshot not found",
	ErrCodeSnapshotDecode:      "snapshot could not be decoded",
	ErrCodeSnapshotSourceError: "snapshot source error",

	ErrCodeListingSourceUnavailable: "listing source unavailable",
	ErrCodeListingParse:             "listing data could not be parsed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
