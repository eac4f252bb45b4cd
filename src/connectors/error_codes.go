package connectors

import (
	"fmt"
	"net/http"

	"futuresbot/src/model"
)

// BinanceErrorCodes maps Binance futures error codes to readable messages.
var BinanceErrorCodes = map[int]string{
	-1000: "UNKNOWN",                         // Unknown error while processing the request
	-1001: "DISCONNECTED",                    // Internal error; unable to process the request
	-1003: "TOO_MANY_REQUESTS",               // Request weight exceeded
	-1007: "TIMEOUT",                         // Timeout waiting for backend response
	-1013: "INVALID_MESSAGE",                 // Filter failure (LOT_SIZE, PRICE_FILTER)
	-1021: "INVALID_TIMESTAMP",               // Timestamp outside recvWindow
	-1022: "INVALID_SIGNATURE",               // Signature for this request is not valid
	-1111: "BAD_PRECISION",                   // Precision over the maximum for this asset
	-1121: "BAD_SYMBOL",                      // Invalid symbol
	-2010: "NEW_ORDER_REJECTED",              // New order rejected
	-2014: "BAD_API_KEY_FMT",                 // API-key format invalid
	-2015: "REJECTED_MBX_KEY",                // Invalid API-key, IP, or permissions for action
	-2018: "BALANCE_NOT_SUFFICIENT",          // Balance is insufficient
	-2019: "MARGIN_NOT_SUFFICIENT",           // Margin is insufficient
	-2021: "ORDER_WOULD_IMMEDIATELY_TRIGGER", // Stop price would trigger immediately
	-2022: "REDUCE_ONLY_REJECT",              // Reduce-only order rejected
	-4003: "QUANTITY_LESS_THAN_ZERO",         // Quantity less than or equal to zero
	-4028: "INVALID_LEVERAGE",                // Leverage not valid for this symbol
	-4164: "MIN_NOTIONAL",                    // Order notional below the symbol minimum
}

// GetErrorMsg returns a human-readable message for a given Binance error code.
func GetErrorMsg(code int) string {
	if msg, ok := BinanceErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BINANCE_ERROR_%d", code)
}

// APIError is a non-2xx exchange response. It unwraps to the matching error class.
type APIError struct {
	Status int
	Code   int
	Msg    string
	kind   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance http %d code=%d (%s): %s", e.Status, e.Code, GetErrorMsg(e.Code), e.Msg)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func newAPIError(status, code int, msg string) *APIError {
	return &APIError{Status: status, Code: code, Msg: msg, kind: classifyBinance(status, code)}
}

func classifyBinance(status, code int) error {
	switch code {
	case -2014, -2015, -1022:
		return model.ErrAuth
	case -2018, -2019:
		return model.ErrInsufficientBalance
	case -1001, -1003, -1007, -1021:
		return model.ErrTransient
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return model.ErrAuth
	}
	// rate limits, timeouts, 5xx and unmapped rejections are retried on the next tick
	return model.ErrTransient
}
