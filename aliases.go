package gobacktest

import (
	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/series"
)

type (
	// Re-export domain types so consumers can keep using gobacktest.Order, etc.
	Stream        = models.Stream
	Row           = models.Row
	Series        = models.Series
	Candle        = models.Candle
	OrderSide     = models.OrderSide
	OrderType     = models.OrderType
	Order         = models.Order
	WalletSummary = models.WalletSummary
	Window        = series.Window
	ErrorType     = common.ErrorType
	EngineError   = common.EngineError
)

const (
	StreamTickers     = models.StreamTickers
	StreamOrderBooks  = models.StreamOrderBooks
	StreamVolumes     = models.StreamVolumes
	StreamInstruments = models.StreamInstruments
	StreamCandles     = models.StreamCandles
	StreamCombined    = models.StreamCombined

	OrderSideBuy  = models.OrderSideBuy
	OrderSideSell = models.OrderSideSell

	OrderTypeMarket                    = models.OrderTypeMarket
	OrderTypeLimit                     = models.OrderTypeLimit
	OrderTypeStop                      = models.OrderTypeStop
	OrderTypeStopLimit                 = models.OrderTypeStopLimit
	OrderTypeMarketIfTouched           = models.OrderTypeMarketIfTouched
	OrderTypeLimitIfTouched            = models.OrderTypeLimitIfTouched
	OrderTypeMarketWithLeftOverAsLimit = models.OrderTypeMarketWithLeftOverAsLimit
	OrderTypePegged                    = models.OrderTypePegged

	ErrorTypeTransientSource      = common.ErrorTypeTransientSource
	ErrorTypeFatalSource          = common.ErrorTypeFatalSource
	ErrorTypeCacheIntegrity       = common.ErrorTypeCacheIntegrity
	ErrorTypeUnsupportedOrderType = common.ErrorTypeUnsupportedOrderType
	ErrorTypeParsing              = common.ErrorTypeParsing
	ErrorTypeValidation           = common.ErrorTypeValidation
	ErrorTypeUnknown              = common.ErrorTypeUnknown
)

func IsTransientSourceError(err error) bool {
	return common.IsTransientSourceError(err)
}

func IsFatalSourceError(err error) bool {
	return common.IsFatalSourceError(err)
}

func IsCacheIntegrityError(err error) bool {
	return common.IsCacheIntegrityError(err)
}

func IsUnsupportedOrderTypeError(err error) bool {
	return common.IsUnsupportedOrderTypeError(err)
}

func IsParsingError(err error) bool {
	return common.IsParsingError(err)
}

func IsValidationError(err error) bool {
	return common.IsValidationError(err)
}

func IsRetriable(err error) bool {
	return common.IsRetriable(err)
}
