package worker

import (
	logger "github.com/sirupsen/logrus"
)

// Rough virtual sizes of the fulfillment building blocks.
const (
	txOverheadVSize = 11
	inputVSize      = 68 // P2WPKH spend
	outputVSize     = 43 // up to P2WSH/P2TR
	dataOutputVSize = 53 // OP_RETURN with a fulfillment payload
)

// FulfillmentVSize estimates a fulfillment spending numInputs outputs.
func FulfillmentVSize(numInputs int) int64 {
	return txOverheadVSize + int64(numInputs)*inputVSize + dataOutputVSize + 2*outputVSize
}

// DefaultFallbackRate is used when the node cannot estimate a rate.
const DefaultFallbackRate = 2

// FeeEstimator prices a transaction of a given virtual size in satoshis.
type FeeEstimator interface {
	Fee(vsize int64) (int64, error)
}

// FixedRate charges SatPerVByte per virtual byte.
type FixedRate struct {
	SatPerVByte int64
}

func (r FixedRate) Fee(vsize int64) (int64, error) {
	return r.SatPerVByte * vsize, nil
}

// RateSource is a node that estimates fee rates in sat/vB.
type RateSource interface {
	EstimateFeeRate(target int64) (int64, error)
}

// NodeRate asks the node for a rate and falls back to a fixed one when the
// node has no estimate (fresh regtest chains never do).
type NodeRate struct {
	Node     RateSource
	Target   int64 // confirmation target in blocks
	Fallback FixedRate
}

func (r NodeRate) Fee(vsize int64) (int64, error) {
	rate, err := r.Node.EstimateFeeRate(r.Target)
	if err != nil || rate <= 0 {
		logger.WithField("err", err).Debug("no fee estimate from node, using fallback rate")
		return r.Fallback.Fee(vsize)
	}
	return rate * vsize, nil
}
