package openalgo

import "legtracker/internal/strategy"

type apiRequest struct{}

type strategyStatesResponse struct {
	Status string               `json:"status"`
	Data   []*strategy.Instance `json:"data"`
}

type symbolRef struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

type quotesRequest struct {
	Symbols []symbolRef `json:"symbols"`
}

type quoteEntry struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	LTP      float64 `json:"ltp"`
}

type quotesResponse struct {
	Status string       `json:"status"`
	Data   []quoteEntry `json:"data"`
}

type overrideRequest struct {
	InstanceID   string  `json:"instance_id"`
	LegKey       string  `json:"leg_key"`
	OverrideType string  `json:"override_type"`
	Value        float64 `json:"value"`
}

type manualExitRequest struct {
	InstanceID string  `json:"instance_id"`
	LegKey     string  `json:"leg_key"`
	ExitPrice  float64 `json:"exit_price"`
	ExitType   string  `json:"exit_type"`
}

type manualLegRequest struct {
	InstanceID string       `json:"instance_id"`
	Leg        strategy.Leg `json:"leg"`
}

type deleteRequest struct {
	InstanceID string `json:"instance_id"`
}
