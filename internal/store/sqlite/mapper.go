package sqlite

import (
	"encoding/json"
	"sort"
	"time"

	"legtracker/internal/store/model"
	"legtracker/internal/strategy"
)

func instanceFromModels(in model.StrategyInstanceModel, legs []model.LegModel, history []model.TradeHistoryModel) *strategy.Instance {
	out := &strategy.Instance{
		ID:          in.InstanceID,
		Name:        in.Name,
		Status:      strategy.InstanceStatus(in.Status),
		Config:      json.RawMessage(in.ConfigJSON),
		Legs:        make(map[string]*strategy.Leg, len(legs)),
		CreatedAt:   in.CreatedAt,
		LastUpdated: in.LastUpdated,
	}
	for _, lm := range legs {
		leg := legFromModel(lm)
		out.Legs[leg.Key] = leg
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Seq < history[j].Seq })
	for _, hm := range history {
		out.TradeHistory = append(out.TradeHistory, recordFromModel(hm))
	}
	return out
}

func legFromModel(lm model.LegModel) *strategy.Leg {
	return &strategy.Leg{
		Key:               lm.LegKey,
		Symbol:            lm.Symbol,
		Exchange:          lm.Exchange,
		Side:              strategy.ParseSide(lm.Side),
		Quantity:          lm.Quantity,
		Status:            strategy.LegStatus(lm.Status),
		EntryPrice:        lm.EntryPrice,
		EntryTime:         lm.EntryTime,
		ExitPrice:         lm.ExitPrice,
		ExitTime:          lm.ExitTime,
		SLPrice:           lm.SLPrice,
		TargetPrice:       lm.TargetPrice,
		WaitBaselinePrice: lm.WaitBaselinePrice,
		WaitTradePercent:  lm.WaitTradePercent,
		WaitTriggerPrice:  lm.WaitTriggerPrice,
		IsMainLeg:         lm.IsMainLeg,
		LegPairName:       lm.LegPairName,
		ReentryCount:      lm.ReentryCount,
		ReentryLimit:      lm.ReentryLimit,
		ReexecuteCount:    lm.ReexecuteCount,
		ReexecuteLimit:    lm.ReexecuteLimit,
		RealizedPnl:       lm.RealizedPnl,
		TotalPnl:          lm.TotalPnl,
	}
}

func legToModel(instanceID string, leg strategy.Leg, now time.Time) model.LegModel {
	return model.LegModel{
		InstanceID:        instanceID,
		LegKey:            leg.Key,
		Symbol:            leg.Symbol,
		Exchange:          leg.Exchange,
		Side:              string(leg.Side),
		Quantity:          leg.Quantity,
		Status:            string(leg.Status),
		EntryPrice:        leg.EntryPrice,
		EntryTime:         leg.EntryTime,
		ExitPrice:         leg.ExitPrice,
		ExitTime:          leg.ExitTime,
		SLPrice:           leg.SLPrice,
		TargetPrice:       leg.TargetPrice,
		WaitBaselinePrice: leg.WaitBaselinePrice,
		WaitTradePercent:  leg.WaitTradePercent,
		WaitTriggerPrice:  leg.WaitTriggerPrice,
		IsMainLeg:         leg.IsMainLeg,
		LegPairName:       leg.LegPairName,
		ReentryCount:      leg.ReentryCount,
		ReentryLimit:      leg.ReentryLimit,
		ReexecuteCount:    leg.ReexecuteCount,
		ReexecuteLimit:    leg.ReexecuteLimit,
		RealizedPnl:       leg.RealizedPnl,
		TotalPnl:          leg.TotalPnl,
		UpdatedAtUnix:     now.UnixMilli(),
	}
}

func recordFromModel(hm model.TradeHistoryModel) strategy.TradeRecord {
	return strategy.TradeRecord{
		LegKey:     hm.LegKey,
		Symbol:     hm.Symbol,
		Exchange:   hm.Exchange,
		Side:       strategy.ParseSide(hm.Side),
		Quantity:   hm.Quantity,
		EntryPrice: hm.EntryPrice,
		EntryTime:  hm.EntryTime,
		ExitPrice:  hm.ExitPrice,
		ExitTime:   hm.ExitTime,
		ExitType:   strategy.ExitType(hm.ExitType),
		Pnl:        hm.Pnl,
	}
}
