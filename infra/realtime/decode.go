package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/go-electrify/dockd/core/model"
	corertc "github.com/go-electrify/dockd/core/realtime"
)

type specsPayload struct {
	SessionID int64 `json:"sessionId"`
	Vehicle   struct {
		BatteryCapacityKwh float64 `json:"batteryCapacityKwh"`
		MaxPowerKw         float64 `json:"maxPowerKw"`
	} `json:"vehicle"`
	Charger struct {
		PowerKw float64 `json:"powerKw"`
	} `json:"charger"`
	InitialSoc *float64 `json:"initialSoc"`
	TargetSoc  float64  `json:"targetSoc"`
}

// startPayload tolerates the target key variants that accumulated across
// client versions.
type startPayload struct {
	TargetPascal *float64 `json:"TargetSOC"`
	TargetSnake  *float64 `json:"target_soc"`
	TargetCamel  *float64 `json:"targetSOC"`
}

func (p startPayload) target() *float64 {
	switch {
	case p.TargetPascal != nil:
		return p.TargetPascal
	case p.TargetSnake != nil:
		return p.TargetSnake
	default:
		return p.TargetCamel
	}
}

// DecodeInbound parses a channel event payload into the typed inbound union.
// Unknown event names are an error; callers log and drop them.
func DecodeInbound(event string, payload []byte) (corertc.Inbound, error) {
	switch event {
	case corertc.EventSessionSpecs:
		var p specsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode session specs: %w", err)
		}
		return corertc.SessionSpecsEvent{Specs: model.SessionSpecs{
			SessionID:          p.SessionID,
			BatteryCapacityKwh: p.Vehicle.BatteryCapacityKwh,
			MaxPowerKw:         p.Vehicle.MaxPowerKw,
			ChargerPowerKw:     p.Charger.PowerKw,
			InitialSoc:         p.InitialSoc,
			TargetSoc:          p.TargetSoc,
		}}, nil

	case corertc.EventStartSession, corertc.EventStartCharging:
		var p startPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("decode start session: %w", err)
			}
		}
		return corertc.StartSessionEvent{TargetSOC: p.target()}, nil

	case corertc.EventLoadCarInfo:
		return corertc.LoadCarInfoEvent{}, nil

	default:
		return nil, fmt.Errorf("unknown event %q", event)
	}
}
