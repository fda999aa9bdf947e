package simulator

import (
	"fmt"

	"github.com/chrisdamba/routesim/internal/models"
)

type EventMessage struct {
	Topic   string
	Message []byte
}

// ResultEvent is the exported form of a SimulationResult.
type ResultEvent struct {
	Timestamp  int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType  string  `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	ResultID   string  `json:"resultId" parquet:"name=resultId,type=BYTE_ARRAY,convertedtype=UTF8"`
	TrackingNo string  `json:"trackingNo" parquet:"name=trackingNo,type=BYTE_ARRAY,convertedtype=UTF8"`
	CostFactor string  `json:"costFactor" parquet:"name=costFactor,type=BYTE_ARRAY,convertedtype=UTF8"`
	Conditions string  `json:"conditions" parquet:"name=conditions,type=BYTE_ARRAY,convertedtype=UTF8"`
	Path       string  `json:"path" parquet:"name=path,type=BYTE_ARRAY,convertedtype=UTF8"`
	TotalCost  float64 `json:"totalCost" parquet:"name=totalCost,type=DOUBLE"`
	Status     string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

func NewResultEvent(r models.SimulationResult) ResultEvent {
	return ResultEvent{
		Timestamp:  r.PlannedAt.Unix(),
		EventType:  "simulation_result",
		ResultID:   r.ID,
		TrackingNo: r.TrackingNo,
		CostFactor: r.CostFactor,
		Conditions: r.Conditions,
		Path:       r.Path,
		TotalCost:  r.TotalCost,
		Status:     r.Status,
	}
}

// parquetSchema returns the struct parquet derives a topic's schema from.
func parquetSchema(topic string) (interface{}, error) {
	switch topic {
	case resultTopic:
		return new(ResultEvent), nil
	default:
		return nil, fmt.Errorf("unknown topic: %s", topic)
	}
}
