package models

import "time"

type Order struct {
	TrackingNo      string    `json:"tracking_no" yaml:"trackingNo"`
	OriginZone      string    `json:"origin_zone" yaml:"originZone"`
	DestinationZone string    `json:"destination_zone" yaml:"destinationZone"`
	CreatedOn       time.Time `json:"created_on" yaml:"createdOn"`
	PaymentType     string    `json:"payment_type" yaml:"paymentType"`
	AgentApp        string    `json:"agent_app" yaml:"agentApp"` // merchant identifier
}

// SimulationResult is one planning decision: an initial plan or a replan.
type SimulationResult struct {
	ID         string    `json:"id"`
	TrackingNo string    `json:"trackingNo"`
	CostFactor string    `json:"costFactor"`
	Conditions string    `json:"conditions,omitempty"`
	Path       string    `json:"path"`
	TotalCost  float64   `json:"totalCost"`
	Status     string    `json:"status"`
	PlannedAt  time.Time `json:"plannedAt"`
}

type ResultMetrics struct {
	Planned   int
	Failed    int
	Replanned int
	Delivered int
	Stranded  int
}
