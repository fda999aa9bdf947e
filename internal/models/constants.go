package models

import "time"

const (
	LabelCoverageArea = "COVERAGEAREA"
	LabelWarehouse    = "WAREHOUSE"
	LabelCity         = "CITY"
	LabelHub          = "HUB"

	DefaultLinkType = "CONNECTED_TO"

	PaymentTypeBoth = "Both"

	ResultStatusPlanned = "planned"
	ResultStatusFailed  = "failed"

	ModeStatic  = "static"
	ModeDynamic = "dynamic"

	CostFactorFinancial = "financial"
	CostFactorDuration  = "duration"

	DefaultMaxHops     = 15
	DefaultExpiryGrace = 30 * time.Minute
)
