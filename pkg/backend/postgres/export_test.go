package postgres

var (
	SearchArgs = searchArgs
	Classify   = classify
)
