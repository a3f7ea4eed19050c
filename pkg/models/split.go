package models

// Split names one partition of the dataset.
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// Splits lists all partitions in their canonical order.
var Splits = []Split{SplitTrain, SplitValidation, SplitTest}
