package models

// Datatypes partition bus topics per exchange.
const (
	DatatypeL2      = "l2"
	DatatypeTicker  = "ticker"
	DatatypeTrades  = "trades"
	DatatypeFactors = "factors"
)

// Datatypes lists every datatype a topic can carry.
var Datatypes = []string{DatatypeL2, DatatypeTicker, DatatypeTrades, DatatypeFactors}
