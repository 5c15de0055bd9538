// market/instruments.go
package market

// InstrumentMeta describes contract sizing for a tradable symbol.
type InstrumentMeta struct {
	Name string

	// ContractSize is the account-currency value of a one point move
	// for a one lot position (dollars per point per lot).
	ContractSize float64

	MinLot  float64
	MaxLot  float64
	LotStep float64
	Digits  int
}

var Instruments = map[string]InstrumentMeta{
	"XAUUSD": {
		Name:         "XAUUSD",
		ContractSize: 100,
		MinLot:       0.01,
		MaxLot:       1.0,
		LotStep:      0.01,
		Digits:       2,
	},
	"XAGUSD": {
		Name:         "XAGUSD",
		ContractSize: 5000,
		MinLot:       0.01,
		MaxLot:       1.0,
		LotStep:      0.01,
		Digits:       3,
	},
}

// Lookup returns the metadata for symbol.
func Lookup(symbol string) (InstrumentMeta, bool) {
	m, ok := Instruments[symbol]
	return m, ok
}
