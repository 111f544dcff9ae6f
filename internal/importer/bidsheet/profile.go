package bidsheet

// Profile describes the column layout of one family of supplier spreadsheets.
// Header names are compared case-insensitively after trimming.
type Profile struct {
	Name        string
	DescCol     string
	UnitCol     string
	PriceCol    string
	QuantityCol string
	AcquiredCol string // optional: balance statements carry what was already delivered
}

func (p Profile) requiredCols() []string {
	cols := []string{p.DescCol, p.UnitCol, p.PriceCol, p.QuantityCol}
	if p.AcquiredCol != "" {
		cols = append(cols, p.AcquiredCol)
	}

	return cols
}

// profiles is tried in order; more specific layouts come first.
var profiles = []Profile{
	{
		Name:        "saldo",
		DescCol:     "Descrição",
		UnitCol:     "Unidade",
		PriceCol:    "Valor Unitário",
		QuantityCol: "Qtd. Contratada",
		AcquiredCol: "Qtd. Adquirida",
	},
	{
		Name:        "pregão",
		DescCol:     "Descrição",
		UnitCol:     "Unidade",
		PriceCol:    "Valor Unitário",
		QuantityCol: "Quantidade",
	},
	{
		Name:        "ata",
		DescCol:     "Especificação",
		UnitCol:     "Und.",
		PriceCol:    "Preço Unit.",
		QuantityCol: "Qtde",
	},
}
