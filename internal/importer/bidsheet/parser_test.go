package bidsheet_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/importer/bidsheet"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertItem(t *testing.T, want, got contract.LineItemSpec) {
	t.Helper()

	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Unit, got.Unit)
	assert.True(t, want.UnitPrice.Equal(got.UnitPrice), "unit price: want %s, got %s", want.UnitPrice, got.UnitPrice)
	assert.True(t, want.ContractedQuantity.Equal(got.ContractedQuantity),
		"contracted: want %s, got %s", want.ContractedQuantity, got.ContractedQuantity)
	assert.True(t, want.AcquiredQuantity.Equal(got.AcquiredQuantity),
		"acquired: want %s, got %s", want.AcquiredQuantity, got.AcquiredQuantity)
}

func TestParser_Pregao(t *testing.T) {
	csv := `PREFEITURA MUNICIPAL DE SANTA RITA;
PREGÃO ELETRÔNICO Nº 012/2026;
Fornecedor;Frigorífico Boa Carne LTDA

Item;Descrição;Unidade;Quantidade;Valor Unitário;Valor Total
1;CARNE MOIDA BOVINA 1ª CAT;kg;1.200;32,50;39.000,00
2;FILÉ DE PEITO DE FRANGO;KG;800,5;R$ 18,90;15.129,45
;;;;Total;54.129,45
`

	items, err := bidsheet.NewParser(nil).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assertItem(t, contract.LineItemSpec{
		Description:        "CARNE MOIDA BOVINA 1ª CAT",
		Unit:               "KG",
		UnitPrice:          dec("32.50"),
		ContractedQuantity: dec("1200"),
		AcquiredQuantity:   decimal.Zero,
	}, items[0])

	assertItem(t, contract.LineItemSpec{
		Description:        "FILÉ DE PEITO DE FRANGO",
		Unit:               "KG",
		UnitPrice:          dec("18.90"),
		ContractedQuantity: dec("800.5"),
		AcquiredQuantity:   decimal.Zero,
	}, items[1])
}

func TestParser_Saldo(t *testing.T) {
	csv := `DESCRIÇÃO;UNIDADE;VALOR UNITÁRIO;QTD. CONTRATADA;QTD. ADQUIRIDA
ARROZ TIPO 1;PCT 5KG;22,40;300;120
FEIJÃO CARIOCA;PCT 1KG;8,90;500;
`

	items, err := bidsheet.NewParser(nil).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assertItem(t, contract.LineItemSpec{
		Description:        "ARROZ TIPO 1",
		Unit:               "PCT 5KG",
		UnitPrice:          dec("22.40"),
		ContractedQuantity: dec("300"),
		AcquiredQuantity:   dec("120"),
	}, items[0])

	assert.True(t, items[1].AcquiredQuantity.IsZero())
}

func TestParser_Ata(t *testing.T) {
	csv := `Lote;Especificação;Und.;Qtde;Preço Unit.
1;Leite UHT integral;LT;2.400;4,79
`

	items, err := bidsheet.NewParser(nil).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Leite UHT integral", items[0].Description)
	assert.Equal(t, "LT", items[0].Unit)
	assert.True(t, items[0].ContractedQuantity.Equal(dec("2400")))
}

func TestParser_Latin1Encoding(t *testing.T) {
	utf8CSV := "Descrição;Unidade;Quantidade;Valor Unitário\nFEIJÃO CARIOCA;KG;500;8,90\n"

	latin1Bytes, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	items, err := bidsheet.NewParser(nil).Parse(bytes.NewReader(latin1Bytes))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "FEIJÃO CARIOCA", items[0].Description)
}

func TestParser_Errors(t *testing.T) {
	type testCase struct {
		name    string
		csv     string
		wantMsg string
	}

	tests := []testCase{
		{
			name:    "NoHeader",
			csv:     "Produto;Preço\nArroz;5,00\n",
			wantMsg: "no known bid sheet layout",
		},
		{
			name:    "InvalidQuantity",
			csv:     "Descrição;Unidade;Quantidade;Valor Unitário\nARROZ;KG;muito;5,00\n",
			wantMsg: "row 2: invalid quantity",
		},
		{
			name:    "NegativePrice",
			csv:     "Descrição;Unidade;Quantidade;Valor Unitário\nARROZ;KG;10;-5,00\n",
			wantMsg: "row 2: invalid unit price",
		},
		{
			name:    "MissingUnit",
			csv:     "x\nDescrição;Unidade;Quantidade;Valor Unitário\nARROZ;;10;5,00\n",
			wantMsg: "row 3: missing unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bidsheet.NewParser(nil).Parse(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
