package importer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/importer"
)

func TestService_Import(t *testing.T) {
	svc := importer.NewService(nil)
	csv := "Descrição;Unidade;Quantidade;Valor Unitário\nARROZ TIPO 1;KG;300;5,20\n"

	items, err := svc.Import("", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ARROZ TIPO 1", items[0].Description)

	_, err = svc.Import("xlsx", strings.NewReader(csv))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
