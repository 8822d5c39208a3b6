package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viktsys/tdingest/models"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(models.DefaultInstruments())

	tests := []struct {
		name     string
		label    string
		action   models.Action
		category string
		status   Recognition
		fallback bool
	}{
		{
			name:     "sale with unit suffix",
			label:    "Nome da série: Vendas - Tesouro Direto - LFT Unidade: R$ (milhões)",
			action:   models.ActionSale,
			category: "LFT",
			status:   Recognized,
		},
		{
			name:     "redemption with multi-word category",
			label:    "Resgates - Tesouro Direto - NTN-B Principal",
			action:   models.ActionRedemption,
			category: "NTN-B Principal",
			status:   Recognized,
		},
		{
			name: "full boilerplate with non-breaking spaces",
			label: "Nome da série: Resgates - Tesouro Direto -  NTN-F " +
				"Periodicidade: Mensal Unidade: R$ (milhões) Data de atualização: 10/01/2024 Fonte: Tesouro Nacional",
			action:   models.ActionRedemption,
			category: "NTN-F",
			status:   Recognized,
		},
		{
			name:     "source suffix only",
			label:    "Vendas - Tesouro Direto - NTN-C Fonte: Tesouro Nacional",
			action:   models.ActionSale,
			category: "NTN-C",
			status:   Recognized,
		},
		{
			name:     "fallback finds redemption word",
			label:    "Resgates TD - LTN",
			action:   models.ActionRedemption,
			category: "LTN",
			status:   Recognized,
			fallback: true,
		},
		{
			name:     "fallback prefers sale when both words appear",
			label:    "Vendas e Resgates - LTN",
			action:   models.ActionSale,
			category: "LTN",
			status:   Recognized,
			fallback: true,
		},
		{
			name:     "fallback defaults to sale",
			label:    "Estoque - Tesouro - NTN-B",
			action:   models.ActionSale,
			category: "B",
			status:   Unrecognized,
			fallback: true,
		},
		{
			name:     "unknown category after marker",
			label:    "Vendas - Tesouro Direto - Tesouro Renda+",
			action:   models.ActionSale,
			category: "Tesouro Renda+",
			status:   Unrecognized,
		},
		{
			name:     "no hyphen takes the whole label",
			label:    "Total",
			action:   models.ActionSale,
			category: "Total",
			status:   Unrecognized,
			fallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.label)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.fallback, got.Fallback)
		})
	}
}

func TestCleanLabel(t *testing.T) {
	assert.Equal(t, "Vendas - Tesouro Direto - LFT", CleanLabel("  Vendas -  Tesouro\tDireto\n- LFT "))
	assert.Equal(t, "", CleanLabel("   "))
}
