package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"shipcompliance-backend/models"
	"shipcompliance-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvaluator records calls and returns canned verdicts.
type fakeEvaluator struct {
	mu        sync.Mutex
	keys      []string
	compliant bool
	panicOn   string
}

func (f *fakeEvaluator) EvaluateRules(ctx context.Context, rules []string, shipment any, apiKey string) *models.EvaluationResult {
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()

	if f.panicOn != "" {
		if details, ok := shipment.(map[string]any); ok {
			if desc, _ := details["itemDescription"].(string); desc == f.panicOn {
				panic("evaluator blew up")
			}
		}
	}

	result := models.GeneralComplianceResult()
	if !f.compliant {
		return models.FailedEvaluationResult("canned failure")
	}
	return result
}

func newTestBatchService(t *testing.T, evaluator Evaluator, keys ...string) (*BatchService, *repository.RuleRepository) {
	t.Helper()

	rules, err := repository.NewRuleRepository(filepath.Join(t.TempDir(), "rules.json"))
	require.NoError(t, err)

	opts := []BatchServiceOption{
		BatchWithRuleRepository(rules),
		BatchWithEvaluator(evaluator),
	}
	if len(keys) > 0 {
		keyring, err := NewKeyring(keys)
		require.NoError(t, err)
		opts = append(opts, BatchWithKeyring(keyring))
	}
	return NewBatchService(opts...), rules
}

func TestParseShipmentCSV(t *testing.T) {
	svc := NewBatchService()

	tests := []struct {
		name    string
		csv     string
		wantErr error
		want    int
	}{
		{
			name: "valid rows",
			csv:  "source,destination,item_description\nIndia,US,textiles\nFrance,Germany,wine\n",
			want: 2,
		},
		{
			name: "headers normalized",
			csv:  " Source , DESTINATION \nIndia,US\n",
			want: 1,
		},
		{
			name: "blank rows skipped",
			csv:  "source,destination\nIndia,US\n,\n",
			want: 1,
		},
		{
			name:    "missing destination column",
			csv:     "source,item_description\nIndia,textiles\n",
			wantErr: ErrMissingColumns,
		},
		{
			name:    "empty file",
			csv:     "",
			wantErr: ErrEmptyCSV,
		},
		{
			name:    "header only",
			csv:     "source,destination\n",
			wantErr: ErrEmptyCSV,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.ParseShipmentCSV(strings.NewReader(tt.csv))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestRunBatch_MixedRows(t *testing.T) {
	evaluator := &fakeEvaluator{compliant: true}
	svc, rules := newTestBatchService(t, evaluator, "key-a", "key-b")
	_, _, err := rules.AddRule("India", "US", "No lithium batteries")
	require.NoError(t, err)

	rows := []models.ShipmentRow{
		{"source": "India", "destination": "US", "shipment_id": "SH-1", "item_description": "textiles"},
		{"source": "", "destination": "US", "shipment_id": "SH-2"},
		{"source": "France", "destination": "Germany", "shipment_id": "SH-3"},
	}

	result := svc.RunBatch(context.Background(), rows)

	assert.Equal(t, 3, result.TotalShipments)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.TotalShipments, result.Processed+result.Failed)
	require.Len(t, result.Results, 3)

	// Input order preserved, with 1-based row indices and shipment ids.
	first := result.Results[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, "SH-1", first.ShipmentID)
	assert.Equal(t, models.RowStatusProcessed, first.Status)
	require.Len(t, first.Results, 1)
	assert.Equal(t, "Trade Compliance", first.Results[0].Section)

	second := result.Results[1]
	assert.Equal(t, 2, second.Row)
	assert.Equal(t, models.RowStatusFailed, second.Status)
	assert.Contains(t, second.Error, "source")

	// No rules for France->Germany: general compliance without an API call.
	third := result.Results[2]
	assert.Equal(t, models.RowStatusProcessed, third.Status)
	require.Len(t, third.Results, 1)
	assert.Equal(t, "General Compliance", third.Results[0].Section)
	assert.True(t, third.Results[0].Compliance.IsCompliant())

	// Only the rule-bearing row reached the evaluator.
	assert.Len(t, evaluator.keys, 1)
	assert.Contains(t, []string{"key-a", "key-b"}, evaluator.keys[0])
}

func TestRunBatch_CountsCompliance(t *testing.T) {
	evaluator := &fakeEvaluator{compliant: false}
	svc, rules := newTestBatchService(t, evaluator, "key-a")
	_, _, err := rules.AddRule("India", "US", "Rule A")
	require.NoError(t, err)

	rows := []models.ShipmentRow{
		{"source": "India", "destination": "US"},
		{"source": "France", "destination": "Germany"},
	}

	result := svc.RunBatch(context.Background(), rows)

	assert.Equal(t, 2, result.Processed)
	// Failed evaluation is processed but not compliant; the no-rules row is.
	assert.Equal(t, 1, result.Compliant)
	assert.Equal(t, 1, result.NonCompliant)
}

func TestRunBatch_PanicInEvaluatorFailsOnlyThatRow(t *testing.T) {
	evaluator := &fakeEvaluator{compliant: true, panicOn: "explosive"}
	svc, rules := newTestBatchService(t, evaluator, "key-a")
	_, _, err := rules.AddRule("India", "US", "Rule A")
	require.NoError(t, err)

	rows := []models.ShipmentRow{
		{"source": "India", "destination": "US", "item_description": "explosive"},
		{"source": "India", "destination": "US", "item_description": "textiles"},
	}

	result := svc.RunBatch(context.Background(), rows)

	assert.Equal(t, 2, result.TotalShipments)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.RowStatusFailed, result.Results[0].Status)
	assert.Contains(t, result.Results[0].Error, "internal error")
	assert.Equal(t, models.RowStatusProcessed, result.Results[1].Status)
}

func TestRunBatch_LargeBatchReturnsEveryRow(t *testing.T) {
	evaluator := &fakeEvaluator{compliant: true}
	svc, rules := newTestBatchService(t, evaluator, "key-a", "key-b")
	_, _, err := rules.AddRule("India", "US", "Rule A")
	require.NoError(t, err)

	rows := make([]models.ShipmentRow, 50)
	for i := range rows {
		rows[i] = models.ShipmentRow{"source": "India", "destination": "US"}
	}

	result := svc.RunBatch(context.Background(), rows)

	assert.Equal(t, 50, result.TotalShipments)
	assert.Equal(t, 50, result.Processed)
	for i, outcome := range result.Results {
		assert.Equal(t, i+1, outcome.Row)
	}
	assert.Len(t, evaluator.keys, 50)
}
