package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"sales-order-service/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter map[string]int

func (f fakeCounter) CountStageOrders(_ context.Context, stage pipeline.Stage) (int, error) {
	n, ok := f[stage.Name]
	if !ok {
		return 0, errors.New("boom")
	}
	return n, nil
}

func TestCountStagesAndPrint(t *testing.T) {
	counts, err := countStages(context.Background(), fakeCounter{
		pipeline.StageProduction: 4,
		pipeline.StageBilling:    0,
	}, []pipeline.Stage{
		{Name: pipeline.StageProduction},
		{Name: pipeline.StageBilling},
	})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, 4, counts[0].Orders)

	var buf bytes.Buffer
	printReport(&buf, counts)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STAGE"))
	assert.Contains(t, lines[1], pipeline.StageProduction)
	assert.Contains(t, lines[1], "4")
}

func TestCountStagesStopsOnError(t *testing.T) {
	_, err := countStages(context.Background(), fakeCounter{}, []pipeline.Stage{{Name: pipeline.StageAccounts}})
	assert.ErrorContains(t, err, "stage accounts")
}
