package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperationMetrics_Stats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 20; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%2 == 0, i%5 == 0)
	}

	avg, min, max, p50, p95 := om.Stats()
	assert.Equal(t, int64(20), om.Total)
	assert.Equal(t, int64(10), om.Success)
	assert.Equal(t, int64(2), om.Conflict, "odd multiples of five")
	assert.Equal(t, int64(8), om.Error)
	assert.Equal(t, 10500*time.Microsecond, avg)
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, 20*time.Millisecond, max)
	assert.Equal(t, 11*time.Millisecond, p50)
	assert.Equal(t, 20*time.Millisecond, p95)
}

func TestOperationMetrics_Empty(t *testing.T) {
	var om OperationMetrics
	avg, _, _, _, p95 := om.Stats()
	assert.Zero(t, avg)
	assert.Zero(t, p95)
}
