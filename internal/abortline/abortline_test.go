package abortline_test

import (
	"testing"

	"inkpad/internal/abortline"

	"github.com/stretchr/testify/assert"
)

func TestTriggerConsumedOnce(t *testing.T) {
	var line abortline.Line
	assert.False(t, line.Sample())

	line.Trigger()
	assert.True(t, line.Sample())
	assert.False(t, line.Sample())
}

func TestHoldIsLevel(t *testing.T) {
	var line abortline.Line
	line.Hold()
	assert.True(t, line.Sample())
	assert.True(t, line.Sample())
	line.Release()
	assert.False(t, line.Sample())
}

func TestHoldersStack(t *testing.T) {
	var line abortline.Line
	line.Hold()
	line.Hold()
	line.Release()
	assert.True(t, line.Sample())
	line.Release()
	assert.False(t, line.Sample())
}

func TestTriggerSurvivesHold(t *testing.T) {
	var line abortline.Line
	line.Hold()
	line.Trigger()
	assert.True(t, line.Sample())
	line.Release()
	// The trigger was not consumed while the line was held.
	assert.True(t, line.Sample())
	assert.False(t, line.Sample())
}
