package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOrder(t *testing.T) {
	t.Run("ForwardProgression", func(t *testing.T) {
		assert.Equal(t, StatusOnTheWay, NextStatus(StatusConfirmed))
		assert.Equal(t, StatusArrived, NextStatus(StatusOnTheWay))
		assert.Equal(t, StatusInProgress, NextStatus(StatusArrived))
		assert.Equal(t, StatusCompleted, NextStatus(StatusInProgress))
	})

	t.Run("TerminalState", func(t *testing.T) {
		assert.Equal(t, "", NextStatus(StatusCompleted))
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		assert.Equal(t, "", NextStatus("cancelled"))
		assert.Equal(t, -1, StatusIndex("cancelled"))
	})

	t.Run("ValidStatus", func(t *testing.T) {
		for _, s := range StatusOrder {
			assert.True(t, ValidStatus(s), s)
		}
		assert.False(t, ValidStatus(""))
		assert.False(t, ValidStatus("pending"))
	})
}

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(5))
	assert.False(t, ValidRating(6))
	assert.False(t, ValidRating(-1))
}
