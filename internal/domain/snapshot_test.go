package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func snap(doc string, states map[string]string) *Snapshot {
	return &Snapshot{Timestamp: time.Now(), Data: gjson.Parse(doc), States: states}
}

func TestChangedNilHandling(t *testing.T) {
	assert.False(t, Changed(nil, nil, nil))
	assert.True(t, Changed(nil, snap(`{}`, nil), nil))
	assert.True(t, Changed(snap(`{}`, nil), nil, nil))
}

func TestChangedIgnoresListedKeysAndTimestamp(t *testing.T) {
	a := snap(`{"eth":true,"uptime":10}`, map[string]string{"eth": "green"})
	b := snap(`{"eth":true,"uptime":11}`, map[string]string{"eth": "green"})
	b.Timestamp = a.Timestamp.Add(time.Minute)

	assert.True(t, Changed(a, b, nil))
	assert.False(t, Changed(a, b, []string{"uptime"}))
}

func TestChangedDetectsStateAndValueChanges(t *testing.T) {
	a := snap(`{"eth":true}`, map[string]string{"eth": "green"})
	assert.True(t, Changed(a, snap(`{"eth":true}`, map[string]string{"eth": "gray"}), nil))
	assert.True(t, Changed(a, snap(`{"eth":false}`, map[string]string{"eth": "green"}), nil))
	assert.True(t, Changed(a, snap(`{"eth":true,"sd":1}`, map[string]string{"eth": "green"}), nil))
}

func TestChangedNonObjectDocuments(t *testing.T) {
	assert.False(t, Changed(snap(`[1,2]`, nil), snap(`[1,2]`, nil), nil))
	assert.True(t, Changed(snap(`[1,2]`, nil), snap(`[1,3]`, nil), nil))
}
