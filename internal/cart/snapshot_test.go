package cart

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"items":[]},"version":0}`, string(data))
}

func TestDecodeNormalizes(t *testing.T) {
	raw := `{"state":{"items":[
		{"id":1,"name":"Bibimbap","price":12.5,"image":"/b.jpg","quantity":2},
		{"id":"1","name":"Duplicate","price":"1","quantity":1},
		{"id":"2","name":"Zero","price":"3","quantity":0},
		{"id":"","name":"No id","price":"3","quantity":1},
		{"id":"3","name":"Kimchi","price":"4.00","isSpicy":true,"quantity":1}
	]},"version":0}`

	items, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Bibimbap", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "12.50", items[0].Price.StringFixed(2))
	assert.True(t, items[1].IsSpicy)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	in := []LineItem{
		{ID: "1", Name: "A", Price: mustDecimal("2.25"), Image: "/a.png", Quantity: 3, IsVegetarian: true},
	}
	data, err := Encode(in)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "state")

	out, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].ID, out[0].ID)
	assert.True(t, in[0].Price.Equal(out[0].Price))
	assert.Equal(t, 3, out[0].Quantity)
	assert.True(t, out[0].IsVegetarian)
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("6f1c1e9e-5b9a-4d7a-9a52-2f0c7b0e8d11")
	assert.Equal(t, "oppa-cart-storage:6f1c1e9e-5b9a-4d7a-9a52-2f0c7b0e8d11", Key(id))
}
