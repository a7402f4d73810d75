package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItem_DecodesNumericSizeAndID(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{"productId":17,"productName":"Ti","size":3.5,"quantity":2,"price":100}`), &item)
	require.NoError(t, err)

	assert.Equal(t, Ref("17"), item.ProductID)
	assert.Equal(t, Size("3.5"), item.Size)
	assert.False(t, item.IsMigrated())

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"size":3.5`)
	assert.Contains(t, string(out), `"productId":17`)
	assert.NotContains(t, string(out), "categoryName")
}

func TestCartItem_RoundTripKeepsTokensAndUnknownKeys(t *testing.T) {
	raw := `{"productId":17,"productName":"Ti","size":1,"quantity":1,"price":30,"id":"line-9","addedAt":"2024-01-01"}`

	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	require.Len(t, item.Extra, 2)

	item.CategoryName = "products"
	item.ProductTypeName = "Ti"
	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":17,"productName":"Ti","size":1,"quantity":1,"price":30,"id":"line-9","addedAt":"2024-01-01","categoryName":"products","productTypeName":"Ti"}`, string(out))
}

func TestCartItem_ChangedLooseValueIsWrittenAsString(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"productId":17,"productName":"Ti","size":1,"quantity":1,"price":30}`), &item))

	item.Size = "2g"
	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"size":"2g"`)
	assert.Contains(t, string(out), `"productId":17`)
}

func TestCartItem_KeepsNullProductID(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"productId":null,"productName":"Ti","size":"1g","quantity":1,"price":30}`), &item))
	assert.Equal(t, Ref(""), item.ProductID)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"productId":null`)
}

func TestCartItem_RejectsObjectSize(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{"productName":"Ti","size":{"g":1}}`), &item)
	require.Error(t, err)
}

func TestCartItem_IsMigrated(t *testing.T) {
	item := CartItem{CategoryName: "products"}
	assert.False(t, item.IsMigrated())
	item.ProductTypeName = "Ti"
	assert.True(t, item.IsMigrated())
}

func TestOrder_KeepsUnknownKeys(t *testing.T) {
	raw := `{"id":"o-1","clientId":4,"clientName":"Ana","items":[],"total":30,"status":"Unpaid","date":"2024-01-02","paymentMethod":"cash","notes":{"a":1}}`

	var order Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))
	assert.Equal(t, Ref("o-1"), order.ID)
	assert.Equal(t, Ref("4"), order.ClientID)
	assert.Equal(t, OrderUnpaid, order.Status)
	require.Len(t, order.Extra, 2)

	out, err := json.Marshal(order)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "cash", back["paymentMethod"])
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, back["notes"])
	assert.Equal(t, "Ana", back["clientName"])
	assert.Equal(t, float64(4), back["clientId"])
	assert.Equal(t, "o-1", back["id"])
}

func TestOrder_RoundTripKeepsNumericIDsAndItemKeys(t *testing.T) {
	raw := `{"id":3,"clientId":4,"clientName":"Ana","items":[{"productId":5,"productName":"Ti","size":"1g","quantity":1,"price":30,"note":"gift"}],"total":30,"status":"Completed","date":"2024-01-02"}`

	var order Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))
	out, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestUnitKind_Valid(t *testing.T) {
	assert.True(t, UnitGram.Valid())
	assert.True(t, UnitPiece.Valid())
	assert.False(t, UnitKind("kg").Valid())
}

func TestNavigation_PushAndBack(t *testing.T) {
	root := NewNavigation()
	require.True(t, root.Valid())

	atProduct := root.SelectCategory("products")
	assert.Equal(t, LayerProduct, atProduct.CurrentLayer)
	assert.Equal(t, "products", atProduct.SelectedCategory)
	assert.True(t, atProduct.Valid())
	require.Len(t, atProduct.History, 1)

	atSize := atProduct.SelectProduct("Vi")
	assert.Equal(t, LayerSize, atSize.CurrentLayer)
	assert.True(t, atSize.Valid())
	require.Len(t, atSize.History, 2)
	assert.Equal(t, LayerCategory, atSize.History[0].CurrentLayer)
	assert.Equal(t, LayerProduct, atSize.History[1].CurrentLayer)

	back := atSize.Back()
	assert.Equal(t, LayerProduct, back.CurrentLayer)
	assert.Equal(t, "products", back.SelectedCategory)
	assert.Empty(t, back.SelectedProduct)
	assert.Len(t, back.History, 1)

	home := back.Back()
	assert.Equal(t, LayerCategory, home.CurrentLayer)
	assert.Empty(t, home.History)

	assert.Equal(t, home, home.Back())
}

func TestNavigation_BackDoesNotAliasHistory(t *testing.T) {
	atSize := NewNavigation().SelectCategory("products").SelectProduct("Ti")
	back := atSize.Back()
	_ = back.SelectProduct("Vi")

	assert.Equal(t, "Ti", atSize.SelectedProduct)
	require.Len(t, atSize.History, 2)
	assert.Equal(t, LayerProduct, atSize.History[1].CurrentLayer)
}

func TestNavigation_Valid(t *testing.T) {
	assert.False(t, NavigationState{CurrentLayer: LayerProduct}.Valid())
	assert.False(t, NavigationState{CurrentLayer: LayerSize, SelectedCategory: "products"}.Valid())
	assert.False(t, NavigationState{CurrentLayer: "shelf"}.Valid())
}
