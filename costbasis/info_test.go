package costbasis

import (
	"testing"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spendInfo(t *testing.T) Info {
	c := newCalc(TaxfreePeriod(100))
	c.Obtain(asset.ETH, d("1"), 0, d("10.5"), 3)
	c.Obtain(asset.ETH, d("2"), 150, d("20"), 4)
	return c.CalculateSpendCostBasis(d("2"), asset.ETH, 200)
}

func TestInfoPersistsMatches(t *testing.T) {
	info := spendInfo(t)

	b, err := info.MarshalJSON()
	require.NoError(t, err)
	restored, err := UnmarshalInfo(b)
	require.NoError(t, err)

	assert.Equal(t, info.IsComplete, restored.IsComplete)
	require.Len(t, restored.MatchedAcquisitions, 2)
	for i, m := range restored.MatchedAcquisitions {
		orig := info.MatchedAcquisitions[i]
		assert.True(t, orig.Amount.Equal(m.Amount))
		assert.Equal(t, orig.Taxable, m.Taxable)
		assert.Equal(t, orig.Event.Timestamp, m.Event.Timestamp)
		assert.Equal(t, orig.Event.Index, m.Event.Index)
		assert.True(t, orig.Event.Rate.Equal(m.Event.Rate))
		assert.True(t, orig.Event.Amount.Equal(m.Event.Amount))
	}

	// totals are not persisted
	assert.True(t, restored.TaxableAmount.IsZero())
	assert.True(t, restored.TaxableBoughtCost.IsZero())
	assert.True(t, restored.TaxfreeBoughtCost.IsZero())
}

func TestAcquisitionEventKeys(t *testing.T) {
	lot := NewAcquisitionEvent(d("1.5"), 42, d("3"), 7)
	m := lot.Serialize()
	assert.Equal(t, int64(42), m["timestamp"])
	assert.Equal(t, "1.5", m["full_amount"])
	assert.Equal(t, "3", m["rate"])
	assert.Equal(t, 7, m["index"])
}

func TestDeserializeMissingField(t *testing.T) {
	full := func() map[string]interface{} {
		return spendInfo(t).Serialize()
	}

	for _, tc := range []struct {
		name  string
		field string
		strip func(map[string]interface{})
	}{
		{"is_complete", "is_complete", func(m map[string]interface{}) { delete(m, "is_complete") }},
		{"matched_acquisitions", "matched_acquisitions", func(m map[string]interface{}) { delete(m, "matched_acquisitions") }},
		{"match amount", "amount", func(m map[string]interface{}) {
			delete(m["matched_acquisitions"].([]interface{})[0].(map[string]interface{}), "amount")
		}},
		{"match taxable", "taxable", func(m map[string]interface{}) {
			delete(m["matched_acquisitions"].([]interface{})[1].(map[string]interface{}), "taxable")
		}},
		{"lot full_amount", "full_amount", func(m map[string]interface{}) {
			match := m["matched_acquisitions"].([]interface{})[0].(map[string]interface{})
			delete(match["event"].(map[string]interface{}), "full_amount")
		}},
		{"lot index", "index", func(m map[string]interface{}) {
			match := m["matched_acquisitions"].([]interface{})[0].(map[string]interface{})
			delete(match["event"].(map[string]interface{}), "index")
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := full()
			tc.strip(m)
			_, err := DeserializeInfo(m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingField))
			var de *DeserializationError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestDeserializeMalformed(t *testing.T) {
	_, err := DeserializeInfo(map[string]interface{}{
		"is_complete":          "yes",
		"matched_acquisitions": []interface{}{},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingField))
}

func TestInfoStrings(t *testing.T) {
	info := spendInfo(t)
	converter := func(ts types.Timestamp) string { return ts.Time().UTC().Format("2006-01-02") }

	taxable, free := info.Strings(converter)
	assert.Equal(t, "1 / 2  acquired at 1970-01-01 for price: 20", taxable)
	assert.Equal(t, "1 / 1  acquired at 1970-01-01 for price: 10.5", free)

	info.IsComplete = false
	taxable, _ = info.Strings(converter)
	assert.Equal(t, "Incomplete cost basis information for spend. 1 / 2  acquired at 1970-01-01 for price: 20", taxable)

	empty := Info{}
	taxable, free = empty.Strings(converter)
	assert.Equal(t, "Incomplete cost basis information for spend.", taxable)
	assert.Equal(t, "Incomplete cost basis information for spend.", free)
}
