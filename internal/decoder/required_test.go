package decoder

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
)

const (
	refs       = `"market":{"inner":"0xa1"},"position":{"inner":"0xb1"}`
	vaultRefs  = `"collection":{"inner":"0xc0"},"vault":{"inner":"0xc1"}`
	signed     = `{"negative":false,"magnitude":"1"}`
	tpslEvent  = `{` + refs + `,"tpsl":{"inner":"0xb2"},"is_long":true,"take_profit_price":"2500","stop_loss_price":"1800"}`
	tpslRef    = `{` + refs + `,"tpsl":{"inner":"0xb2"}}`
	orderEvent = `{` + refs + `,"limit_order":{"inner":"0xb3"},"is_decrease_only":false,"is_long":true,"position_size":"4",
		"margin_amount":"10","trigger_price":"1950","triggers_above":false,"max_price_slippage":"0.01","expiration":"1704153600"}`
	orderRef     = `{` + refs + `,"limit_order":{"inner":"0xb3"}}`
	rateLimiter  = `{"prev_qty":"1","window_start_sec":"1704067200","cur_qty":"2","config":{"window_duration_sec":"3600","max_outflow":"100"}}`
	marketConfig = `{"fees":{"min_taker_fee":"0.001","max_taker_fee":"0.002","min_maker_fee":"0.0005","max_maker_fee":"0.001"},
		"funding":{"min_funding_rate":"0","max_funding_rate":"0.01","base_funding_rate":"0.001","funding_interval":"3600"},
		"max_oi":"1000","max_oi_imbalance":"500","maintenance_margin":"0.05","max_leverage":"50",
		"min_order_size":"0.1","max_order_size":"100","min_margin_amount":"1"}`
	vaultConfig = `{"interest_per_second":"1","initial_collateralization_rate":"1.5","maintenance_collateralization_rate":"1.2",
		"liquidation_multiplier":"1.1","borrow_fee":"0.005","protocol_liquidation_fee":"0.01"}`
)

// completePayloads holds a payload carrying every field for each supported kind
var completePayloads = map[Kind]string{
	KindObjectCore: `{"owner":"0xa11ce","allow_ungated_transfer":false}`,
	KindTokenBurn:  `{"collection":"0xc0","index":"1","token":"0xb3","previous_owner":"0xb0b"}`,

	KindMarket: `{"margin_token":{"inner":"0x5"},"perp_symbol":"BTC","total_long_margin":"1","total_short_margin":"1",
		"long_oi":"1","short_oi":"1","next_funding_rate":` + signed + `,"last_funding_round":"1",
		"is_long_close_only":false,"is_short_close_only":false,"config":` + marketConfig + `}`,
	KindPosition: `{"market":{"inner":"0xa1"},"last_settled_price":"2000","last_open_timestamp":"1704067200","side":"1",
		"margin_amount":"10","unsettled_margin":"0","total_strategy_margin_amount":"0","position_size":"100",
		"last_funding_accumulated":` + signed + `,"strategy_refs":[]}`,
	KindStrategy:   `{` + refs + `,"strategy_margin_amount":"25","trigger_payment_amount":"0.02"}`,
	KindTpsl:       `{"take_profit_price":"2500","stop_loss_price":"1800","is_long":true}`,
	KindLimitOrder: `{"is_decrease_only":false,"position_size":"4","is_long":true,"trigger_price":"1950","triggers_above":false,"max_price_slippage":"0.01","expiration":"1704153600"}`,

	KindUpdateFunding:        `{"market":{"inner":"0xa1"},"next_funding_rate":` + signed + `,"long_funding":` + signed + `,"short_funding":` + signed + `}`,
	KindOpenPosition:         `{` + refs + `,"opening_price":"2000","is_long":true,"margin_amount":"10","position_size":"100","fee":"0.1"}`,
	KindClosePosition:        `{` + refs + `,"is_long":true,"position_size":"100","closing_price":"2100","fee":"0.1","pnl":` + signed + `}`,
	KindIncreaseMargin:       `{` + refs + `,"margin_amount":"5"}`,
	KindDecreaseMargin:       `{` + refs + `,"margin_amount":"5"}`,
	KindIncreasePositionSize: `{` + refs + `,"is_long":true,"amount":"10","new_opening_price":"2010","fee":"0.1"}`,
	KindDecreasePositionSize: `{` + refs + `,"is_long":true,"amount":"10","closing_price":"2010","fee":"0.1"}`,
	KindLiquidatePosition: `{` + refs + `,"is_long":false,"position_size":"100","closing_price":"1500","liquidation_fee":"1",
		"remaining_maintenance_margin":"0","protocol_fee":"0.5","closing_fee":"0.1","winnings":` + signed + `}`,
	KindSettlePnl: `{` + refs + `,"pnl":` + signed + `}`,

	KindPlaceTpsl:                  tpslEvent,
	KindUpdateTpsl:                 tpslEvent,
	KindCancelTpsl:                 tpslRef,
	KindTriggerTpsl:                tpslRef,
	KindIncreaseTpslTriggerPayment: `{` + refs + `,"tpsl":{"inner":"0xb2"},"increase_amount":"0.3"}`,
	KindDecreaseTpslTriggerPayment: `{` + refs + `,"tpsl":{"inner":"0xb2"},"decrease_amount":"0.3"}`,

	KindPlaceLimitOrder:                  orderEvent,
	KindUpdateLimitOrder:                 orderEvent,
	KindCancelLimitOrder:                 orderRef,
	KindTriggerLimitOrder:                orderRef,
	KindIncreaseLimitOrderTriggerPayment: `{` + refs + `,"limit_order":{"inner":"0xb3"},"increase_amount":"0.1"}`,
	KindDecreaseLimitOrderTriggerPayment: `{` + refs + `,"limit_order":{"inner":"0xb3"},"decrease_amount":"0.1"}`,

	KindVaultCollection: `{"collateral_token":{"inner":"0x6"},"borrow_token":{"inner":"0x7"},"total_collateral":"100",
		"borrow":{"elastic":"10","base":"9"},"global_debt_part":{"amount":"9"},"last_interest_payment":"1704067200",
		"cached_exchange_rate":"1","config":` + vaultConfig + `}`,
	KindVault:     `{"collection":{"inner":"0xc0"},"collateral":{"inner":"0x6"},"collateral_amount":"50","borrow_part":{"amount":"3"}}`,
	KindFeeStore:  `{"net_accumulated_fees":"12.5"}`,
	KindDebtStore: `{"debt":{"elastic":"1000","base":"990"},"burn_rate_limiter":` + rateLimiter + `,"mint_rate_limiter":` + rateLimiter + `}`,

	KindAddCollateral:    `{` + vaultRefs + `,"collateral_amount":"5"}`,
	KindRemoveCollateral: `{` + vaultRefs + `,"collateral_amount":"5"}`,
	KindBorrow:           `{` + vaultRefs + `,"borrow_amount":"3","fee_amount":"0.01"}`,
	KindRepay:            `{` + vaultRefs + `,"borrow_amount":"3","fee_amount":"0"}`,
	KindLiquidation: `{` + vaultRefs + `,"collateral_amount":"5","borrow_amount":"3","protocol_liquidation_fee":"0.1",
		"socialized_amount":"0","collateralization_rate_before":"1.1","collateralization_rate_after":"1.3"}`,
	KindInterestRateChange: `{"collection":{"inner":"0xc0"},"new_interest_per_second":"2"}`,
}

// fieldPaths lists the dotted path of every key in a json object, nested objects included
func fieldPaths(t *testing.T, payload string) []string {
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &obj))

	var paths []string
	var walk func(prefix string, obj map[string]any)
	walk = func(prefix string, obj map[string]any) {
		for key, value := range obj {
			paths = append(paths, prefix+key)
			if nested, ok := value.(map[string]any); ok {
				walk(prefix+key+".", nested)
			}
		}
	}
	walk("", obj)
	sort.Strings(paths)
	return paths
}

// withField deletes the field at path when remove is set and sets it to value otherwise
func withField(t *testing.T, payload string, path string, value any, remove bool) []byte {
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &obj))

	keys := strings.Split(path, ".")
	parent := obj
	for _, key := range keys[:len(keys)-1] {
		parent = parent[key].(map[string]any)
	}
	last := keys[len(keys)-1]
	if remove {
		delete(parent, last)
	} else {
		parent[last] = value
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func TestDecode_CompletePayloads(t *testing.T) {
	d := newTestDecoder(t)

	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			payload, ok := completePayloads[kind]
			require.True(t, ok, "no payload for %s", kind)

			decoded, err := d.Decode(1, d.tag(kind), []byte(payload), kind.IsEvent())
			require.NoError(t, err)
			require.NotNil(t, decoded)
			assert.Equal(t, kind, decoded.Kind)
		})
	}
}

func TestDecode_MissingField(t *testing.T) {
	d := newTestDecoder(t)

	for _, kind := range Kinds() {
		payload := completePayloads[kind]
		for _, path := range fieldPaths(t, payload) {
			t.Run(kind.String()+"/"+path, func(t *testing.T) {
				tag := d.tag(kind)

				_, err := d.Decode(1, tag, withField(t, payload, path, nil, true), kind.IsEvent())
				var decodeErr *domain.DecodeError
				require.ErrorAs(t, err, &decodeErr)
				assert.Equal(t, tag, decodeErr.Tag)
				assert.Contains(t, err.Error(), "missing field "+path)

				_, err = d.Decode(1, tag, withField(t, payload, path, nil, false), kind.IsEvent())
				require.ErrorAs(t, err, &decodeErr)
				assert.Contains(t, err.Error(), "missing field "+path)
			})
		}
	}
}

func TestDecode_OpenPositionWithReferencesOnly(t *testing.T) {
	d := newTestDecoder(t)

	_, err := d.Decode(1, d.tag(KindOpenPosition), []byte(`{`+refs+`}`), true)
	var decodeErr *domain.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, err.Error(), "missing field opening_price")
}

func TestRequireFields(t *testing.T) {
	type inner struct {
		Amount string `json:"amount"`
	}
	type payload struct {
		Name     string `json:"name"`
		Label    string `json:"label,omitempty"`
		Inner    inner  `json:"inner"`
		Internal string `json:"-"`
		skipped  string
	}
	typ := reflect.TypeOf(payload{})

	require.NoError(t, requireFields([]byte(`{"name":"a","inner":{"amount":"1"}}`), typ))
	require.NoError(t, requireFields([]byte(`{"name":"a","label":null,"inner":{"amount":"1"}}`), typ))

	assert.EqualError(t, requireFields([]byte(`{"inner":{"amount":"1"}}`), typ), "missing field name")
	assert.EqualError(t, requireFields([]byte(`{"name":"a","inner":{}}`), typ), "missing field inner.amount")
	assert.EqualError(t, requireFields([]byte(`{"name":"a","inner":null}`), typ), "missing field inner")
	assert.EqualError(t, requireFields([]byte(`null`), typ), "payload is null")
	assert.Error(t, requireFields([]byte(`[]`), typ))
	assert.Error(t, requireFields([]byte(`{"name":"a","inner":"x"}`), typ))
}
