package params

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/model"
)

const threePoolParams = "pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7" +
	"&pool_params[0][tx_hash]=20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6" +
	"&pool_params[0][tokens][]=6b175474e89094c44da98b954eedeac495271d0f" +
	"&pool_params[0][tokens][]=a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" +
	"&pool_params[0][tokens][]=dac17f958d2ee523a2206206994597c13d831ec7" +
	"&pool_params[0][static_attribute_keys][]=name" +
	"&pool_params[0][static_attribute_vals][]=3pool"

var curveRoles = []string{"plain_pool_factory", "core_stableswap_factory", "stableswap_ng_factory"}

func TestParseExplicitPool(t *testing.T) {
	p, err := Parse(threePoolParams, curveRoles)
	require.NoError(t, err)
	require.Len(t, p.Pools, 1)

	byTx := p.ExplicitByTx()
	pools, ok := byTx["20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6"]
	require.True(t, ok)
	require.Len(t, pools, 1)

	pt := model.ProtocolType{Name: "curve_pool", FinancialType: model.FinancialTypeSwap, ImplementationType: model.ImplementationTypeVm, AttributeSchema: []string{}}
	c, err := pools[0].Component(pt)
	require.NoError(t, err)
	require.Equal(t, "0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7", c.ID)
	require.Equal(t, []common.Address{
		common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"),
		common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"),
		common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"),
	}, c.Tokens)
	require.Equal(t, []common.Address{common.HexToAddress("0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7")}, c.Contracts)
	require.Len(t, c.StaticAttributes, 1)
	require.Equal(t, "name", c.StaticAttributes[0].Name)
	require.Equal(t, []byte("3pool"), []byte(c.StaticAttributes[0].Value))
	require.NoError(t, c.Validate())
}

func TestRoleOfSkipsZeroAddresses(t *testing.T) {
	blob := "protocol_params[plain_pool_factory]=0xb9fc157394af804a3578134a6585c0dc9cc990d4" +
		"&protocol_params[core_stableswap_factory]=" +
		"&protocol_params[stableswap_ng_factory]=0x"
	p, err := Parse(blob, curveRoles)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, p.Address("core_stableswap_factory"))
	require.Equal(t, common.Address{}, p.Address("stableswap_ng_factory"))

	role, ok := p.RoleOf(common.HexToAddress("0xb9fc157394af804a3578134a6585c0dc9cc990d4"))
	require.True(t, ok)
	require.Equal(t, "plain_pool_factory", role)
	_, ok = p.RoleOf(common.Address{})
	require.False(t, ok)
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string]string{
		"unknown role":       "protocol_params[router]=0xb9fc157394af804a3578134a6585c0dc9cc990d4",
		"bad role address":   "protocol_params[plain_pool_factory]=0xzz",
		"unknown top level":  "foo=bar",
		"unknown pool field": "pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7&pool_params[0][tx_hash]=20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6&pool_params[0][colour]=red",
		"attr length":        threePoolParams + "&pool_params[0][static_attribute_keys][]=extra",
		"missing tx hash":    "pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7",
		"tokens not a list":  "pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7&pool_params[0][tx_hash]=20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6&pool_params[0][tokens]=6b175474e89094c44da98b954eedeac495271d0f",
		"malformed encoding": "pool_params[0][address]=%zz",
	}
	for name, blob := range cases {
		_, err := Parse(blob, curveRoles)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, model.ErrConfig), name)
	}
}

func TestComponentAddressFormatError(t *testing.T) {
	blob := "pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7" +
		"&pool_params[0][tx_hash]=20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6" +
		"&pool_params[0][tokens][]=6b175474e8"
	p, err := Parse(blob, curveRoles)
	require.NoError(t, err)

	_, err = p.Pools[0].Component(model.ProtocolType{Name: "curve_pool"})
	require.True(t, errors.Is(err, model.ErrAddressFormat))
}

func TestAttributesZipped(t *testing.T) {
	blob := threePoolParams +
		"&pool_params[0][attribute_keys][]=stateless_contract_addr_0" +
		"&pool_params[0][attribute_vals][]=0x8f68f4810cce3194b6cb6f3d50fa58c2c9bdd1d5"
	p, err := Parse(blob, curveRoles)
	require.NoError(t, err)
	attrs := p.Pools[0].Attributes()
	require.Len(t, attrs, 1)
	require.Equal(t, "stateless_contract_addr_0", attrs[0].Name)
	require.Equal(t, model.ChangeTypeCreation, attrs[0].ChangeType)
}
