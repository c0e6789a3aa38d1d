// Package sky tracks the Sky (formerly MakerDAO) savings vaults, token
// converters and peg stability modules.
package sky

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"protocolScope/internal/dex"
	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
	"protocolScope/internal/protocol"
)

const Name = "sky"

const (
	RoleSDAI             = "sdai"
	RoleSUSDS            = "susds"
	RoleDaiUsdsConverter = "dai_usds_converter"
	RoleMkrSkyConverter  = "mkr_sky_converter"
	RoleDaiLitePSM       = "dai_lite_psm"
	RoleUsdsPSMWrapper   = "usds_psm_wrapper"
)

var roles = []string{
	RoleSDAI,
	RoleSUSDS,
	RoleDaiUsdsConverter,
	RoleMkrSkyConverter,
	RoleDaiLitePSM,
	RoleUsdsPSMWrapper,
}

// Mainnet token addresses.
var (
	DAI   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	USDS  = common.HexToAddress("0xdc035d45d973e3ec169d2276ddab16f1e407384f")
	SDAI  = common.HexToAddress("0x83f20f44975d03b1b09e64809b757c47f942beea")
	SUSDS = common.HexToAddress("0xa3931d71877c0e7a3148cb7eb4463524fec27fbd")
	MKR   = common.HexToAddress("0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2")
	SKY   = common.HexToAddress("0x56072c95faa701256059aa122697b133aded9279")
	USDC  = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
)

// tokenPairs is the fixed token ordering of each role. Vaults list the
// underlying asset first, converters the forward direction source first.
var tokenPairs = map[string][2]common.Address{
	RoleSDAI:             {DAI, SDAI},
	RoleSUSDS:            {USDS, SUSDS},
	RoleDaiUsdsConverter: {DAI, USDS},
	RoleMkrSkyConverter:  {MKR, SKY},
	RoleDaiLitePSM:       {DAI, USDC},
	RoleUsdsPSMWrapper:   {USDS, USDC},
}

// startBlocks are the mainnet deployment heights of each role.
var startBlocks = map[string]uint64{
	RoleSDAI:             16_428_133,
	RoleSUSDS:            20_677_434,
	RoleDaiUsdsConverter: 20_663_734,
	RoleMkrSkyConverter:  20_663_740,
	RoleDaiLitePSM:       20_283_666,
	RoleUsdsPSMWrapper:   20_770_196,
}

// forward tells whether a converter event moves tokens in pair order.
var forward = map[string]bool{
	"DaiToUsds": true,
	"UsdsToDai": false,
	"MkrToSky":  true,
	"SkyToMkr":  false,
}

var (
	vaultType = model.ProtocolType{
		Name:               "sky_vault",
		FinancialType:      model.FinancialTypeStake,
		ImplementationType: model.ImplementationTypeVm,
		AttributeSchema:    []string{},
	}
	converterType = model.ProtocolType{
		Name:               "sky_converter",
		FinancialType:      model.FinancialTypeSwap,
		ImplementationType: model.ImplementationTypeVm,
		AttributeSchema:    []string{},
	}
	psmType = model.ProtocolType{
		Name:               "sky_psm",
		FinancialType:      model.FinancialTypeSwap,
		ImplementationType: model.ImplementationTypeVm,
		AttributeSchema:    []string{},
	}
)

func typeOf(role string) model.ProtocolType {
	switch role {
	case RoleSDAI, RoleSUSDS:
		return vaultType
	case RoleDaiUsdsConverter, RoleMkrSkyConverter:
		return converterType
	default:
		return psmType
	}
}

// Protocol is the sky protocol family.
type Protocol struct {
	decoder *dex.EventDecoder
	logger  *zap.Logger
}

// New builds the sky protocol.
func New(logger *zap.Logger) (*Protocol, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	shapes, err := dex.SkyShapes()
	if err != nil {
		return nil, fmt.Errorf("sky shapes: %w", err)
	}
	return &Protocol{
		decoder: dex.NewEventDecoder(shapes...),
		logger:  logger,
	}, nil
}

var _ protocol.Protocol = (*Protocol)(nil)

func (p *Protocol) Name() string { return Name }

func (p *Protocol) Roles() []string { return append([]string(nil), roles...) }

func (p *Protocol) SeededType() model.ProtocolType { return converterType }

func (p *Protocol) Decoder() *dex.EventDecoder { return p.decoder }

// Discover emits a component when the first account created by tx is one of
// the configured role addresses.
func (p *Protocol) Discover(cfg *params.Params, tx *model.Transaction) ([]model.ProtocolComponent, error) {
	created, ok := protocol.FirstCreation(tx)
	if !ok {
		return nil, nil
	}
	role, ok := cfg.RoleOf(created)
	if !ok {
		return nil, nil
	}
	pair := tokenPairs[role]
	component := model.ProtocolComponent{
		ID:        model.ComponentIDFromAddress(created),
		Tokens:    []common.Address{pair[0], pair[1]},
		Contracts: []common.Address{created},
		StaticAttributes: []model.Attribute{
			{Name: "role", Value: []byte(role), ChangeType: model.ChangeTypeCreation},
		},
		ChangeType:   model.ChangeTypeCreation,
		ProtocolType: typeOf(role),
	}
	p.logger.Debug("sky component discovered",
		zap.String("role", role),
		zap.String("id", component.ID),
		zap.String("tx", tx.Hash.Hex()),
	)
	return []model.ProtocolComponent{component}, nil
}

// Relevant keeps logs emitted by a configured role address.
func (p *Protocol) Relevant(cfg *params.Params, log *model.Log, _ index.ComponentReader) bool {
	_, ok := cfg.RoleOf(log.Address)
	return ok
}

// Deltas applies the sky accounting rules. PSM swaps routed through the
// USDS wrapper are attributed to the wrapper, detected by tx.To.
func (p *Protocol) Deltas(cfg *params.Params, tx *model.Transaction, event dex.Event, reader index.ComponentReader) []protocol.Leg {
	role, ok := cfg.RoleOf(event.Address)
	if !ok {
		return nil
	}
	pair := tokenPairs[role]

	switch event.Kind {
	case dex.EventVaultDeposit, dex.EventVaultWithdraw:
		id, ok := reader.ComponentID(event.Address)
		if !ok {
			return nil
		}
		if event.Kind == dex.EventVaultDeposit {
			return []protocol.Leg{
				protocol.Inflow(pair[0], id, event.Assets),
				protocol.Outflow(pair[1], id, event.Shares),
			}
		}
		return []protocol.Leg{
			protocol.Outflow(pair[0], id, event.Assets),
			protocol.Inflow(pair[1], id, event.Shares),
		}

	case dex.EventConvert:
		id, ok := reader.ComponentID(event.Address)
		if !ok {
			return nil
		}
		src, dst := pair[0], pair[1]
		if !forward[event.Name] {
			src, dst = dst, src
		}
		return []protocol.Leg{
			protocol.Inflow(src, id, event.AmountIn),
			protocol.Outflow(dst, id, event.AmountOut),
		}

	case dex.EventBuyGem, dex.EventSellGem:
		component, tokenIn := event.Address, DAI
		wrapper := cfg.Address(RoleUsdsPSMWrapper)
		if wrapper != (common.Address{}) && tx.ToAddress() == wrapper && reader.Contains(wrapper) {
			component, tokenIn = wrapper, USDS
		}
		id, ok := reader.ComponentID(component)
		if !ok {
			return nil
		}
		// The fee is charged on the DAI/USDS side: the pool keeps it on a
		// buy and withholds it on a sell.
		if event.Kind == dex.EventBuyGem {
			return []protocol.Leg{
				protocol.Inflow(tokenIn, id, gemAmount(event.Value, event.Fee, true)),
				protocol.Outflow(USDC, id, event.Value),
			}
		}
		return []protocol.Leg{
			protocol.Inflow(USDC, id, event.Value),
			protocol.Outflow(tokenIn, id, gemAmount(event.Value, event.Fee, false)),
		}
	}
	return nil
}

// gemAmount applies fee to value, flooring a sell at zero.
func gemAmount(value, fee *uint256.Int, buy bool) *uint256.Int {
	if fee == nil || fee.IsZero() {
		return value
	}
	if buy {
		return new(uint256.Int).Add(value, fee)
	}
	if fee.Gt(value) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(value, fee)
}

// StartBlock returns the deployment height of the role owning componentID.
func (p *Protocol) StartBlock(cfg *params.Params, componentID string) uint64 {
	addr, err := model.AddressFromComponentID(componentID)
	if err != nil {
		return 0
	}
	role, ok := cfg.RoleOf(addr)
	if !ok {
		return 0
	}
	return startBlocks[role]
}
