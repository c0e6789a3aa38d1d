// Package curve tracks Curve pools seeded through pool_params or deployed by
// the watched Curve factories.
package curve

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"protocolScope/internal/dex"
	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
	"protocolScope/internal/protocol"
)

const Name = "curve"

const (
	RolePlainPoolFactory      = "plain_pool_factory"
	RoleCoreStableswapFactory = "core_stableswap_factory"
	RoleStableswapNGFactory   = "stableswap_ng_factory"
	RoleTwocryptoNGFactory    = "twocrypto_ng_factory"
	RoleTricryptoNGFactory    = "tricrypto_ng_factory"
)

var roles = []string{
	RolePlainPoolFactory,
	RoleCoreStableswapFactory,
	RoleStableswapNGFactory,
	RoleTwocryptoNGFactory,
	RoleTricryptoNGFactory,
}

// poolTypes is the pool_type attribute of pools deployed by each factory.
var poolTypes = map[string]string{
	RolePlainPoolFactory:      "plain_pool",
	RoleCoreStableswapFactory: "stableswap",
	RoleStableswapNGFactory:   "stableswap_ng",
	RoleTwocryptoNGFactory:    "twocrypto_ng",
	RoleTricryptoNGFactory:    "tricrypto_ng",
}

var poolType = model.ProtocolType{
	Name:               "curve_pool",
	FinancialType:      model.FinancialTypeSwap,
	ImplementationType: model.ImplementationTypeVm,
	AttributeSchema:    []string{},
}

// Protocol is the curve protocol family.
type Protocol struct {
	decoder *dex.EventDecoder
	calls   map[string]*dex.CallDecoder
	logger  *zap.Logger
}

// New builds the curve protocol.
func New(logger *zap.Logger) (*Protocol, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	shapes, err := dex.TransferShapes()
	if err != nil {
		return nil, fmt.Errorf("curve shapes: %w", err)
	}

	factories := []struct {
		role   string
		loader func() (abi.ABI, error)
	}{
		{RolePlainPoolFactory, dex.CurvePlainFactoryABI},
		{RoleCoreStableswapFactory, dex.CurveStableswapNGFactoryABI},
		{RoleStableswapNGFactory, dex.CurveStableswapNGFactoryABI},
		{RoleTwocryptoNGFactory, dex.CurveTwocryptoNGFactoryABI},
		{RoleTricryptoNGFactory, dex.CurveTricryptoNGFactoryABI},
	}
	calls := make(map[string]*dex.CallDecoder, len(factories))
	for _, f := range factories {
		parsed, err := f.loader()
		if err != nil {
			return nil, fmt.Errorf("%s abi: %w", f.role, err)
		}
		calls[f.role] = dex.NewCallDecoder(parsed)
	}

	return &Protocol{
		decoder: dex.NewEventDecoder(shapes...),
		calls:   calls,
		logger:  logger,
	}, nil
}

var _ protocol.Protocol = (*Protocol)(nil)

func (p *Protocol) Name() string { return Name }

func (p *Protocol) Roles() []string { return append([]string(nil), roles...) }

func (p *Protocol) SeededType() model.ProtocolType { return poolType }

func (p *Protocol) Decoder() *dex.EventDecoder { return p.decoder }

// Discover emits one pool per successful deploy call to a watched factory.
// The pool is the first account created inside the call.
func (p *Protocol) Discover(cfg *params.Params, tx *model.Transaction) ([]model.ProtocolComponent, error) {
	var (
		out  []model.ProtocolComponent
		errs error
	)
	for i := range tx.Calls {
		call := &tx.Calls[i]
		if call.StateReverted {
			continue
		}
		role, ok := cfg.RoleOf(call.Address)
		if !ok {
			continue
		}
		decoder := p.calls[role]
		if !decoder.CanDecode(*call) {
			continue
		}
		deploy, err := decoder.DecodeDeploy(*call)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tx %s call %d: %w", tx.Hash.Hex(), call.Index, err))
			continue
		}
		pool, ok := createdWithin(tx, call)
		if !ok {
			p.logger.Warn("curve deploy call without account creation",
				zap.String("tx", tx.Hash.Hex()),
				zap.String("factory", call.Address.Hex()),
			)
			continue
		}
		out = append(out, model.ProtocolComponent{
			ID:        model.ComponentIDFromAddress(pool),
			Tokens:    deploy.Coins,
			Contracts: []common.Address{pool},
			StaticAttributes: []model.Attribute{
				{Name: "factory_name", Value: []byte(role), ChangeType: model.ChangeTypeCreation},
				{Name: "factory", Value: call.Address.Bytes(), ChangeType: model.ChangeTypeCreation},
				{Name: "pool_type", Value: []byte(poolTypes[role]), ChangeType: model.ChangeTypeCreation},
			},
			ChangeType:   model.ChangeTypeCreation,
			ProtocolType: poolType,
		})
	}
	return out, errs
}

func createdWithin(tx *model.Transaction, call *model.Call) (common.Address, bool) {
	for _, creation := range tx.AccountCreations {
		if creation.Ordinal < call.BeginOrdinal {
			continue
		}
		if call.EndOrdinal >= call.BeginOrdinal && creation.Ordinal > call.EndOrdinal {
			continue
		}
		return creation.Account, true
	}
	return common.Address{}, false
}

// Relevant keeps ERC-20 transfers; the indexed side is checked after decoding.
func (p *Protocol) Relevant(_ *params.Params, log *model.Log, _ index.ComponentReader) bool {
	topic0, ok := log.Topic0()
	return ok && p.decoder.CanDecode(topic0)
}

// Deltas credits the receiving pool and debits the sending pool of a
// transfer of the emitting token.
func (p *Protocol) Deltas(_ *params.Params, _ *model.Transaction, event dex.Event, reader index.ComponentReader) []protocol.Leg {
	if event.Kind != dex.EventTransfer {
		return nil
	}
	var legs []protocol.Leg
	if id, ok := reader.ComponentID(event.To); ok {
		legs = append(legs, protocol.Inflow(event.Address, id, event.Value))
	}
	if id, ok := reader.ComponentID(event.From); ok {
		legs = append(legs, protocol.Outflow(event.Address, id, event.Value))
	}
	return legs
}

// StartBlock is zero: pools only see transfers after their creation.
func (p *Protocol) StartBlock(_ *params.Params, _ string) uint64 { return 0 }
