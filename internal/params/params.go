// Package params decodes the URL-encoded protocol configuration blob.
package params

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"protocolScope/internal/model"
)

var (
	protocolKeyRe = regexp.MustCompile(`^protocol_params\[([A-Za-z0-9_]+)\]$`)
	poolKeyRe     = regexp.MustCompile(`^pool_params\[(\d+)\]\[([A-Za-z0-9_]+)\](\[\])?$`)
)

// Params is the decoded configuration of one protocol module.
type Params struct {
	roles          []string
	protocolParams map[string]common.Address
	Pools          []PoolParams
}

// PoolParams describes a manually seeded pool. Addresses stay raw until the
// component is built so a malformed entry only fails that component.
type PoolParams struct {
	Index               int
	Address             string
	TxHash              string
	Tokens              []string
	Contracts           []string
	StaticAttributeKeys []string
	StaticAttributeVals []string
	AttributeKeys       []string
	AttributeVals       []string
}

// Parse decodes blob. roles lists the protocol_params fields the protocol
// recognizes; any other field is a config error.
func Parse(blob string, roles []string) (*Params, error) {
	values, err := url.ParseQuery(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: parse params: %v", model.ErrConfig, err)
	}

	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	p := &Params{
		roles:          append([]string(nil), roles...),
		protocolParams: make(map[string]common.Address),
	}
	pools := make(map[int]*PoolParams)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if m := protocolKeyRe.FindStringSubmatch(key); m != nil {
			role := m[1]
			if _, ok := allowed[role]; !ok {
				return nil, fmt.Errorf("%w: unknown protocol param %q", model.ErrConfig, role)
			}
			if len(vals) != 1 {
				return nil, fmt.Errorf("%w: protocol param %q set %d times", model.ErrConfig, role, len(vals))
			}
			addr, err := model.ParseAddress(vals[0])
			if err != nil {
				return nil, fmt.Errorf("%w: protocol param %q: %v", model.ErrConfig, role, err)
			}
			p.protocolParams[role] = addr
			continue
		}

		if m := poolKeyRe.FindStringSubmatch(key); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("%w: pool index %q", model.ErrConfig, m[1])
			}
			pool, ok := pools[idx]
			if !ok {
				pool = &PoolParams{Index: idx}
				pools[idx] = pool
			}
			if err := pool.set(m[2], m[3] != "", vals); err != nil {
				return nil, err
			}
			continue
		}

		return nil, fmt.Errorf("%w: unknown param %q", model.ErrConfig, key)
	}

	indices := make([]int, 0, len(pools))
	for idx := range pools {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		pool := pools[idx]
		if err := pool.validate(); err != nil {
			return nil, err
		}
		p.Pools = append(p.Pools, *pool)
	}

	return p, nil
}

func (pp *PoolParams) set(field string, list bool, vals []string) error {
	scalar := func() (string, error) {
		if list || len(vals) != 1 {
			return "", fmt.Errorf("%w: pool_params[%d][%s] must be a single value", model.ErrConfig, pp.Index, field)
		}
		return strings.TrimSpace(vals[0]), nil
	}
	many := func() ([]string, error) {
		if !list {
			return nil, fmt.Errorf("%w: pool_params[%d][%s] must be a list", model.ErrConfig, pp.Index, field)
		}
		return append([]string(nil), vals...), nil
	}

	var err error
	switch field {
	case "address":
		pp.Address, err = scalar()
	case "tx_hash":
		pp.TxHash, err = scalar()
	case "tokens":
		pp.Tokens, err = many()
	case "contracts":
		pp.Contracts, err = many()
	case "static_attribute_keys":
		pp.StaticAttributeKeys, err = many()
	case "static_attribute_vals":
		pp.StaticAttributeVals, err = many()
	case "attribute_keys":
		pp.AttributeKeys, err = many()
	case "attribute_vals":
		pp.AttributeVals, err = many()
	default:
		err = fmt.Errorf("%w: unknown pool param %q", model.ErrConfig, field)
	}
	return err
}

func (pp *PoolParams) validate() error {
	if pp.Address == "" {
		return fmt.Errorf("%w: pool_params[%d] missing address", model.ErrConfig, pp.Index)
	}
	if _, err := pp.TxHashKey(); err != nil {
		return err
	}
	if len(pp.StaticAttributeKeys) != len(pp.StaticAttributeVals) {
		return fmt.Errorf("%w: pool_params[%d] has %d static attribute keys and %d values",
			model.ErrConfig, pp.Index, len(pp.StaticAttributeKeys), len(pp.StaticAttributeVals))
	}
	if len(pp.AttributeKeys) != len(pp.AttributeVals) {
		return fmt.Errorf("%w: pool_params[%d] has %d attribute keys and %d values",
			model.ErrConfig, pp.Index, len(pp.AttributeKeys), len(pp.AttributeVals))
	}
	return nil
}

// TxHashKey returns the creation transaction hash as lowercase hex without prefix.
func (pp *PoolParams) TxHashKey() (string, error) {
	raw := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(pp.TxHash, "0x"), "0X"))
	if len(raw) != 2*common.HashLength {
		return "", fmt.Errorf("%w: pool_params[%d] tx_hash %q", model.ErrConfig, pp.Index, pp.TxHash)
	}
	if _, err := hexutil.Decode("0x" + raw); err != nil {
		return "", fmt.Errorf("%w: pool_params[%d] tx_hash %q", model.ErrConfig, pp.Index, pp.TxHash)
	}
	return raw, nil
}

// Address returns the address configured for role, or the zero address.
func (p *Params) Address(role string) common.Address {
	return p.protocolParams[role]
}

// RoleOf returns the role configured with addr.
func (p *Params) RoleOf(addr common.Address) (string, bool) {
	if addr == (common.Address{}) {
		return "", false
	}
	for _, role := range p.roles {
		if p.protocolParams[role] == addr {
			return role, true
		}
	}
	return "", false
}

// ExplicitByTx indexes the seeded pools by creation tx hash.
func (p *Params) ExplicitByTx() map[string][]PoolParams {
	out := make(map[string][]PoolParams, len(p.Pools))
	for _, pool := range p.Pools {
		key, err := pool.TxHashKey()
		if err != nil {
			continue
		}
		out[key] = append(out[key], pool)
	}
	return out
}
