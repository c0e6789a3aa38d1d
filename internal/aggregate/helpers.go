package aggregate

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"protocolScope/internal/model"
	"protocolScope/internal/storage/postgres"
)

func componentRow(protocol string, component model.ProtocolComponent, block uint64, txHash string) postgres.ComponentRow {
	return postgres.ComponentRow{
		ID:               component.ID,
		Protocol:         protocol,
		ProtocolType:     component.ProtocolType.Name,
		FinancialType:    string(component.ProtocolType.FinancialType),
		Tokens:           addressTexts(component.Tokens),
		Contracts:        addressTexts(component.Contracts),
		StaticAttributes: attributeMap(component.StaticAttributes),
		CreatedBlock:     block,
		CreatedTx:        txHash,
	}
}

// balanceText renders a two's-complement balance as a decimal string.
func balanceText(raw []byte) string {
	return model.DecodeSignedBigInt(raw).String()
}

func addressText(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func addressTexts(addresses []common.Address) []string {
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, addressText(address))
	}
	return out
}

// attributeMap renders attribute values as 0x hex keyed by name.
func attributeMap(attrs []model.Attribute) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		out[attr.Name] = hexutil.Encode(attr.Value)
	}
	return out
}
