package dex

import "fmt"

// SkyShapes returns the Sky event shapes in match order.
func SkyShapes() ([]Shape, error) {
	skyABI, err := SkyABI()
	if err != nil {
		return nil, fmt.Errorf("parse sky abi: %w", err)
	}
	ev := skyABI.Events
	return []Shape{
		{Event: ev["Deposit"], Kind: EventVaultDeposit, build: buildVault},
		{Event: ev["Withdraw"], Kind: EventVaultWithdraw, build: buildVault},
		{Event: ev["DaiToUsds"], Kind: EventConvert, build: buildWadConvert},
		{Event: ev["UsdsToDai"], Kind: EventConvert, build: buildWadConvert},
		{Event: ev["MkrToSky"], Kind: EventConvert, build: buildConvert("mkrAmt", "skyAmt")},
		{Event: ev["SkyToMkr"], Kind: EventConvert, build: buildConvert("skyAmt", "mkrAmt")},
		{Event: ev["BuyGem"], Kind: EventBuyGem, build: buildGem},
		{Event: ev["SellGem"], Kind: EventSellGem, build: buildGem},
	}, nil
}

// TransferShapes returns the ERC-20 Transfer shape. ERC-721 transfers share
// topic0 but index the token id, so the arity check rejects them.
func TransferShapes() ([]Shape, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return []Shape{
		{Event: erc20.Events["Transfer"], Kind: EventTransfer, build: buildTransfer},
	}, nil
}

func buildVault(values map[string]interface{}) (Event, error) {
	assets, err := asUint256(values, "assets")
	if err != nil {
		return Event{}, err
	}
	shares, err := asUint256(values, "shares")
	if err != nil {
		return Event{}, err
	}
	owner, err := asAddress(values, "owner")
	if err != nil {
		return Event{}, err
	}
	return Event{Owner: owner, Assets: assets, Shares: shares}, nil
}

func buildWadConvert(values map[string]interface{}) (Event, error) {
	wad, err := asUint256(values, "wad")
	if err != nil {
		return Event{}, err
	}
	usr, err := asAddress(values, "usr")
	if err != nil {
		return Event{}, err
	}
	return Event{Owner: usr, AmountIn: wad, AmountOut: wad.Clone()}, nil
}

func buildConvert(in, out string) func(map[string]interface{}) (Event, error) {
	return func(values map[string]interface{}) (Event, error) {
		amountIn, err := asUint256(values, in)
		if err != nil {
			return Event{}, err
		}
		amountOut, err := asUint256(values, out)
		if err != nil {
			return Event{}, err
		}
		usr, err := asAddress(values, "usr")
		if err != nil {
			return Event{}, err
		}
		return Event{Owner: usr, AmountIn: amountIn, AmountOut: amountOut}, nil
	}
}

func buildGem(values map[string]interface{}) (Event, error) {
	owner, err := asAddress(values, "owner")
	if err != nil {
		return Event{}, err
	}
	value, err := asUint256(values, "value")
	if err != nil {
		return Event{}, err
	}
	fee, err := asUint256(values, "fee")
	if err != nil {
		return Event{}, err
	}
	return Event{Owner: owner, Value: value, Fee: fee}, nil
}

func buildTransfer(values map[string]interface{}) (Event, error) {
	from, err := asAddress(values, "from")
	if err != nil {
		return Event{}, err
	}
	to, err := asAddress(values, "to")
	if err != nil {
		return Event{}, err
	}
	value, err := asUint256(values, "value")
	if err != nil {
		return Event{}, err
	}
	return Event{From: from, To: to, Value: value}, nil
}
