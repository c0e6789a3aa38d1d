package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  }
]`

const skyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "assets", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "receiver", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "assets", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "Withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "usr", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "wad", "type": "uint256"}
    ],
    "name": "DaiToUsds",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "usr", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "wad", "type": "uint256"}
    ],
    "name": "UsdsToDai",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "usr", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "mkrAmt", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "skyAmt", "type": "uint256"}
    ],
    "name": "MkrToSky",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "usr", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "skyAmt", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "mkrAmt", "type": "uint256"}
    ],
    "name": "SkyToMkr",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"}
    ],
    "name": "SellGem",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"}
    ],
    "name": "BuyGem",
    "type": "event"
  }
]`

const curvePlainFactoryABIJSON = `[
  {
    "inputs": [
      {"name": "_name", "type": "string"},
      {"name": "_symbol", "type": "string"},
      {"name": "_coins", "type": "address[4]"},
      {"name": "_A", "type": "uint256"},
      {"name": "_fee", "type": "uint256"}
    ],
    "name": "deploy_plain_pool",
    "outputs": [{"name": "", "type": "address"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const curveStableswapNGFactoryABIJSON = `[
  {
    "inputs": [
      {"name": "_name", "type": "string"},
      {"name": "_symbol", "type": "string"},
      {"name": "_coins", "type": "address[]"},
      {"name": "_A", "type": "uint256"},
      {"name": "_fee", "type": "uint256"},
      {"name": "_offpeg_fee_multiplier", "type": "uint256"},
      {"name": "_ma_exp_time", "type": "uint256"},
      {"name": "_implementation_idx", "type": "uint256"},
      {"name": "_asset_types", "type": "uint8[]"},
      {"name": "_method_ids", "type": "bytes4[]"},
      {"name": "_oracles", "type": "address[]"}
    ],
    "name": "deploy_plain_pool",
    "outputs": [{"name": "", "type": "address"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const curveTwocryptoNGFactoryABIJSON = `[
  {
    "inputs": [
      {"name": "_name", "type": "string"},
      {"name": "_symbol", "type": "string"},
      {"name": "_coins", "type": "address[2]"},
      {"name": "implementation_id", "type": "uint256"},
      {"name": "A", "type": "uint256"},
      {"name": "gamma", "type": "uint256"},
      {"name": "mid_fee", "type": "uint256"},
      {"name": "out_fee", "type": "uint256"},
      {"name": "fee_gamma", "type": "uint256"},
      {"name": "allowed_extra_profit", "type": "uint256"},
      {"name": "adjustment_step", "type": "uint256"},
      {"name": "ma_exp_time", "type": "uint256"},
      {"name": "initial_price", "type": "uint256"}
    ],
    "name": "deploy_pool",
    "outputs": [{"name": "", "type": "address"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const curveTricryptoNGFactoryABIJSON = `[
  {
    "inputs": [
      {"name": "_name", "type": "string"},
      {"name": "_symbol", "type": "string"},
      {"name": "_coins", "type": "address[3]"},
      {"name": "_weth", "type": "address"},
      {"name": "implementation_id", "type": "uint256"},
      {"name": "A", "type": "uint256"},
      {"name": "gamma", "type": "uint256"},
      {"name": "mid_fee", "type": "uint256"},
      {"name": "out_fee", "type": "uint256"},
      {"name": "fee_gamma", "type": "uint256"},
      {"name": "allowed_extra_profit", "type": "uint256"},
      {"name": "adjustment_step", "type": "uint256"},
      {"name": "ma_exp_time", "type": "uint256"},
      {"name": "initial_prices", "type": "uint256[2]"}
    ],
    "name": "deploy_pool",
    "outputs": [{"name": "", "type": "address"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	erc20ABI                    = &lazyABI{json: erc20ABIJSON}
	skyABI                      = &lazyABI{json: skyABIJSON}
	curvePlainFactoryABI        = &lazyABI{json: curvePlainFactoryABIJSON}
	curveStableswapNGFactoryABI = &lazyABI{json: curveStableswapNGFactoryABIJSON}
	curveTwocryptoNGFactoryABI  = &lazyABI{json: curveTwocryptoNGFactoryABIJSON}
	curveTricryptoNGFactoryABI  = &lazyABI{json: curveTricryptoNGFactoryABIJSON}
)

// ERC20ABI returns the parsed ERC-20 event ABI.
func ERC20ABI() (abi.ABI, error) {
	return erc20ABI.get()
}

// SkyABI returns the parsed ABI of the Sky vault, converter and PSM events.
func SkyABI() (abi.ABI, error) {
	return skyABI.get()
}

// CurvePlainFactoryABI returns the legacy plain pool factory ABI.
func CurvePlainFactoryABI() (abi.ABI, error) {
	return curvePlainFactoryABI.get()
}

// CurveStableswapNGFactoryABI returns the stableswap-ng factory ABI.
func CurveStableswapNGFactoryABI() (abi.ABI, error) {
	return curveStableswapNGFactoryABI.get()
}

// CurveTwocryptoNGFactoryABI returns the twocrypto-ng factory ABI.
func CurveTwocryptoNGFactoryABI() (abi.ABI, error) {
	return curveTwocryptoNGFactoryABI.get()
}

// CurveTricryptoNGFactoryABI returns the tricrypto-ng factory ABI.
func CurveTricryptoNGFactoryABI() (abi.ABI, error) {
	return curveTricryptoNGFactoryABI.get()
}
