package catalog

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

// tronAddressVersion is the leading byte of every base58check TRON address.
const tronAddressVersion = 0x41

// IsEthAddress validates a hex account address (with or without 0x).
func IsEthAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// IsTronAddress validates a base58check TRON address.
func IsTronAddress(addr string) bool {
	if len(addr) != 34 || addr[0] != 'T' {
		return false
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return false
	}
	return version == tronAddressVersion && len(payload) == common.AddressLength
}

// IsFamilyAddress checks addr against the address format of f.
func IsFamilyAddress(f Family, addr string) bool {
	switch f {
	case FamilyERC20:
		return IsEthAddress(addr)
	case FamilyTRC20:
		return IsTronAddress(addr)
	default:
		return false
	}
}
