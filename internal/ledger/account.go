package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeReserve AccountSubType = iota // free reserve-asset balance
	SubTypeDebt                          // debt-token balance

	// System sub-types
	SubTypePositions        // collateral locked in open positions
	SubTypeRewardCollateral // accrued protocol rewards, reserve asset
	SubTypeRewardDebt       // accrued protocol rewards, debt token

	// External boundary sub-types
	SubTypeExternalDeposits
	SubTypeExternalWithdrawals
	SubTypeExternalDebtSupply // counterweight for minted debt tokens
)

// AssetID maps asset symbols to numeric IDs for compact keys
type AssetID uint16

const (
	AssetReserve AssetID = 1 // ETH
	AssetDebt    AssetID = 2 // DUSD
)

var (
	assetToID = map[string]AssetID{
		"ETH":  AssetReserve,
		"DUSD": AssetDebt,
	}
	idToAsset = map[AssetID]string{
		AssetReserve: "ETH",
		AssetDebt:    "DUSD",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, zero for system/external accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath rebuilds an AccountKey from its AccountPath form. Used
// when restoring tracker balances from a snapshot.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")

	switch parts[0] {
	case "user":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed user account path %q", path)
		}
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("malformed user id in path %q: %w", path, err)
		}
		sub, asset, err := parseSubTypeAsset(parts[2], parts[3])
		if err != nil {
			return AccountKey{}, fmt.Errorf("path %q: %w", path, err)
		}
		return NewUserAccountKey(uid, sub, asset), nil
	case "system", "external":
		if len(parts) != 3 {
			return AccountKey{}, fmt.Errorf("malformed account path %q", path)
		}
		sub, asset, err := parseSubTypeAsset(parts[1], parts[2])
		if err != nil {
			return AccountKey{}, fmt.Errorf("path %q: %w", path, err)
		}
		if parts[0] == "system" {
			return NewSystemAccountKey(sub, asset), nil
		}
		return NewExternalAccountKey(sub, asset), nil
	}
	return AccountKey{}, fmt.Errorf("unknown account scope in path %q", path)
}

func parseSubTypeAsset(subName, assetName string) (AccountSubType, AssetID, error) {
	asset, ok := GetAssetID(assetName)
	if !ok {
		return 0, 0, fmt.Errorf("unknown asset %q", assetName)
	}
	for _, sub := range []AccountSubType{
		SubTypeReserve, SubTypeDebt, SubTypePositions,
		SubTypeRewardCollateral, SubTypeRewardDebt,
		SubTypeExternalDeposits, SubTypeExternalWithdrawals, SubTypeExternalDebtSupply,
	} {
		if (AccountKey{SubType: sub}).subTypeName() == subName {
			return sub, asset, nil
		}
	}
	return 0, 0, fmt.Errorf("unknown account sub-type %q", subName)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeReserve:
		return "reserve"
	case SubTypeDebt:
		return "debt"
	case SubTypePositions:
		return "positions"
	case SubTypeRewardCollateral:
		return "reward_collateral"
	case SubTypeRewardDebt:
		return "reward_debt"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	case SubTypeExternalDebtSupply:
		return "debt_supply"
	default:
		return "unknown"
	}
}
