package store

import "encoding/binary"

// Prefix is the leading byte of every stored key and names its family.
type Prefix byte

const (
	// ROLES
	PrefixAdmins         Prefix = 0x01
	PrefixViewers        Prefix = 0x02
	PrefixMinters        Prefix = 0x03
	PrefixViewingKeys    Prefix = 0x04
	PrefixRevokedPermits Prefix = 0x05

	// GLOBAL
	PrefixState    Prefix = 0x10 // key: state name
	PrefixPrngSeed Prefix = 0x11
	PrefixMetadata Prefix = 0x12

	// REGISTRY
	PrefixCategory     Prefix = 0x20 // key: category index
	PrefixCategoryMap  Prefix = 0x21 // key: category name	value: category index
	PrefixVariant      Prefix = 0x22 // key: category index, variant index
	PrefixVariantMap   Prefix = 0x23 // key: category index, variant name
	PrefixDependencies Prefix = 0x24

	// STAKING
	PrefixIngredients    Prefix = 0x30
	PrefixIngredientSets Prefix = 0x31
	PrefixMaterials      Prefix = 0x32
	PrefixStakingTable   Prefix = 0x33 // key: material index
	PrefixSkullStake     Prefix = 0x34 // key: token id
	PrefixUserStake      Prefix = 0x35 // key: user address
	PrefixUserInventory  Prefix = 0x36 // key: user address

	// POTIONS
	PrefixPotion          Prefix = 0x40 // key: potion index
	PrefixPotionIndex     Prefix = 0x41 // key: potion name
	PrefixPotionContracts Prefix = 0x42

	// RAFFLE
	PrefixRaffleConfig Prefix = 0x50
	PrefixDrawn        Prefix = 0x51 // key: collection, token id
	PrefixWinner       Prefix = 0x52 // key: collection, round, index
	PrefixWinnerMap    Prefix = 0x53 // key: collection, round, token id
	PrefixCounts       Prefix = 0x54 // key: round
	PrefixRedeemed     Prefix = 0x55 // key: claim number

	// REWIND
	PrefixRewindTimestamp Prefix = 0x60 // key: token id
)

// Key builds a multilevel key. Each part is length-delimited so that a key
// built from fewer parts is a scan prefix of the keys built from more.
func Key(p Prefix, parts ...[]byte) []byte {
	size := 1
	for _, part := range parts {
		size += 2 + len(part)
	}
	key := make([]byte, 1, size)
	key[0] = byte(p)
	for _, part := range parts {
		key = binary.BigEndian.AppendUint16(key, uint16(len(part)))
		key = append(key, part...)
	}
	return key
}

// Single is the key of a singleton value in family p.
func Single(p Prefix) []byte {
	return []byte{byte(p)}
}

// Str encodes a string key part.
func Str(s string) []byte {
	return []byte(s)
}

// U8 encodes a u8 key part.
func U8(v uint8) []byte {
	return []byte{v}
}

// U16 encodes a u16 key part.
func U16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// U32 encodes a u32 key part.
func U32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}
