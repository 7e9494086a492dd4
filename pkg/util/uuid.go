package util

import (
	"crypto/md5"
	"math/big"

	"github.com/google/uuid"
)

// DeriveUID builds a DICOM UID in the 2.25 (UUID-derived) root from
// the given parts: the same parts always yield the same UID, distinct
// parts yield distinct UIDs. The result stays within the 64-character
// UID limit.
func DeriveUID(parts ...string) string {
	hasher := md5.New()
	for _, p := range parts {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	hash := hasher.Sum(nil)
	u, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return ""
	}
	n := new(big.Int).SetBytes(u[:])
	return "2.25." + n.String()
}
