package doctrine

import (
	"crypto/sha3"
	"encoding/binary"
	"math"
)

func hashDoctrine(d Doctrine) [32]byte {
	buf := make([]byte, 0, 64)
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], uint64(d.MaxExecTicks))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.MaxRunLen))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.MaxCallDepth))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.MaxConcurrentAdaptations))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(d.MinSLOCompliance))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(d.MaxFailureRate))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.MapeKCycle))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.FoldWindow))
	buf = append(buf, tmp[:]...)
	if d.StrictSHACL {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if d.EnableCancelMIComp {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return sha3.Sum256(buf)
}
