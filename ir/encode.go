package ir

import "encoding/binary"

// encodeNode packs a NodeIR into its fixed 64-byte wire layout:
//   index u32le | pattern u8 | flags u32le | param u32le
//   in_mask 16B | out_mask 16B | reserved padding
func encodeNode(n NodeIR) []byte {
	out := make([]byte, nodeIRWireSize)
	binary.LittleEndian.PutUint32(out[0:4], n.Index)
	out[4] = byte(n.Pattern)
	binary.LittleEndian.PutUint32(out[5:9], uint32(n.Flags))
	binary.LittleEndian.PutUint32(out[9:13], n.Param)
	binary.LittleEndian.PutUint64(out[13:21], n.InMask[0])
	binary.LittleEndian.PutUint64(out[21:29], n.InMask[1])
	binary.LittleEndian.PutUint64(out[29:37], n.OutMask[0])
	binary.LittleEndian.PutUint64(out[37:45], n.OutMask[1])
	// out[45:64] reserved, zero.
	return out
}

func decodeNode(b []byte) (NodeIR, error) {
	if len(b) != nodeIRWireSize {
		return NodeIR{}, coded(ErrMalformedRecord, "node record: bad length")
	}
	var n NodeIR
	n.Index = binary.LittleEndian.Uint32(b[0:4])
	n.Pattern = Pattern(b[4])
	n.Flags = NodeFlags(binary.LittleEndian.Uint32(b[5:9]))
	n.Param = binary.LittleEndian.Uint32(b[9:13])
	n.InMask[0] = binary.LittleEndian.Uint64(b[13:21])
	n.InMask[1] = binary.LittleEndian.Uint64(b[21:29])
	n.OutMask[0] = binary.LittleEndian.Uint64(b[29:37])
	n.OutMask[1] = binary.LittleEndian.Uint64(b[37:45])
	return n, nil
}

// encodeTimer packs a TimerIR into its fixed 32-byte wire layout:
//   node_index u32le | kind u8 | catch_up u8 | reserved u16 | due_at_ns u64le | rrule_id u32le | padding
func encodeTimer(t TimerIR) []byte {
	out := make([]byte, timerIRWireSize)
	binary.LittleEndian.PutUint32(out[0:4], t.NodeIndex)
	out[4] = byte(t.Kind)
	out[5] = byte(t.CatchUp)
	binary.LittleEndian.PutUint64(out[8:16], t.DueAtNS)
	binary.LittleEndian.PutUint32(out[16:20], t.RRuleID)
	// out[20:32] reserved, zero.
	return out
}

func decodeTimer(b []byte) (TimerIR, error) {
	if len(b) != timerIRWireSize {
		return TimerIR{}, coded(ErrMalformedRecord, "timer record: bad length")
	}
	var t TimerIR
	t.NodeIndex = binary.LittleEndian.Uint32(b[0:4])
	t.Kind = TimerKind(b[4])
	t.CatchUp = CatchUpPolicy(b[5])
	t.DueAtNS = binary.LittleEndian.Uint64(b[8:16])
	t.RRuleID = binary.LittleEndian.Uint32(b[16:20])
	return t, nil
}
