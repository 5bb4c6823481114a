package iface

// SetAttrs is the reconfig attribute mask: a bitset telling a type's
// Reconfig callback which common and type-specific fields of api_info
// are meaningful for this call. Bit values are part of the wire
// contract (spec §6) and must never be renumbered once shipped.
type SetAttrs uint64

const (
	// Common attributes, valid for every interface type.
	SetFlags SetAttrs = 1 << iota
	SetMTU
	SetVRF

	// Port-specific attributes.
	SetNRxqs
	SetNTxqs
	SetQSize
	SetMAC // also used by VLAN's multicast MAC field; types never share a call

	// VLAN-specific attributes.
	SetParent
	SetVLAN
)

// SetAll is passed to a type's init (via its first reconfig call) and
// means "every attribute is valid; this is initial configuration".
// Reconfig callbacks distinguish initial config from a delta by
// comparing the mask to SetAll exactly.
const SetAll SetAttrs = SetFlags | SetMTU | SetVRF | SetNRxqs | SetNTxqs | SetQSize | SetMAC | SetParent | SetVLAN

// Has reports whether all bits in want are set in a.
func (a SetAttrs) Has(want SetAttrs) bool {
	return a&want == want
}

// Any reports whether any bit in want is set in a.
func (a SetAttrs) Any(want SetAttrs) bool {
	return a&want != 0
}
