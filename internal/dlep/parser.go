package dlep

// TLV parser. Builds a per-session index from the active extensions' TLV
// declarations, then validates and indexes every TLV of an incoming signal
// for O(1) lookup by type. The values backing array grows by append, and
// index-based linked lists (not pointer lists) keep growth from invalidating
// existing references: tlvValue.next is an index into Parser.values, -1 for
// "no more".

import (
	"errors"
	"fmt"
)

// Parser errors.
var (
	ErrUnsupportedTLV   = errors.New("dlep: unsupported tlv")
	ErrIllegalLength    = errors.New("dlep: illegal tlv length")
	ErrMissingMandatory = errors.New("dlep: missing mandatory tlv")
	ErrOutOfMemory      = errors.New("dlep: parser out of memory")
)

const noValue = -1

// tlvRule is the per-type parser entry: legality bounds plus the head
// and tail of this type's linked list of occurrences within the signal
// currently being parsed.
type tlvRule struct {
	minLen, maxLen int
	mandatory      bool
	first, last    int32
}

// tlvValue is one occurrence of a TLV within the signal being parsed.
type tlvValue struct {
	next   int32
	offset int
	length int
}

// maxParserValues bounds the per-signal TLV count. The source treats
// realloc failure as a hard parse error (ErrOutOfMemory); we reserve the
// same failure mode for a pathological signal that would otherwise grow
// the values slice without bound.
const maxParserValues = 4096

// Parser holds the per-session TLV index and, after Parse, the decoded
// TLV values of the signal currently being inspected.
type Parser struct {
	rules  map[TLVType]*tlvRule
	values []tlvValue

	// signalRules indexes, for the signal currently being validated,
	// which extension x signal declarations require which mandatory
	// TLVs (needed because two extensions may both declare rules for
	// the same signal.6 "all are called... none is authoritative").
	mandatoryBySignal map[SignalType][]TLVType

	// subjectMAC is extracted from the well-known MAC TLV if present in
	// the most recently parsed signal.
	subjectMAC []byte

	payload []byte // the signal payload currently indexed by values
}

// NewParser builds a Parser from the active extension set for one
// session. It must be rebuilt by calling NewParser again if the active
// extension set changes, as Session.SetActiveExtensions does during
// negotiation.
func NewParser(active []Extension) *Parser {
	p := &Parser{
		rules:             make(map[TLVType]*tlvRule),
		mandatoryBySignal: make(map[SignalType][]TLVType),
	}

	for _, ext := range active {
		for _, sig := range ext.Signals() {
			var mandatory []TLVType
			for _, rule := range sig.TLVs {
				r, ok := p.rules[rule.Type]
				if !ok {
					r = &tlvRule{minLen: rule.MinLen, maxLen: rule.MaxLen, first: noValue, last: noValue}
					p.rules[rule.Type] = r
				} else {
					// Multiple extensions may declare the same TLV type;
					// widen the bounds to the union so neither is violated.
					if rule.MinLen < r.minLen {
						r.minLen = rule.MinLen
					}
					if rule.MaxLen > r.maxLen {
						r.maxLen = rule.MaxLen
					}
				}
				if rule.Mandatory {
					r.mandatory = true
					mandatory = append(mandatory, rule.Type)
				}
			}
			if len(mandatory) > 0 {
				p.mandatoryBySignal[sig.Signal] = append(p.mandatoryBySignal[sig.Signal], mandatory...)
			}
		}
	}

	return p
}

// reset clears per-type first/last pointers and the values count
// , without discarding the backing array.
func (p *Parser) reset() {
	for _, r := range p.rules {
		r.first = noValue
		r.last = noValue
	}
	p.values = p.values[:0]
	p.subjectMAC = nil
	p.payload = nil
}

// Parse validates signal's TLVs against the active rule set and indexes
// every occurrence for O(1) lookup.
func (p *Parser) Parse(signal SignalType, payload []byte) error {
	p.reset()
	p.payload = payload

	var tlvErr error
	if err := walkTLVs(payload, func(raw rawTLV) bool {
		rule, ok := p.rules[raw.tlvType]
		if !ok {
			tlvErr = fmt.Errorf("%w: type %s", ErrUnsupportedTLV, raw.tlvType)
			return false
		}
		if raw.length < rule.minLen || raw.length > rule.maxLen {
			tlvErr = fmt.Errorf("%w: type %s length %d not in [%d,%d]",
				ErrIllegalLength, raw.tlvType, raw.length, rule.minLen, rule.maxLen)
			return false
		}

		if len(p.values) >= maxParserValues {
			tlvErr = fmt.Errorf("%w: signal %s", ErrOutOfMemory, signal)
			return false
		}

		idx := int32(len(p.values))
		p.values = append(p.values, tlvValue{next: noValue, offset: raw.offset, length: raw.length})

		if rule.first == noValue {
			rule.first = idx
		} else {
			p.values[rule.last].next = idx
		}
		rule.last = idx

		if raw.tlvType == TLVMACAddress && p.subjectMAC == nil {
			p.subjectMAC = payload[raw.offset : raw.offset+raw.length]
		}

		return true
	}); err != nil {
		return err
	}
	if tlvErr != nil {
		return tlvErr
	}

	for _, mandType := range p.mandatoryBySignal[signal] {
		if p.rules[mandType].first == noValue {
			return fmt.Errorf("%w: type %s required for signal %s", ErrMissingMandatory, mandType, signal)
		}
	}

	return nil
}

// GetFirst returns the index of the first occurrence of tlvType in the
// most recently parsed signal, or false if absent.
func (p *Parser) GetFirst(tlvType TLVType) (int, bool) {
	rule, ok := p.rules[tlvType]
	if !ok || rule.first == noValue {
		return 0, false
	}
	return int(rule.first), true
}

// GetNext returns the index of the next occurrence following value, or
// false if value was the last one.
func (p *Parser) GetNext(value int) (int, bool) {
	next := p.values[value].next
	if next == noValue {
		return 0, false
	}
	return int(next), true
}

// GetBytes returns the raw TLV value bytes for the occurrence at index.
func (p *Parser) GetBytes(value int) []byte {
	v := p.values[value]
	return p.payload[v.offset : v.offset+v.length]
}

// SubjectMAC returns the well-known MAC TLV value from the most
// recently parsed signal, if present.
func (p *Parser) SubjectMAC() ([]byte, bool) {
	if p.subjectMAC == nil {
		return nil, false
	}
	return p.subjectMAC, true
}
