package schema

// Kind enumerates the semantic column kinds the runtime understands.
type Kind int

const (
	KindInteger Kind = iota
	KindBigInteger
	KindFloat
	KindFixedDecimal
	KindBoundedString
	KindUnboundedString
	KindBoolean
	KindTimestamp
	KindStructuredValue
	KindEnumeratedString
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBigInteger:
		return "big-integer"
	case KindFloat:
		return "float"
	case KindFixedDecimal:
		return "fixed-decimal"
	case KindBoundedString:
		return "bounded-string"
	case KindUnboundedString:
		return "unbounded-string"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindStructuredValue:
		return "structured-value"
	case KindEnumeratedString:
		return "enumerated-string"
	default:
		return "unknown"
	}
}

// OnDelete describes the behavior of a foreign key when its target row is deleted.
type OnDelete int

const (
	OnDeleteRestrict OnDelete = iota
	OnDeleteCascade
)

func (d OnDelete) String() string {
	if d == OnDeleteCascade {
		return "cascade"
	}
	return "restrict"
}
