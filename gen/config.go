package gen

// Config carries the Generator's inputs (spec §4.2). DepRange, ExecBase,
// and MaxR default to the source's DEFAULT_DEP_RANGE / DEFAULT_EXECUTION_SIZE
// / DEFAULT_EXECUTION_RANGE when a caller starts from DefaultConfig.
type Config struct {
	N        int     `validate:"required,gte=1"`
	M        int     `validate:"gte=0"`
	DepRange int     `validate:"gte=1"`
	ExecBase float64 `validate:"gte=0"`
	MaxR     float64 `validate:"gte=0,lte=1"`
}

// DefaultConfig mirrors the source's DEFAULT_DEP_RANGE (10),
// DEFAULT_EXECUTION_SIZE (1,000,000 iterations), and
// DEFAULT_EXECUTION_RANGE (0.25). N and M have no source default since the
// source requires the caller to supply them.
var DefaultConfig = Config{
	DepRange: 10,
	ExecBase: 1_000_000,
	MaxR:     0.25,
}
