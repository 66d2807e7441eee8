package limiter

import (
	_ "embed"

	"github.com/marfebr/go_trafficjam/internal/store"
)

var (
	//go:embed scripts/increment.lua
	incrementSrc string
	//go:embed scripts/increment_gcra.lua
	incrementGCRASrc string
	//go:embed scripts/increment_rolling.lua
	incrementRollingSrc string
	//go:embed scripts/sum_rolling.lua
	sumRollingSrc string
	//go:embed scripts/incrby.lua
	incrbySrc string
)

var (
	scriptIncrement        = store.NewScript("increment", incrementSrc)
	scriptIncrementGCRA    = store.NewScript("increment_gcra", incrementGCRASrc)
	scriptIncrementRolling = store.NewScript("increment_rolling", incrementRollingSrc)
	scriptSumRolling       = store.NewScript("sum_rolling", sumRollingSrc)
	scriptIncrby           = store.NewScript("incrby", incrbySrc)
)
