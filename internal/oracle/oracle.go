package oracle

import (
	"context"
	"math/rand"
	"sync"

	"optionbot/internal/models"
)

// Trade is the context an oracle may weigh when settling. The random default
// ignores it; a real settlement integration keys off the id and asset.
type Trade struct {
	TradeID   string
	AccountID string
	Asset     string
	Direction string
}

// Oracle decides how an executed trade settled. Implementations must return
// only WIN or LOSS. This is the seam where genuine venue settlement plugs in;
// nothing else in the pipeline knows how outcomes are produced.
type Oracle interface {
	Decide(ctx context.Context, trade Trade) string
}

// RandomOracle settles trades with an unweighted coin flip. It is a stand-in
// for venue settlement, not a model of it.
type RandomOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomOracle seeds a dedicated generator so concurrent cycles do not
// contend on the global rand source.
func NewRandomOracle(seed int64) *RandomOracle {
	return &RandomOracle{rng: rand.New(rand.NewSource(seed))}
}

func (o *RandomOracle) Decide(ctx context.Context, trade Trade) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rng.Float64() > 0.5 {
		return models.OutcomeWin
	}
	return models.OutcomeLoss
}

// CoinFlip picks a direction for forced cycles where no signal fired.
func (o *RandomOracle) CoinFlip() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rng.Float64() > 0.5 {
		return models.DirectionUp
	}
	return models.DirectionDown
}
