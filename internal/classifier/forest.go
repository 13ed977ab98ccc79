package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"quant-lab/internal/infrastructure"
	"quant-lab/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ForestConfig holds the forest hyperparameters. Workers <= 0 uses every CPU.
type ForestConfig struct {
	Trees           int  `json:"trees"`
	MaxDepth        int  `json:"max_depth"`
	MaxFeatures     int  `json:"max_features"`
	MinSamplesSplit int  `json:"min_samples_split"`
	MinSamplesLeaf  int  `json:"min_samples_leaf"`
	Bootstrap       bool `json:"bootstrap"`
	Workers         int  `json:"-"`
}

// ConfigFor scales the forest to the training set: more rows buy more and deeper
// trees and stricter split minimums.
func ConfigFor(rows, features int) ForestConfig {
	return ForestConfig{
		Trees:           clamp(rows/2, 50, 200),
		MaxDepth:        clamp(int(math.Log(float64(rows)))*2, 5, 15),
		MaxFeatures:     clamp(features/2, 4, 12),
		MinSamplesSplit: clamp(rows/50, 4, 10),
		MinSamplesLeaf:  clamp(rows/100, 2, 5),
		Bootstrap:       true,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Forest is a bagged ensemble of decision trees. Train replaces any previous model;
// prediction methods are safe for concurrent use once training returns.
type Forest struct {
	cfg    ForestConfig
	logger *zap.Logger

	mu    sync.RWMutex
	trees []*tree
}

func NewForest(cfg ForestConfig, logger *zap.Logger) *Forest {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Forest{cfg: cfg, logger: logger}
}

// Train fits cfg.Trees trees in parallel, at most cfg.Workers at a time. Tree i
// draws from its own source derived from seed, so a non-zero seed reproduces the
// same forest regardless of scheduling. Zero seeds from the clock.
func (f *Forest) Train(ctx context.Context, x [][]float64, y []int, seed int64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("%w: need matching non-empty features and labels, have %d rows and %d labels",
			model.ErrInvalidArgument, len(x), len(y))
	}
	if f.cfg.Trees <= 0 {
		return fmt.Errorf("%w: tree count must be positive, got %d", model.ErrInvalidArgument, f.cfg.Trees)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	tcfg := treeConfig{
		maxDepth:        f.cfg.MaxDepth,
		maxFeatures:     f.cfg.MaxFeatures,
		minSamplesSplit: f.cfg.MinSamplesSplit,
		minSamplesLeaf:  f.cfg.MinSamplesLeaf,
	}
	trees := make([]*tree, f.cfg.Trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed + int64(i)*7919))
			trees[i] = trainTree(x, y, f.sample(len(x), rng), tcfg, rng)
			infrastructure.TreesTrained.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.mu.Lock()
	f.trees = trees
	f.mu.Unlock()

	f.logger.Debug("forest trained",
		zap.Int("trees", len(trees)),
		zap.Int("rows", len(x)),
		zap.Int("max_depth", f.cfg.MaxDepth),
		zap.Int("max_features", f.cfg.MaxFeatures),
	)
	return nil
}

func (f *Forest) sample(n int, rng *rand.Rand) []int {
	rows := make([]int, n)
	for i := range rows {
		if f.cfg.Bootstrap {
			rows[i] = rng.Intn(n)
		} else {
			rows[i] = i
		}
	}
	return rows
}

func (f *Forest) Trained() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.trees) > 0
}

// PredictProba is the share of trees voting for class 1.
func (f *Forest) PredictProba(features []float64) (float64, error) {
	f.mu.RLock()
	trees := f.trees
	f.mu.RUnlock()
	if len(trees) == 0 {
		return 0, fmt.Errorf("%w: forest must be trained before predicting", model.ErrIllegalState)
	}

	var (
		votes atomic.Int64
		wg    sync.WaitGroup
	)
	chunk := (len(trees) + f.cfg.Workers - 1) / f.cfg.Workers
	for start := 0; start < len(trees); start += chunk {
		end := start + chunk
		if end > len(trees) {
			end = len(trees)
		}
		wg.Add(1)
		go func(part []*tree) {
			defer wg.Done()
			for _, t := range part {
				if t.predict(features) == 1 {
					votes.Add(1)
				}
			}
		}(trees[start:end])
	}
	wg.Wait()
	return float64(votes.Load()) / float64(len(trees)), nil
}

// Predict returns the majority class; an even split predicts 1.
func (f *Forest) Predict(features []float64) (int, error) {
	p, err := f.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}
