package analysis

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"cardiokinetic/internal/plan"
)

// Simulation jitter ranges. Each simulated athlete executes the plan
// imperfectly: session count, power, intensity and duration all wander.
const (
	simMinSessionsPerWeek = 2
	simMaxSessionsPerWeek = 4
	simPowerJitter        = 0.05
	simDurationJitter     = 0.05
	simRPEJitter          = 0.5
)

// degradedValidFraction is the minimum share of iterations that must
// survive NaN filtering before results are flagged degraded.
const degradedValidFraction = 0.5

// SimOptions configures one simulation run.
type SimOptions struct {
	Iterations int
	Workers    int
	Seed       int64
	BasePower  float64 // watts, scales the template's power multipliers
	CP         float64 // watts, used for session load intensity ratios
}

// SimProgress is sent on the progress channel as iterations complete.
type SimProgress struct {
	IterationsComplete        int
	TotalIterations           int
	EstimatedSecondsRemaining float64
	Done                      bool
	Err                       error
}

// Bands holds the percentile spread of one metric for one week.
type Bands struct {
	Min    float64
	P15    float64
	P25    float64
	P35    float64
	Median float64
	P65    float64
	P75    float64
	P85    float64
	Max    float64
}

// WeekBands is the simulated outcome distribution at the end of one week.
type WeekBands struct {
	Week      int // 1-based
	Fatigue   Bands
	Readiness Bands
}

// SimResult is the aggregate outcome of a simulation run.
type SimResult struct {
	Weeks           []WeekBands
	Iterations      int
	ValidIterations int
	Degraded        bool
}

// weekSample is one iteration's end-of-week scores.
type weekSample struct {
	fatigue   []float64
	readiness []float64
}

// Simulate runs the fatigue model forward over a resolved plan many times
// with randomized execution noise and returns percentile bands per week.
// Identical options (including Seed) produce identical results regardless
// of worker count. Progress updates are sent on progress if non-nil; the
// channel is not closed by Simulate.
func Simulate(ctx context.Context, weeks []plan.WeekSpec, opts SimOptions, progress chan<- SimProgress) (*SimResult, error) {
	if opts.Iterations <= 0 {
		opts.Iterations = 100000
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BasePower <= 0 {
		opts.BasePower = 200
	}
	if opts.CP <= 0 {
		opts.CP = opts.BasePower
	}

	samples := make([]*weekSample, opts.Iterations)
	indexes := make(chan int)
	start := time.Now()

	var wg sync.WaitGroup
	var completed int64
	var mu sync.Mutex

	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				// Per-iteration source keeps runs reproducible no
				// matter how iterations land on workers.
				rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
				samples[i] = runIteration(weeks, opts, rng)

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()

				if progress != nil && (done%50 == 0 || int(done) == opts.Iterations) {
					elapsed := time.Since(start).Seconds()
					remaining := 0.0
					if done > 0 {
						remaining = elapsed / float64(done) * float64(opts.Iterations-int(done))
					}
					select {
					case progress <- SimProgress{
						IterationsComplete:        int(done),
						TotalIterations:           opts.Iterations,
						EstimatedSecondsRemaining: remaining,
					}:
					default:
					}
				}
			}
		}()
	}

	var cancelled bool
feed:
	for i := 0; i < opts.Iterations; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	if progress != nil {
		select {
		case progress <- SimProgress{
			IterationsComplete: opts.Iterations,
			TotalIterations:    opts.Iterations,
			Done:               true,
		}:
		default:
		}
	}

	return aggregate(samples, len(weeks), opts.Iterations), nil
}

// runIteration simulates one athlete executing the plan with noise and
// returns nil when the trajectory produced a non-finite score.
func runIteration(weeks []plan.WeekSpec, opts SimOptions, rng *rand.Rand) *weekSample {
	sample := &weekSample{
		fatigue:   make([]float64, len(weeks)),
		readiness: make([]float64, len(weeks)),
	}

	var state FatigueState
	for w, spec := range weeks {
		dayLoads := jitterWeek(spec, opts, rng)
		for _, load := range dayLoads {
			state = Advance(state, load, 1.0)
		}
		fatigue := float64(FatigueScore(state))
		readiness := float64(ReadinessScore(state))
		if !isFinite(fatigue) || !isFinite(readiness) {
			return nil
		}
		sample.fatigue[w] = fatigue
		sample.readiness[w] = readiness
	}
	return sample
}

// jitterWeek produces seven daily loads for one plan week with randomized
// session placement and execution noise.
func jitterWeek(spec plan.WeekSpec, opts SimOptions, rng *rand.Rand) [7]float64 {
	var loads [7]float64

	count := simMinSessionsPerWeek + rng.Intn(simMaxSessionsPerWeek-simMinSessionsPerWeek+1)
	days := rng.Perm(7)[:count]

	for _, day := range days {
		power := spec.PowerMultiplier * opts.BasePower * jittered(rng, simPowerJitter)
		duration := spec.DurationMinutes * jittered(rng, simDurationJitter)
		rpe := clamp(spec.TargetRPE+(rng.Float64()*2-1)*simRPEJitter, 1, 10)

		loads[day] += sessionLoadRaw(rpe, duration, power, opts.CP)
	}
	return loads
}

func jittered(rng *rand.Rand, magnitude float64) float64 {
	return 1 + (rng.Float64()*2-1)*magnitude
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// aggregate sorts surviving samples per week and extracts percentile bands.
func aggregate(samples []*weekSample, weekCount, iterations int) *SimResult {
	valid := make([]*weekSample, 0, len(samples))
	for _, s := range samples {
		if s != nil {
			valid = append(valid, s)
		}
	}

	result := &SimResult{
		Weeks:           make([]WeekBands, weekCount),
		Iterations:      iterations,
		ValidIterations: len(valid),
		Degraded:        float64(len(valid)) < degradedValidFraction*float64(iterations),
	}

	for w := 0; w < weekCount; w++ {
		fatigue := make([]float64, 0, len(valid))
		readiness := make([]float64, 0, len(valid))
		for _, s := range valid {
			fatigue = append(fatigue, s.fatigue[w])
			readiness = append(readiness, s.readiness[w])
		}
		result.Weeks[w] = WeekBands{
			Week:      w + 1,
			Fatigue:   bandsOf(fatigue),
			Readiness: bandsOf(readiness),
		}
	}
	return result
}

func bandsOf(values []float64) Bands {
	if len(values) == 0 {
		return Bands{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Bands{
		Min:    sorted[0],
		P15:    percentile(sorted, 0.15),
		P25:    percentile(sorted, 0.25),
		P35:    percentile(sorted, 0.35),
		Median: percentile(sorted, 0.50),
		P65:    percentile(sorted, 0.65),
		P75:    percentile(sorted, 0.75),
		P85:    percentile(sorted, 0.85),
		Max:    sorted[len(sorted)-1],
	}
}

// percentile linearly interpolates between ranks of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	fraction := rank - float64(lo)
	return sorted[lo] + fraction*(sorted[hi]-sorted[lo])
}
