// Package plan loads and interpolates training plan templates.
//
// A template declares keyframe weeks at positions ("first", "last", "35%",
// or an absolute week number); InterpolateWeeks expands them into a concrete
// per-week schedule using stepped interpolation, so the same template scales
// to any program length.
package plan

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultSessionDuration is used when a template omits durations (minutes).
const DefaultSessionDuration = 15.0

// Session styles understood by the engine
const (
	StyleSteady   = "steady"
	StyleInterval = "interval"
	StyleCustom   = "custom"
)

// Template is an immutable training plan definition.
type Template struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	WeekConfig      WeekConfig     `yaml:"weekConfig"`
	DefaultDuration float64        `yaml:"defaultSessionDurationMinutes"`
	Weeks           []WeekKeyframe `yaml:"weeks"`
}

// WeekConfig declares how long the program runs.
type WeekConfig struct {
	Type  string    `yaml:"type"` // "fixed" or "variable"
	Fixed int       `yaml:"fixed"`
	Range WeekRange `yaml:"range"`
}

// WeekRange bounds a variable-length program.
type WeekRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// WeekKeyframe is a declared week in the template. Weeks between keyframes
// inherit the most recent keyframe at or before their position.
type WeekKeyframe struct {
	Position        Position `yaml:"position"`
	PhaseName       string   `yaml:"phaseName"`
	Focus           string   `yaml:"focus"`
	PowerMultiplier float64  `yaml:"powerMultiplier"`
	TargetRPE       float64  `yaml:"targetRPE"`
	DurationMinutes float64  `yaml:"durationMinutes"`
	WorkRestRatio   string   `yaml:"workRestRatio"`
	Style           string   `yaml:"style"`
	Blocks          []Block  `yaml:"blocks"`
}

// Block is one segment of a block-structured session.
type Block struct {
	Name            string  `yaml:"name"`
	DurationMinutes float64 `yaml:"durationMinutes"`
	PowerMultiplier float64 `yaml:"powerMultiplier"`
}

// WeekSpec is a fully resolved week of the plan.
type WeekSpec struct {
	Week            int // 1-based
	PhaseName       string
	Focus           string
	PowerMultiplier float64
	TargetRPE       float64
	DurationMinutes float64
	WorkRestRatio   string
	Style           string
	Blocks          []Block
}

// Position is a week position: an absolute week number, "first", "last",
// or a percentage of the program length like "35%".
type Position struct {
	raw string
}

// UnmarshalYAML accepts both integer and string positions.
func (p *Position) UnmarshalYAML(node *yaml.Node) error {
	switch node.Tag {
	case "!!int":
		p.raw = node.Value
		return nil
	case "!!str":
		p.raw = node.Value
		return nil
	default:
		return fmt.Errorf("position must be an integer or string, got %s", node.Tag)
	}
}

// String returns the raw position spec.
func (p Position) String() string { return p.raw }

// Resolve maps the position to a concrete 1-based week number.
func (p Position) Resolve(totalWeeks int) int {
	if p.raw == "" {
		return 1
	}
	if n, err := strconv.Atoi(p.raw); err == nil {
		return clampWeek(n, totalWeeks)
	}
	switch {
	case p.raw == "first":
		return 1
	case p.raw == "last":
		return totalWeeks
	case strings.HasSuffix(p.raw, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(p.raw, "%"), 64)
		if err != nil {
			return 1
		}
		if pct == 0 {
			return 1
		}
		week := int(math.Round(pct/100*float64(totalWeeks))) + 1
		return clampWeek(week, totalWeeks)
	}
	return 1
}

func clampWeek(week, totalWeeks int) int {
	if week < 1 {
		return 1
	}
	if week > totalWeeks {
		return totalWeeks
	}
	return week
}

// ErrNoTemplate is returned when the template file doesn't exist
var ErrNoTemplate = errors.New("template file not found")

// Load reads and validates a template from a YAML file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoTemplate
	}
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// applyDefaults fills in omitted fields. Template identity falls back to a
// name-derived UUID so cache keys stay stable across loads.
func (t *Template) applyDefaults() {
	if t.ID == "" {
		t.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.Name)).String()
	}
	if t.DefaultDuration <= 0 {
		t.DefaultDuration = DefaultSessionDuration
	}
	if t.WeekConfig.Type == "" {
		t.WeekConfig.Type = "fixed"
	}
	if t.WeekConfig.Type == "fixed" && t.WeekConfig.Fixed <= 0 {
		t.WeekConfig.Fixed = 8
	}
	for i := range t.Weeks {
		w := &t.Weeks[i]
		if w.PowerMultiplier <= 0 {
			w.PowerMultiplier = 1.0
		}
		if w.TargetRPE <= 0 {
			w.TargetRPE = 6
		}
		if w.DurationMinutes <= 0 {
			w.DurationMinutes = t.DefaultDuration
		}
		if w.WorkRestRatio == "" {
			w.WorkRestRatio = "1:1"
		}
		if w.Style == "" {
			w.Style = StyleSteady
		}
	}
}

// Validate checks the template for usable values.
func (t *Template) Validate() error {
	if t.Name == "" {
		return errors.New("template name is required")
	}
	switch t.WeekConfig.Type {
	case "fixed":
		if t.WeekConfig.Fixed < 1 {
			return fmt.Errorf("weekConfig.fixed must be >= 1, got %d", t.WeekConfig.Fixed)
		}
	case "variable":
		r := t.WeekConfig.Range
		if r.Min < 1 || r.Max < r.Min {
			return fmt.Errorf("weekConfig.range must satisfy 1 <= min <= max, got %d..%d", r.Min, r.Max)
		}
	default:
		return fmt.Errorf("weekConfig.type must be \"fixed\" or \"variable\", got %q", t.WeekConfig.Type)
	}
	for i, w := range t.Weeks {
		if w.TargetRPE < 1 || w.TargetRPE > 10 {
			return fmt.Errorf("week %d: targetRPE must be in [1,10], got %v", i+1, w.TargetRPE)
		}
		for j, b := range w.Blocks {
			if b.DurationMinutes <= 0 {
				return fmt.Errorf("week %d block %d: durationMinutes must be > 0", i+1, j+1)
			}
			if b.PowerMultiplier <= 0 {
				return fmt.Errorf("week %d block %d: powerMultiplier must be > 0", i+1, j+1)
			}
		}
	}
	return nil
}

// WeekCount resolves the program length. A positive override wins;
// variable-length programs default to the middle of their range.
func (t *Template) WeekCount(override int) int {
	if override > 0 {
		return override
	}
	if t.WeekConfig.Type == "variable" {
		return (t.WeekConfig.Range.Min + t.WeekConfig.Range.Max) / 2
	}
	return t.WeekConfig.Fixed
}

// InterpolateWeeks expands the keyframes into one WeekSpec per week using
// stepped interpolation: each week takes the most recent keyframe at or
// before it.
func (t *Template) InterpolateWeeks(totalWeeks int) []WeekSpec {
	type resolved struct {
		week int
		kf   WeekKeyframe
	}
	frames := make([]resolved, 0, len(t.Weeks))
	for _, kf := range t.Weeks {
		frames = append(frames, resolved{week: kf.Position.Resolve(totalWeeks), kf: kf})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].week < frames[j].week })

	specs := make([]WeekSpec, 0, totalWeeks)
	for week := 1; week <= totalWeeks; week++ {
		var current *WeekKeyframe
		for i := range frames {
			if frames[i].week <= week {
				current = &frames[i].kf
			} else {
				break
			}
		}

		if current == nil {
			if len(frames) > 0 {
				current = &frames[0].kf
			} else {
				specs = append(specs, WeekSpec{
					Week:            week,
					PhaseName:       fmt.Sprintf("Week %d", week),
					Focus:           "Volume",
					PowerMultiplier: 1.0,
					TargetRPE:       6,
					DurationMinutes: t.DefaultDuration,
					WorkRestRatio:   "1:1",
					Style:           StyleSteady,
				})
				continue
			}
		}

		phaseName := current.PhaseName
		if phaseName == "" {
			phaseName = fmt.Sprintf("Week %d", week)
		}
		specs = append(specs, WeekSpec{
			Week:            week,
			PhaseName:       phaseName,
			Focus:           current.Focus,
			PowerMultiplier: current.PowerMultiplier,
			TargetRPE:       current.TargetRPE,
			DurationMinutes: current.DurationMinutes,
			WorkRestRatio:   current.WorkRestRatio,
			Style:           current.Style,
			Blocks:          current.Blocks,
		})
	}
	return specs
}
