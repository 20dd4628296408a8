//go:build tinygo && rp2350

package main

import "pincab.dev/axis"

// pipelineAtom reads one field of cabinetState through the axis
// expression tree's leaf interface, so a configured expression (e.g.
// "negate(nudgex)" to flip a reversed-mounted accelerometer, or
// "scale(speed,0.5)" to soften plunger speed reporting) can stand in
// for any of the HID report's axis fields without a firmware rebuild.
type pipelineAtom struct {
	state *cabinetState
	read  func(*cabinetState) int16
}

func (a pipelineAtom) ReadI16(uint64) int16 { return a.read(a.state) }
func (a pipelineAtom) ReadU8(t uint64) uint8 {
	v := a.ReadI16(t)
	return uint8((int32(v) + 32768) >> 8)
}

// newAxisRegistry registers the pipeline outputs state holds as atoms
// a configured axis expression can reference by name.
func newAxisRegistry(state *cabinetState) *axis.Registry {
	reg := axis.NewRegistry()
	atoms := map[string]func(*cabinetState) int16{
		"z":      func(s *cabinetState) int16 { return s.z },
		"z0":     func(s *cabinetState) int16 { return s.z0 },
		"speed":  func(s *cabinetState) int16 { return s.speed },
		"nudgex": func(s *cabinetState) int16 { return s.nudgeX },
		"nudgey": func(s *cabinetState) int16 { return s.nudgeY },
		"nudgez": func(s *cabinetState) int16 { return s.nudgeZ },
	}
	for name, read := range atoms {
		read := read
		reg.Register(name, func(args []string) (axis.Source, error) {
			return pipelineAtom{state: state, read: read}, nil
		})
	}
	return reg
}

// axisSources resolves cfg's configured per-field expressions (or the
// bare atom name, if unconfigured) into axis.Source values the HID
// device adapters read from instead of cabinetState's fields directly.
type axisSources struct {
	z, z0, speed           axis.Source
	nudgeX, nudgeY, nudgeZ axis.Source
}

func newAxisSources(reg *axis.Registry, cfg axisExprConfig) axisSources {
	parse := func(expr, fallback string) axis.Source {
		if expr == "" {
			expr = fallback
		}
		return reg.Parse(expr)
	}
	return axisSources{
		z:      parse(cfg.Z, "z"),
		z0:     parse(cfg.Z0, "z0"),
		speed:  parse(cfg.Speed, "speed"),
		nudgeX: parse(cfg.NudgeX, "nudgex"),
		nudgeY: parse(cfg.NudgeY, "nudgey"),
		nudgeZ: parse(cfg.NudgeZ, "nudgez"),
	}
}
