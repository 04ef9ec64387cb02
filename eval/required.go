package eval

// PropagateRequired implements the required-ness propagation pass of §4.F:
// an iterative closure, not a depth-first walk, so that a required
// definition referenced deep in a cycle still gets marked on whichever
// pass reaches it. It runs until a full pass makes no further change.
func (ev *Evaluator) PropagateRequired() {
	g := ev.Env.Graph

	for name := range ev.Env.RequiredCompileTimeFunctions {
		if d := g.FindDefinition(name); d != nil {
			d.IsRequired = true
		}
	}

	for {
		changed := false
		for _, def := range g.Definitions() {
			if !def.IsRequired {
				continue
			}
			for name := range def.References {
				target := g.FindDefinition(name)
				if target == nil || target.IsRequired {
					continue
				}
				target.IsRequired = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}
