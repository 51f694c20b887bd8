package webview

// scriptPlan decides which initialization scripts a navigation injects.
// The first navigation of a webview's lifetime gets every script; later ones
// only the scripts not marked Once. The IPC bootstrap always comes first.
//
// A plan is only touched on the pump.
type scriptPlan struct {
	scripts   []InitScript
	navigated bool
}

func newScriptPlan(scripts []InitScript) *scriptPlan {
	return &scriptPlan{scripts: scripts}
}

// next returns the ordered sources for the upcoming navigation and marks the
// first navigation as consumed.
func (p *scriptPlan) next() []string {
	out := make([]string, 0, len(p.scripts)+1)
	out = append(out, bootstrapScript)
	for _, s := range p.scripts {
		if s.Once && p.navigated {
			continue
		}
		out = append(out, s.Code)
	}
	p.navigated = true
	return out
}
