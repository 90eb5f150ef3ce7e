package text

import (
	"github.com/go-text/typesetting/language"
	"golang.org/x/text/unicode/bidi"
)

// run is a maximal range of runes with one direction and script.
// Start is inclusive, End exclusive.
type run struct {
	Start, End int
	Direction  Direction
	Script     language.Script
}

// splitRuns splits runes into runs in visual order. With DirectionAuto
// the bidi algorithm picks the direction of each run; any other direction
// is applied to the whole text. Each direction run is further split where
// the strong script changes.
func splitRuns(text string, runes []rune, dir Direction) []run {
	if len(runes) == 0 {
		return nil
	}
	var dirRuns []run
	if dir == DirectionAuto {
		dirRuns = bidiRuns(text, len(runes))
	} else {
		dirRuns = []run{{Start: 0, End: len(runes), Direction: dir}}
	}

	runs := make([]run, 0, len(dirRuns))
	for _, dr := range dirRuns {
		scripted := splitScripts(runes, dr)
		if dr.Direction == DirectionRTL {
			// Script runs inside an RTL run are displayed right to left.
			for i, j := 0, len(scripted)-1; i < j; i, j = i+1, j-1 {
				scripted[i], scripted[j] = scripted[j], scripted[i]
			}
		}
		runs = append(runs, scripted...)
	}
	return runs
}

// bidiRuns resolves direction runs with the Unicode bidirectional
// algorithm. On failure the whole text is one LTR run.
func bidiRuns(text string, n int) []run {
	whole := []run{{Start: 0, End: n, Direction: DirectionLTR}}

	p := bidi.Paragraph{}
	if _, err := p.SetString(text, bidi.DefaultDirection(bidi.Neutral)); err != nil {
		return whole
	}
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return whole
	}

	runs := make([]run, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		r := ordering.Run(i)
		// Pos returns rune indices with an inclusive end.
		start, end := r.Pos()
		if start >= n {
			continue
		}
		end = min(end+1, n)
		d := DirectionLTR
		if r.Direction() == bidi.RightToLeft {
			d = DirectionRTL
		}
		runs = append(runs, run{Start: start, End: end, Direction: d})
	}
	if len(runs) == 0 {
		return whole
	}
	return runs
}

// splitScripts splits one direction run at strong script changes. Common
// and inherited runes join the preceding run, or the following one at the
// start of the text.
func splitScripts(runes []rune, dr run) []run {
	var out []run
	cur := dr
	cur.End = dr.Start
	cur.Script = 0
	for i := dr.Start; i < dr.End; i++ {
		s := language.LookupScript(runes[i])
		if s.Strong() {
			switch {
			case cur.Script == 0:
				cur.Script = s
			case s != cur.Script:
				out = append(out, cur)
				cur = run{Start: i, Direction: dr.Direction, Script: s}
			}
		}
		cur.End = i + 1
	}
	if cur.Script == 0 {
		cur.Script = language.Latin
	}
	return append(out, cur)
}
