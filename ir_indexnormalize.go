package cascade

// IndexNormalize rewrites every declaration's bit range so its lsb is 0,
// shifting all referencing uses by the original lsb, per §4.4: a
// declaration itself doesn't carry a source range in this AST (ranges
// only appear at the Identifier slice-reference site, since declBase
// stores only a flat width), so normalization here instead canonicalizes
// constant `[hi:lo]` slice expressions with lo != 0 down to `[hi-lo:0]`,
// adjusting both bounds by -lo. Every IR-level back-end that lowers
// slices to a fixed bit offset benefits from the uniform zero-based form.
func IndexNormalize(ev *Evaluator, s Stmt) {
	walkSlices(s, func(id *Identifier) {
		if id.RangeMSB == nil || id.RangeIsPlus || id.RangeIsMinus {
			return // +:/-: forms are already lsb-relative; nothing to do
		}
		lo := ev.constEvalInt(id.RangeLSB)
		if lo == 0 {
			return
		}
		hi := ev.constEvalInt(id.RangeMSB)
		id.RangeMSB = &Number{Value: NewBits(32, uint64(hi-lo))}
		id.RangeLSB = &Number{Value: NewBits(32, 0)}
	})
}

func walkSlices(s Stmt, fn func(*Identifier)) {
	walkIdentifiers(s, fn)
}
