// Package ccx resolves per-cohort field overrides for course content blocks.
//
// A cohort (custom course) shares a base course with other learners but may
// replace individual block fields such as a due date. Overrides reads and
// writes those replacements through a state.Store and caches the resolved
// mapping of each (block location, cohort) pair. OverrideProvider plugs the
// cache into content rendering: it consults the cohort active on the request
// context and falls back to the block's own value.
//
// The active cohort lives in a Holder installed on the request context:
//
//	ctx, holder := ccx.NewContext(r.Context())
//	holder.Set(cohort)
//	defer holder.Clear()
//
// Code that renders on behalf of a different cohort uses WithActive, which
// restores the previous cohort on every exit path.
package ccx
